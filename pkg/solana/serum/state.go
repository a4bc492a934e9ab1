package serum

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/binary"
)

// Every order-book account is wrapped in the same ASCII padding.
//
// Reference: https://github.com/project-serum/serum-dex/blob/master/dex/src/state.rs
var (
	accountHeadPadding = []byte("serum")
	accountTailPadding = []byte("padding")
)

type AccountFlags uint64

const (
	FlagInitialized AccountFlags = 1 << iota
	FlagMarket
	FlagOpenOrders
	FlagRequestQueue
	FlagEventQueue
	FlagBids
	FlagAsks
	FlagDisabled
	FlagClosed
	FlagPermissioned
	FlagCrankAuthorityRequired
)

var (
	ErrInvalidPadding      = errors.New("invalid account padding")
	ErrInvalidAccountFlags = errors.New("invalid account flags")
	ErrInvalidAccountOwner = errors.New("account not owned by market program")
)

// StripPadding validates the head/tail padding and returns the inner bytes.
func StripPadding(data []byte) ([]byte, error) {
	if len(data) < len(accountHeadPadding)+len(accountTailPadding) {
		return nil, ErrInvalidPadding
	}
	if !bytes.Equal(data[:len(accountHeadPadding)], accountHeadPadding) {
		return nil, ErrInvalidPadding
	}
	if !bytes.Equal(data[len(data)-len(accountTailPadding):], accountTailPadding) {
		return nil, ErrInvalidPadding
	}
	return data[len(accountHeadPadding) : len(data)-len(accountTailPadding)], nil
}

// MarketStateSize is the packed size of the market header. Permissioned
// markets append authority fields after it, so it is a prefix bound.
const MarketStateSize = 376

// MarketState is the market header of an order-book market account.
//
// Reference: https://github.com/project-serum/serum-dex/blob/master/dex/src/state.rs#L223
type MarketState struct {
	AccountFlags uint64

	OwnAddress ed25519.PublicKey

	VaultSignerNonce uint64
	CoinMint         ed25519.PublicKey
	PcMint           ed25519.PublicKey

	CoinVault         ed25519.PublicKey
	CoinDepositsTotal uint64
	CoinFeesAccrued   uint64

	PcVault         ed25519.PublicKey
	PcDepositsTotal uint64
	PcFeesAccrued   uint64

	PcDustThreshold uint64

	RequestQueue ed25519.PublicKey
	EventQueue   ed25519.PublicKey

	Bids ed25519.PublicKey
	Asks ed25519.PublicKey

	CoinLotSize uint64
	PcLotSize   uint64

	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
}

func (m *MarketState) Marshal() []byte {
	b := make([]byte, MarketStateSize)

	var offset int
	binary.PutUint64(b, m.AccountFlags, &offset)
	binary.PutKey32(b[offset:], m.OwnAddress, &offset)
	binary.PutUint64(b[offset:], m.VaultSignerNonce, &offset)
	binary.PutKey32(b[offset:], m.CoinMint, &offset)
	binary.PutKey32(b[offset:], m.PcMint, &offset)
	binary.PutKey32(b[offset:], m.CoinVault, &offset)
	binary.PutUint64(b[offset:], m.CoinDepositsTotal, &offset)
	binary.PutUint64(b[offset:], m.CoinFeesAccrued, &offset)
	binary.PutKey32(b[offset:], m.PcVault, &offset)
	binary.PutUint64(b[offset:], m.PcDepositsTotal, &offset)
	binary.PutUint64(b[offset:], m.PcFeesAccrued, &offset)
	binary.PutUint64(b[offset:], m.PcDustThreshold, &offset)
	binary.PutKey32(b[offset:], m.RequestQueue, &offset)
	binary.PutKey32(b[offset:], m.EventQueue, &offset)
	binary.PutKey32(b[offset:], m.Bids, &offset)
	binary.PutKey32(b[offset:], m.Asks, &offset)
	binary.PutUint64(b[offset:], m.CoinLotSize, &offset)
	binary.PutUint64(b[offset:], m.PcLotSize, &offset)
	binary.PutUint64(b[offset:], m.FeeRateBps, &offset)
	binary.PutUint64(b[offset:], m.ReferrerRebatesAccrued, &offset)

	return b
}

func (m *MarketState) Unmarshal(b []byte) error {
	if len(b) < MarketStateSize {
		return errors.Errorf("invalid market state size: %d", len(b))
	}

	var offset int
	binary.GetUint64(b, &m.AccountFlags, &offset)
	binary.GetKey32(b[offset:], &m.OwnAddress, &offset)
	binary.GetUint64(b[offset:], &m.VaultSignerNonce, &offset)
	binary.GetKey32(b[offset:], &m.CoinMint, &offset)
	binary.GetKey32(b[offset:], &m.PcMint, &offset)
	binary.GetKey32(b[offset:], &m.CoinVault, &offset)
	binary.GetUint64(b[offset:], &m.CoinDepositsTotal, &offset)
	binary.GetUint64(b[offset:], &m.CoinFeesAccrued, &offset)
	binary.GetKey32(b[offset:], &m.PcVault, &offset)
	binary.GetUint64(b[offset:], &m.PcDepositsTotal, &offset)
	binary.GetUint64(b[offset:], &m.PcFeesAccrued, &offset)
	binary.GetUint64(b[offset:], &m.PcDustThreshold, &offset)
	binary.GetKey32(b[offset:], &m.RequestQueue, &offset)
	binary.GetKey32(b[offset:], &m.EventQueue, &offset)
	binary.GetKey32(b[offset:], &m.Bids, &offset)
	binary.GetKey32(b[offset:], &m.Asks, &offset)
	binary.GetUint64(b[offset:], &m.CoinLotSize, &offset)
	binary.GetUint64(b[offset:], &m.PcLotSize, &offset)
	binary.GetUint64(b[offset:], &m.FeeRateBps, &offset)
	binary.GetUint64(b[offset:], &m.ReferrerRebatesAccrued, &offset)

	return nil
}

func (m *MarketState) checkFlags() error {
	flags := AccountFlags(m.AccountFlags)
	required := FlagInitialized | FlagMarket
	if flags&FlagPermissioned != 0 {
		required |= FlagPermissioned
		if flags != required && flags != required|FlagCrankAuthorityRequired {
			return ErrInvalidAccountFlags
		}
		return nil
	}
	if flags != required {
		return ErrInvalidAccountFlags
	}
	return nil
}

// GetMarketState decodes and validates a market account owned by the
// given market program.
func GetMarketState(info *solana.AccountInfo, marketProgram ed25519.PublicKey) (*MarketState, error) {
	if !bytes.Equal(info.Owner, marketProgram) {
		return nil, ErrInvalidAccountOwner
	}

	inner, err := StripPadding(info.Data)
	if err != nil {
		return nil, err
	}

	var market MarketState
	if err := market.Unmarshal(inner); err != nil {
		return nil, err
	}
	if err := market.checkFlags(); err != nil {
		return nil, err
	}

	return &market, nil
}

// OpenOrdersStateSize is the packed size of an open-orders account body.
const OpenOrdersStateSize = 3216

const openOrdersMaxOrders = 128

// OpenOrders tracks a market participant's resting orders and settled
// balances.
//
// Reference: https://github.com/project-serum/serum-dex/blob/master/dex/src/state.rs#L539
type OpenOrders struct {
	AccountFlags uint64
	Market       ed25519.PublicKey
	Owner        ed25519.PublicKey

	NativeCoinFree  uint64
	NativeCoinTotal uint64

	NativePcFree  uint64
	NativePcTotal uint64

	ReferrerRebatesAccrued uint64
}

func (o *OpenOrders) Marshal() []byte {
	b := make([]byte, OpenOrdersStateSize)

	var offset int
	binary.PutUint64(b, o.AccountFlags, &offset)
	binary.PutKey32(b[offset:], o.Market, &offset)
	binary.PutKey32(b[offset:], o.Owner, &offset)
	binary.PutUint64(b[offset:], o.NativeCoinFree, &offset)
	binary.PutUint64(b[offset:], o.NativeCoinTotal, &offset)
	binary.PutUint64(b[offset:], o.NativePcFree, &offset)
	binary.PutUint64(b[offset:], o.NativePcTotal, &offset)

	// free_slot_bits, is_bid_bits, order ids and client ids are not
	// tracked here, leave them zeroed.
	offset += 2*16 + openOrdersMaxOrders*16 + openOrdersMaxOrders*8

	binary.PutUint64(b[offset:], o.ReferrerRebatesAccrued, &offset)

	return b
}

func (o *OpenOrders) Unmarshal(b []byte) error {
	if len(b) != OpenOrdersStateSize {
		return errors.Errorf("invalid open orders size: %d", len(b))
	}

	var offset int
	binary.GetUint64(b, &o.AccountFlags, &offset)
	binary.GetKey32(b[offset:], &o.Market, &offset)
	binary.GetKey32(b[offset:], &o.Owner, &offset)
	binary.GetUint64(b[offset:], &o.NativeCoinFree, &offset)
	binary.GetUint64(b[offset:], &o.NativeCoinTotal, &offset)
	binary.GetUint64(b[offset:], &o.NativePcFree, &offset)
	binary.GetUint64(b[offset:], &o.NativePcTotal, &offset)

	offset += 2*16 + openOrdersMaxOrders*16 + openOrdersMaxOrders*8

	binary.GetUint64(b[offset:], &o.ReferrerRebatesAccrued, &offset)

	return nil
}

// GetOpenOrders decodes and validates an open-orders account, optionally
// binding it to a market and an owner.
func GetOpenOrders(info *solana.AccountInfo, marketProgram, market, owner ed25519.PublicKey) (*OpenOrders, error) {
	if !bytes.Equal(info.Owner, marketProgram) {
		return nil, ErrInvalidAccountOwner
	}

	inner, err := StripPadding(info.Data)
	if err != nil {
		return nil, err
	}

	var openOrders OpenOrders
	if err := openOrders.Unmarshal(inner); err != nil {
		return nil, err
	}

	if AccountFlags(openOrders.AccountFlags) != FlagInitialized|FlagOpenOrders {
		return nil, ErrInvalidAccountFlags
	}
	if market != nil && !bytes.Equal(openOrders.Market, market) {
		return nil, errors.New("open orders bound to another market")
	}
	if owner != nil && !bytes.Equal(openOrders.Owner, owner) {
		return nil, errors.New("open orders owned by another authority")
	}

	return &openOrders, nil
}
