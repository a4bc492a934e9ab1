package raydium

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/binary"
)

var (
	ErrInvalidAmmAccountOwner = errors.New("amm account not owned by the amm program")
	ErrExpectedAccount        = errors.New("unexpected amm account size")
	ErrInvalidStatus          = errors.New("amm is uninitialized")
)

type AmmStatus uint64

const (
	AmmStatusUninitialized AmmStatus = iota
	AmmStatusInitialized
	AmmStatusDisabled
	AmmStatusWithdrawOnly
	AmmStatusLiquidityOnly
	AmmStatusOrderBookOnly
	AmmStatusSwapOnly
	AmmStatusWaitingTrade
)

// SwapPermission reports whether the status admits swaps at all.
func (s AmmStatus) SwapPermission() bool {
	switch s {
	case AmmStatusInitialized, AmmStatusSwapOnly, AmmStatusWaitingTrade:
		return true
	default:
		return false
	}
}

// OrderbookPermission reports whether pool liquidity extends onto the
// order book, which makes the open-orders balances part of the reserves.
func (s AmmStatus) OrderbookPermission() bool {
	switch s {
	case AmmStatusInitialized, AmmStatusOrderBookOnly:
		return true
	default:
		return false
	}
}

// Fees is the packed fee configuration of an AMM.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/state.rs#L475
type Fees struct {
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64

	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64

	PnlNumerator   uint64
	PnlDenominator uint64

	SwapFeeNumerator   uint64
	SwapFeeDenominator uint64
}

// StateData is the running statistic block of an AMM. The cumulative
// u128 swap counters are carried as raw bytes, nothing here reads them.
type StateData struct {
	NeedTakePnlCoin uint64
	NeedTakePnlPc   uint64
	TotalPnlPc      uint64
	TotalPnlCoin    uint64

	PoolOpenTime uint64

	OrderbookToInitTime uint64

	SwapCoinInAmount  [16]byte
	SwapPcOutAmount   [16]byte
	SwapAccPcFee      uint64
	SwapPcInAmount    [16]byte
	SwapCoinOutAmount [16]byte
	SwapAccCoinFee    uint64
}

// AmmInfoSize is the packed size of an AMM account.
const AmmInfoSize = 752

const (
	stateDataPaddingSize = 2 * 8
	ammPadding1Size      = 8 * 8
)

// AmmInfo is the packed state of a v4 AMM pool.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/state.rs#L639
type AmmInfo struct {
	Status uint64
	Nonce  uint64

	OrderNum uint64
	Depth    uint64

	CoinDecimals uint64
	PcDecimals   uint64

	State     uint64
	ResetFlag uint64

	MinSize            uint64
	VolMaxCutRatio     uint64
	AmountWave         uint64
	CoinLotSize        uint64
	PcLotSize          uint64
	MinPriceMultiplier uint64
	MaxPriceMultiplier uint64
	SysDecimalValue    uint64

	Fees      Fees
	StateData StateData

	CoinVault     ed25519.PublicKey
	PcVault       ed25519.PublicKey
	CoinVaultMint ed25519.PublicKey
	PcVaultMint   ed25519.PublicKey
	LpMint        ed25519.PublicKey

	OpenOrders    ed25519.PublicKey
	Market        ed25519.PublicKey
	MarketProgram ed25519.PublicKey
	TargetOrders  ed25519.PublicKey

	AmmOwner ed25519.PublicKey

	LpAmount      uint64
	ClientOrderID uint64
	RecentEpoch   uint64
}

func (a *AmmInfo) Marshal() []byte {
	b := make([]byte, AmmInfoSize)

	var offset int
	binary.PutUint64(b, a.Status, &offset)
	binary.PutUint64(b[offset:], a.Nonce, &offset)
	binary.PutUint64(b[offset:], a.OrderNum, &offset)
	binary.PutUint64(b[offset:], a.Depth, &offset)
	binary.PutUint64(b[offset:], a.CoinDecimals, &offset)
	binary.PutUint64(b[offset:], a.PcDecimals, &offset)
	binary.PutUint64(b[offset:], a.State, &offset)
	binary.PutUint64(b[offset:], a.ResetFlag, &offset)
	binary.PutUint64(b[offset:], a.MinSize, &offset)
	binary.PutUint64(b[offset:], a.VolMaxCutRatio, &offset)
	binary.PutUint64(b[offset:], a.AmountWave, &offset)
	binary.PutUint64(b[offset:], a.CoinLotSize, &offset)
	binary.PutUint64(b[offset:], a.PcLotSize, &offset)
	binary.PutUint64(b[offset:], a.MinPriceMultiplier, &offset)
	binary.PutUint64(b[offset:], a.MaxPriceMultiplier, &offset)
	binary.PutUint64(b[offset:], a.SysDecimalValue, &offset)

	binary.PutUint64(b[offset:], a.Fees.MinSeparateNumerator, &offset)
	binary.PutUint64(b[offset:], a.Fees.MinSeparateDenominator, &offset)
	binary.PutUint64(b[offset:], a.Fees.TradeFeeNumerator, &offset)
	binary.PutUint64(b[offset:], a.Fees.TradeFeeDenominator, &offset)
	binary.PutUint64(b[offset:], a.Fees.PnlNumerator, &offset)
	binary.PutUint64(b[offset:], a.Fees.PnlDenominator, &offset)
	binary.PutUint64(b[offset:], a.Fees.SwapFeeNumerator, &offset)
	binary.PutUint64(b[offset:], a.Fees.SwapFeeDenominator, &offset)

	binary.PutUint64(b[offset:], a.StateData.NeedTakePnlCoin, &offset)
	binary.PutUint64(b[offset:], a.StateData.NeedTakePnlPc, &offset)
	binary.PutUint64(b[offset:], a.StateData.TotalPnlPc, &offset)
	binary.PutUint64(b[offset:], a.StateData.TotalPnlCoin, &offset)
	binary.PutUint64(b[offset:], a.StateData.PoolOpenTime, &offset)
	offset += stateDataPaddingSize
	binary.PutUint64(b[offset:], a.StateData.OrderbookToInitTime, &offset)
	copy(b[offset:], a.StateData.SwapCoinInAmount[:])
	offset += 16
	copy(b[offset:], a.StateData.SwapPcOutAmount[:])
	offset += 16
	binary.PutUint64(b[offset:], a.StateData.SwapAccPcFee, &offset)
	copy(b[offset:], a.StateData.SwapPcInAmount[:])
	offset += 16
	copy(b[offset:], a.StateData.SwapCoinOutAmount[:])
	offset += 16
	binary.PutUint64(b[offset:], a.StateData.SwapAccCoinFee, &offset)

	binary.PutKey32(b[offset:], a.CoinVault, &offset)
	binary.PutKey32(b[offset:], a.PcVault, &offset)
	binary.PutKey32(b[offset:], a.CoinVaultMint, &offset)
	binary.PutKey32(b[offset:], a.PcVaultMint, &offset)
	binary.PutKey32(b[offset:], a.LpMint, &offset)
	binary.PutKey32(b[offset:], a.OpenOrders, &offset)
	binary.PutKey32(b[offset:], a.Market, &offset)
	binary.PutKey32(b[offset:], a.MarketProgram, &offset)
	binary.PutKey32(b[offset:], a.TargetOrders, &offset)
	offset += ammPadding1Size
	binary.PutKey32(b[offset:], a.AmmOwner, &offset)
	binary.PutUint64(b[offset:], a.LpAmount, &offset)
	binary.PutUint64(b[offset:], a.ClientOrderID, &offset)
	binary.PutUint64(b[offset:], a.RecentEpoch, &offset)

	return b
}

func (a *AmmInfo) Unmarshal(b []byte) error {
	if len(b) != AmmInfoSize {
		return ErrExpectedAccount
	}

	var offset int
	binary.GetUint64(b, &a.Status, &offset)
	binary.GetUint64(b[offset:], &a.Nonce, &offset)
	binary.GetUint64(b[offset:], &a.OrderNum, &offset)
	binary.GetUint64(b[offset:], &a.Depth, &offset)
	binary.GetUint64(b[offset:], &a.CoinDecimals, &offset)
	binary.GetUint64(b[offset:], &a.PcDecimals, &offset)
	binary.GetUint64(b[offset:], &a.State, &offset)
	binary.GetUint64(b[offset:], &a.ResetFlag, &offset)
	binary.GetUint64(b[offset:], &a.MinSize, &offset)
	binary.GetUint64(b[offset:], &a.VolMaxCutRatio, &offset)
	binary.GetUint64(b[offset:], &a.AmountWave, &offset)
	binary.GetUint64(b[offset:], &a.CoinLotSize, &offset)
	binary.GetUint64(b[offset:], &a.PcLotSize, &offset)
	binary.GetUint64(b[offset:], &a.MinPriceMultiplier, &offset)
	binary.GetUint64(b[offset:], &a.MaxPriceMultiplier, &offset)
	binary.GetUint64(b[offset:], &a.SysDecimalValue, &offset)

	binary.GetUint64(b[offset:], &a.Fees.MinSeparateNumerator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.MinSeparateDenominator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.TradeFeeNumerator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.TradeFeeDenominator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.PnlNumerator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.PnlDenominator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.SwapFeeNumerator, &offset)
	binary.GetUint64(b[offset:], &a.Fees.SwapFeeDenominator, &offset)

	binary.GetUint64(b[offset:], &a.StateData.NeedTakePnlCoin, &offset)
	binary.GetUint64(b[offset:], &a.StateData.NeedTakePnlPc, &offset)
	binary.GetUint64(b[offset:], &a.StateData.TotalPnlPc, &offset)
	binary.GetUint64(b[offset:], &a.StateData.TotalPnlCoin, &offset)
	binary.GetUint64(b[offset:], &a.StateData.PoolOpenTime, &offset)
	offset += stateDataPaddingSize
	binary.GetUint64(b[offset:], &a.StateData.OrderbookToInitTime, &offset)
	copy(a.StateData.SwapCoinInAmount[:], b[offset:])
	offset += 16
	copy(a.StateData.SwapPcOutAmount[:], b[offset:])
	offset += 16
	binary.GetUint64(b[offset:], &a.StateData.SwapAccPcFee, &offset)
	copy(a.StateData.SwapPcInAmount[:], b[offset:])
	offset += 16
	copy(a.StateData.SwapCoinOutAmount[:], b[offset:])
	offset += 16
	binary.GetUint64(b[offset:], &a.StateData.SwapAccCoinFee, &offset)

	binary.GetKey32(b[offset:], &a.CoinVault, &offset)
	binary.GetKey32(b[offset:], &a.PcVault, &offset)
	binary.GetKey32(b[offset:], &a.CoinVaultMint, &offset)
	binary.GetKey32(b[offset:], &a.PcVaultMint, &offset)
	binary.GetKey32(b[offset:], &a.LpMint, &offset)
	binary.GetKey32(b[offset:], &a.OpenOrders, &offset)
	binary.GetKey32(b[offset:], &a.Market, &offset)
	binary.GetKey32(b[offset:], &a.MarketProgram, &offset)
	binary.GetKey32(b[offset:], &a.TargetOrders, &offset)
	offset += ammPadding1Size
	binary.GetKey32(b[offset:], &a.AmmOwner, &offset)
	binary.GetUint64(b[offset:], &a.LpAmount, &offset)
	binary.GetUint64(b[offset:], &a.ClientOrderID, &offset)
	binary.GetUint64(b[offset:], &a.RecentEpoch, &offset)

	return nil
}

// GetAmmInfo decodes and validates an AMM account owned by the given
// program.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/state.rs#L42
func GetAmmInfo(info *solana.AccountInfo, programID ed25519.PublicKey) (*AmmInfo, error) {
	if !bytes.Equal(info.Owner, programID) {
		return nil, ErrInvalidAmmAccountOwner
	}
	if len(info.Data) != AmmInfoSize {
		return nil, ErrExpectedAccount
	}

	var amm AmmInfo
	if err := amm.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	if AmmStatus(amm.Status) == AmmStatusUninitialized {
		return nil, ErrInvalidStatus
	}

	return &amm, nil
}
