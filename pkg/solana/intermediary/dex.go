package intermediary

import (
	"crypto/ed25519"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

// Dex identifies a venue a swap can be routed through.
type Dex byte

const (
	DexMeteoraV1 Dex = iota
	DexRaydiumV4
)

func (d Dex) String() string {
	switch d {
	case DexMeteoraV1:
		return "MeteoraV1"
	case DexRaydiumV4:
		return "RaydiumV4"
	}
	return "Unknown"
}

// SwapCalculationResult is the outcome of simulating a swap against
// one venue.
type SwapCalculationResult struct {
	Pool        ed25519.PublicKey
	AmountInFee uint64
	AmountOut   uint64
}

// baseData is the venue-independent part of a swap: the custody
// accounts, the mints, and the trade parameters.
type baseData struct {
	intermediary *solana.AccountInfo
	record       *Intermediary

	selfAuthority     *solana.AccountInfo
	quoteTokenAccount *solana.AccountInfo
	tokenAccount      *solana.AccountInfo

	tokenMint ed25519.PublicKey
	quoteMint ed25519.PublicKey

	amountIn     uint64
	minAmountOut uint64

	isFromQuoteToToken bool
	withChecks         bool
}

func (b *baseData) selfAuthoritySeeds() [][]byte {
	return SelfAuthoritySeeds(b.intermediary.Key, b.record.SelfAuthorityBump)
}

// venueAdapter binds one venue's account window to its quote engine
// and swap instruction.
//
// calculateSwap returning a nil result means the venue cannot serve
// the trade right now and the router moves on to the next one.
type venueAdapter interface {
	swapAccountsQuantity() int
	calculateSwap(base *baseData, window []*solana.AccountInfo) (*SwapCalculationResult, error)
	swap(invoker solana.Invoker, base *baseData, window []*solana.AccountInfo) error
}

func (d Dex) adapter() (venueAdapter, error) {
	switch d {
	case DexMeteoraV1:
		return meteoraV1Adapter{}, nil
	case DexRaydiumV4:
		return raydiumV4Adapter{}, nil
	}
	return nil, ErrorInvalidLogic
}
