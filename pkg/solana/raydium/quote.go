package raydium

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/serum"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidUserToken   = errors.New("user token mints do not match the pool")
	ErrInvalidMarket      = errors.New("open orders bound to another market")
	ErrInvalidOwner       = errors.New("open orders owned by another authority")
	ErrInvalidOpenOrders  = errors.New("open orders account does not match the amm")
	ErrWrongEventQueue    = errors.New("event queue does not match the market")
)

// SwapDirection selects which pool token is the input.
type SwapDirection byte

const (
	SwapDirectionPc2Coin SwapDirection = iota
	SwapDirectionCoin2Pc
)

// QuoteParams carries the state a quote is computed from. Amm must come
// from GetAmmInfo. The three market accounts are decoded here because
// their validity checks are part of the quote.
type QuoteParams struct {
	Amm *AmmInfo

	// Balances and mints of the AMM's token vaults.
	CoinVaultAmount uint64
	PcVaultAmount   uint64
	CoinVaultMint   ed25519.PublicKey
	PcVaultMint     ed25519.PublicKey

	Market     *solana.AccountInfo
	OpenOrders *solana.AccountInfo
	EventQueue *solana.AccountInfo

	// The AMM authority, owner of the open-orders account.
	Authority ed25519.PublicKey

	Clock system.Clock

	SourceMint      ed25519.PublicKey
	DestinationMint ed25519.PublicKey
	AmountIn        uint64
}

// Quote is the outcome of a successful swap simulation. FeeAmount is
// charged on the input side and already reflected in AmountOut.
type Quote struct {
	FeeAmount uint64
	AmountOut uint64
}

// GetQuote simulates a swap against a v4 AMM pool. A nil quote means
// the pool cannot serve the trade right now.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/processor.rs#L2210
func GetQuote(params *QuoteParams) (*Quote, error) {
	status := AmmStatus(params.Amm.Status)

	// A pool parked on the order book reopens for swaps once its
	// transition time passes, a freshly created pool once its open time
	// passes. Both transitions happen lazily inside the swap itself, so
	// the quote anticipates them.
	if !status.SwapPermission() {
		if status == AmmStatusOrderBookOnly && uint64(params.Clock.UnixTimestamp) >= params.Amm.StateData.OrderbookToInitTime {
			status = AmmStatusInitialized
		} else {
			return nil, nil
		}
	} else if status == AmmStatusWaitingTrade {
		if uint64(params.Clock.UnixTimestamp) < params.Amm.StateData.PoolOpenTime {
			return nil, nil
		}
		status = AmmStatusSwapOnly
	}

	var totalPc, totalCoin uint64
	var err error
	if status.OrderbookPermission() {
		totalPc, totalCoin, err = calcTotalWithOrderbook(params)
	} else {
		totalPc, totalCoin, err = calcTotalNoOrderbook(params)
	}
	if err != nil {
		return nil, err
	}

	var direction SwapDirection
	switch {
	case bytes.Equal(params.SourceMint, params.CoinVaultMint) && bytes.Equal(params.DestinationMint, params.PcVaultMint):
		direction = SwapDirectionCoin2Pc
	case bytes.Equal(params.SourceMint, params.PcVaultMint) && bytes.Equal(params.DestinationMint, params.CoinVaultMint):
		direction = SwapDirectionPc2Coin
	default:
		return nil, ErrInvalidUserToken
	}

	swapFee, err := ceilDiv(
		new(uint256.Int).Mul(uint256.NewInt(params.AmountIn), uint256.NewInt(params.Amm.Fees.SwapFeeNumerator)),
		uint256.NewInt(params.Amm.Fees.SwapFeeDenominator),
	)
	if err != nil {
		return nil, err
	}
	if swapFee > params.AmountIn {
		return nil, ErrArithmeticOverflow
	}
	swapInAfterFee := params.AmountIn - swapFee

	amountOut := swapTokenAmountBaseIn(swapInAfterFee, totalPc, totalCoin, direction)

	// The pool must keep a non-empty destination reserve.
	switch direction {
	case SwapDirectionCoin2Pc:
		if amountOut >= totalPc {
			return nil, nil
		}
	case SwapDirectionPc2Coin:
		if amountOut >= totalCoin {
			return nil, nil
		}
	}

	return &Quote{
		FeeAmount: swapFee,
		AmountOut: amountOut,
	}, nil
}

// calcTotalWithOrderbook prices the reserves including the liquidity the
// AMM keeps on its market, minus the pending protocol pnl.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/math.rs#L294
func calcTotalWithOrderbook(params *QuoteParams) (totalPc, totalCoin uint64, err error) {
	market, err := serum.GetMarketState(params.Market, params.Amm.MarketProgram)
	if err != nil {
		return 0, 0, err
	}

	openOrders, err := serum.GetOpenOrders(params.OpenOrders, params.Amm.MarketProgram, params.Market.Key, params.Authority)
	if err != nil {
		return 0, 0, err
	}
	if !bytes.Equal(openOrders.Market, params.Market.Key) {
		return 0, 0, ErrInvalidMarket
	}
	if !bytes.Equal(openOrders.Owner, params.Authority) {
		return 0, 0, ErrInvalidOwner
	}
	if !bytes.Equal(params.OpenOrders.Key, params.Amm.OpenOrders) {
		return 0, 0, ErrInvalidOpenOrders
	}

	if !bytes.Equal(params.EventQueue.Key, market.EventQueue) {
		return 0, 0, ErrWrongEventQueue
	}
	queue, err := serum.GetEventQueue(params.EventQueue, params.Amm.MarketProgram)
	if err != nil {
		return 0, 0, err
	}

	pcInSerum, coinInSerum, err := replayPendingFills(queue, openOrders, params.OpenOrders.Key)
	if err != nil {
		return 0, 0, err
	}

	pc, err := checkedAdd(params.PcVaultAmount, pcInSerum)
	if err != nil {
		return 0, 0, err
	}
	totalPc, err = checkedSub(pc, params.Amm.StateData.NeedTakePnlPc)
	if err != nil {
		return 0, 0, err
	}
	coin, err := checkedAdd(params.CoinVaultAmount, coinInSerum)
	if err != nil {
		return 0, 0, err
	}
	totalCoin, err = checkedSub(coin, params.Amm.StateData.NeedTakePnlCoin)
	if err != nil {
		return 0, 0, err
	}
	return totalPc, totalCoin, nil
}

func calcTotalNoOrderbook(params *QuoteParams) (totalPc, totalCoin uint64, err error) {
	if params.PcVaultAmount < params.Amm.StateData.NeedTakePnlPc ||
		params.CoinVaultAmount < params.Amm.StateData.NeedTakePnlCoin {
		return 0, 0, ErrArithmeticOverflow
	}
	return params.PcVaultAmount - params.Amm.StateData.NeedTakePnlPc,
		params.CoinVaultAmount - params.Amm.StateData.NeedTakePnlCoin,
		nil
}

// replayPendingFills applies the AMM's uncranked maker fills on top of
// its settled open-orders balances.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/math.rs#L244
func replayPendingFills(queue *serum.EventQueue, openOrders *serum.OpenOrders, openOrdersKey ed25519.PublicKey) (pcTotal, coinTotal uint64, err error) {
	pcTotal = openOrders.NativePcTotal
	coinTotal = openOrders.NativeCoinTotal

	for i := uint64(0); i < queue.Header.Count; i++ {
		event, err := queue.Get(i)
		if err != nil {
			return 0, 0, err
		}
		if !bytes.Equal(event.Owner, openOrdersKey) {
			continue
		}
		if err := event.Validate(); err != nil {
			return 0, 0, err
		}
		if event.Flags&serum.EventFlagFill == 0 || event.Flags&serum.EventFlagMaker == 0 {
			continue
		}

		if event.Flags&serum.EventFlagBid != 0 {
			pcTotal -= event.NativeQtyPaid
			coinTotal += event.NativeQtyReleased
		} else {
			coinTotal -= event.NativeQtyPaid
			pcTotal += event.NativeQtyReleased
		}
	}

	return pcTotal, coinTotal, nil
}

// swapTokenAmountBaseIn prices an exact-in trade on the x*y=k curve,
// flooring in the pool's favor.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/math.rs
func swapTokenAmountBaseIn(amountIn, totalPc, totalCoin uint64, direction SwapDirection) uint64 {
	var reserveIn, reserveOut uint64
	switch direction {
	case SwapDirectionCoin2Pc:
		reserveIn, reserveOut = totalCoin, totalPc
	case SwapDirectionPc2Coin:
		reserveIn, reserveOut = totalPc, totalCoin
	}

	out := new(uint256.Int).Mul(uint256.NewInt(reserveOut), uint256.NewInt(amountIn))
	out.Div(out, new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(amountIn)))
	return out.Uint64()
}

// ceilDiv rounds the quotient up, except that a dividend of less than
// half the divisor rounds down to zero.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/math.rs
func ceilDiv(lhs, rhs *uint256.Int) (uint64, error) {
	if rhs.IsZero() {
		return 0, ErrArithmeticOverflow
	}

	quotient := new(uint256.Int).Div(lhs, rhs)
	if quotient.IsZero() {
		if doubled := new(uint256.Int).Add(lhs, lhs); !doubled.Lt(rhs) {
			return 1, nil
		}
		return 0, nil
	}

	remainder := new(uint256.Int).Mod(lhs, rhs)
	if !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	if !quotient.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}
