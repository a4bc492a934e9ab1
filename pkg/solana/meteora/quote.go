package meteora

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana/system"
)

var ErrInvalidTokenMint = errors.New("mint does not belong to the pool")

// TradeDirection selects which pool token is the input.
type TradeDirection byte

const (
	TradeDirectionAToB TradeDirection = iota
	TradeDirectionBToA
)

// QuoteParams carries the decoded on-chain state a quote is computed
// from. Token amounts belong to the accounts referenced by the pool.
type QuoteParams struct {
	Pool *Pool

	VaultA *Vault
	VaultB *Vault

	// The pool's LP balances in each vault.
	AVaultLpAmount uint64
	BVaultLpAmount uint64

	// Supplies of the vault LP mints.
	AVaultLpSupply uint64
	BVaultLpSupply uint64

	// Balances of the vault token accounts.
	AVaultTokenAmount uint64
	BVaultTokenAmount uint64

	Clock system.Clock

	InTokenMint ed25519.PublicKey
	AmountIn    uint64
}

// Quote is the outcome of a successful swap simulation. FeeAmount is
// charged on the input side and already reflected in AmountOut.
type Quote struct {
	FeeAmount uint64
	AmountOut uint64
}

// GetQuote simulates a swap against a dynamic AMM pool. A nil quote
// means the pool cannot serve the trade right now.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/dynamic-amm-quote/src/lib.rs#L58
func GetQuote(params *QuoteParams) (*Quote, error) {
	direction, tradeFee, protocolFee, tradable, err := checkPool(params)
	if err != nil || !tradable {
		return nil, err
	}

	if params.Clock.UnixTimestamp < 0 {
		return nil, ErrArithmeticOverflow
	}
	currentTime := uint64(params.Clock.UnixTimestamp)

	tokenAAmount, err := params.VaultA.GetAmountByShare(currentTime, params.AVaultLpAmount, params.AVaultLpSupply)
	if err != nil {
		return nil, err
	}
	tokenBAmount, err := params.VaultB.GetAmountByShare(currentTime, params.BVaultLpAmount, params.BVaultLpSupply)
	if err != nil {
		return nil, err
	}

	// Work on copies, the simulation below adds the input amount to the
	// in vault's liquidity.
	var (
		inVault, outVault                       Vault
		inVaultLp                               uint64
		inVaultLpMint, outVaultLpMint           uint64
		outVaultTokenAmount                     uint64
		inTokenTotalAmount, outTokenTotalAmount uint64
	)
	switch direction {
	case TradeDirectionAToB:
		inVault, outVault = *params.VaultA, *params.VaultB
		inVaultLp = params.AVaultLpAmount
		inVaultLpMint, outVaultLpMint = params.AVaultLpSupply, params.BVaultLpSupply
		outVaultTokenAmount = params.BVaultTokenAmount
		inTokenTotalAmount, outTokenTotalAmount = tokenAAmount, tokenBAmount
	case TradeDirectionBToA:
		inVault, outVault = *params.VaultB, *params.VaultA
		inVaultLp = params.BVaultLpAmount
		inVaultLpMint, outVaultLpMint = params.BVaultLpSupply, params.AVaultLpSupply
		outVaultTokenAmount = params.AVaultTokenAmount
		inTokenTotalAmount, outTokenTotalAmount = tokenBAmount, tokenAAmount
	}

	if protocolFee > tradeFee {
		return nil, ErrArithmeticOverflow
	}
	tradeFeeAfterProtocol := tradeFee - protocolFee

	if protocolFee > params.AmountIn {
		return nil, ErrArithmeticOverflow
	}
	inAmountAfterProtocolFee := params.AmountIn - protocolFee

	// Depositing into the vault and pricing the received LP back out
	// loses up to one token to rounding on each side. The effective
	// input amount accounts for that.
	beforeInTokenTotalAmount := inTokenTotalAmount
	inLp, err := inVault.GetUnmintAmount(currentTime, inAmountAfterProtocolFee, inVaultLpMint)
	if err != nil {
		return nil, err
	}
	if inVault.TotalAmount > math.MaxUint64-inAmountAfterProtocolFee {
		return nil, ErrArithmeticOverflow
	}
	inVault.TotalAmount += inAmountAfterProtocolFee

	if inLp > math.MaxUint64-inVaultLp || inVaultLpMint > math.MaxUint64-inLp {
		return nil, ErrArithmeticOverflow
	}
	afterInTokenTotalAmount, err := inVault.GetAmountByShare(currentTime, inLp+inVaultLp, inVaultLpMint+inLp)
	if err != nil {
		return nil, err
	}

	if afterInTokenTotalAmount < beforeInTokenTotalAmount {
		return nil, ErrArithmeticOverflow
	}
	actualInAmount := afterInTokenTotalAmount - beforeInTokenTotalAmount
	if tradeFeeAfterProtocol > actualInAmount {
		return nil, ErrArithmeticOverflow
	}
	actualInAmountAfterFee := actualInAmount - tradeFeeAfterProtocol

	destinationAmountSwapped, err := constantProductSwap(actualInAmountAfterFee, inTokenTotalAmount, outTokenTotalAmount)
	if err != nil {
		return nil, err
	}

	outVaultLp, err := outVault.GetUnmintAmount(currentTime, destinationAmountSwapped, outVaultLpMint)
	if err != nil {
		return nil, err
	}
	amountOut, err := outVault.GetAmountByShare(currentTime, outVaultLp, outVaultLpMint)
	if err != nil {
		return nil, err
	}

	// The vault keeps part of its liquidity in strategies, the swap can
	// only pay out of the token account.
	if amountOut > outVaultTokenAmount {
		return nil, nil
	}

	return &Quote{
		FeeAmount: tradeFee,
		AmountOut: amountOut,
	}, nil
}

func checkPool(params *QuoteParams) (direction TradeDirection, tradeFee, protocolFee uint64, tradable bool, err error) {
	pool := params.Pool

	// Pools routing liquidity through a stake pool need the stake
	// account, which the swap instruction never receives.
	if !isZeroKey(pool.Stake) {
		return 0, 0, 0, false, nil
	}

	var currentPoint uint64
	switch ActivationType(pool.Bootstrapping.ActivationType) {
	case ActivationTypeSlot:
		currentPoint = params.Clock.Slot
	case ActivationTypeTimestamp:
		currentPoint = uint64(params.Clock.UnixTimestamp)
	default:
		return 0, 0, 0, false, ErrInvalidActivation
	}

	if !pool.Enabled {
		return 0, 0, 0, false, nil
	}
	if currentPoint < pool.Bootstrapping.ActivationPoint {
		return 0, 0, 0, false, nil
	}
	if pool.CurveType != CurveTypeConstantProduct {
		return 0, 0, 0, false, nil
	}

	switch {
	case bytes.Equal(params.InTokenMint, pool.TokenAMint):
		direction = TradeDirectionAToB
	case bytes.Equal(params.InTokenMint, pool.TokenBMint):
		direction = TradeDirectionBToA
	default:
		return 0, 0, 0, false, ErrInvalidTokenMint
	}

	tradeFee, err = pool.Fees.TradingFee(params.AmountIn)
	if err != nil {
		return 0, 0, 0, false, err
	}
	protocolFee, err = pool.Fees.ProtocolTradingFee(tradeFee)
	if err != nil {
		return 0, 0, 0, false, err
	}

	return direction, tradeFee, protocolFee, true, nil
}

// constantProductSwap prices a trade on the x*y=k curve. The destination
// side of the invariant is ceiled, so the pool never pays out a token it
// should keep.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/dynamic-amm-quote/src/math/constant_product.rs#L2
func constantProductSwap(sourceAmount, swapSourceAmount, swapDestinationAmount uint64) (uint64, error) {
	invariant := new(uint256.Int).Mul(uint256.NewInt(swapSourceAmount), uint256.NewInt(swapDestinationAmount))
	newSwapSourceAmount := new(uint256.Int).Add(uint256.NewInt(swapSourceAmount), uint256.NewInt(sourceAmount))

	newSwapDestinationAmount, err := checkedCeilDiv(invariant, newSwapSourceAmount)
	if err != nil {
		return 0, err
	}

	destination := uint256.NewInt(swapDestinationAmount)
	if destination.Lt(newSwapDestinationAmount) {
		return 0, ErrArithmeticOverflow
	}
	destination.Sub(destination, newSwapDestinationAmount)
	if destination.IsZero() || !destination.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return destination.Uint64(), nil
}

// checkedCeilDiv fails instead of rounding a small-by-big division up
// to one.
func checkedCeilDiv(lhs, rhs *uint256.Int) (*uint256.Int, error) {
	if rhs.IsZero() {
		return nil, ErrArithmeticOverflow
	}

	quotient := new(uint256.Int).Div(lhs, rhs)
	if quotient.IsZero() {
		return nil, ErrArithmeticOverflow
	}

	remainder := new(uint256.Int).Mod(lhs, rhs)
	if !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient, nil
}

func isZeroKey(key ed25519.PublicKey) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
