package meteora

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetMut1/Dexswap/pkg/solana/system"
)

func identityVault(mintSeed byte, amount uint64) *Vault {
	return &Vault{
		Enabled:     1,
		TotalAmount: amount,
		TokenMint:   testKey(mintSeed),
	}
}

func quoteParams() *QuoteParams {
	return &QuoteParams{
		Pool: &Pool{
			TokenAMint: testKey(2),
			TokenBMint: testKey(3),
			Enabled:    true,
			Stake:      zeroKey(),
			Fees: PoolFees{
				TradeFeeNumerator:           25,
				TradeFeeDenominator:         10000,
				ProtocolTradeFeeNumerator:   0,
				ProtocolTradeFeeDenominator: FeeDenominator,
			},
			Bootstrapping: Bootstrapping{
				ActivationPoint: 100,
				ActivationType:  uint8(ActivationTypeSlot),
			},
			CurveType: CurveTypeConstantProduct,
		},

		// Identity vaults: LP shares map one to one onto tokens.
		VaultA:            identityVault(2, 1000000),
		VaultB:            identityVault(3, 2000000),
		AVaultLpAmount:    1000000,
		BVaultLpAmount:    2000000,
		AVaultLpSupply:    1000000,
		BVaultLpSupply:    2000000,
		AVaultTokenAmount: 1000000,
		BVaultTokenAmount: 2000000,

		Clock: system.Clock{
			Slot:          200,
			UnixTimestamp: 1700000000,
		},

		InTokenMint: testKey(2),
		AmountIn:    10000,
	}
}

func TestGetQuote(t *testing.T) {
	quote, err := GetQuote(quoteParams())
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.EqualValues(t, 25, quote.FeeAmount)
	assert.EqualValues(t, 19752, quote.AmountOut)
}

func TestGetQuoteReverseDirection(t *testing.T) {
	params := quoteParams()
	params.InTokenMint = testKey(3)

	quote, err := GetQuote(params)
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.EqualValues(t, 25, quote.FeeAmount)
	assert.EqualValues(t, 4962, quote.AmountOut)
}

func TestGetQuoteLockedProfit(t *testing.T) {
	params := quoteParams()

	// Half of the reported profit is still locked, so only a million
	// tokens of the in vault are priced.
	params.VaultA.TotalAmount = 1050000
	params.VaultA.LockedProfitTracker = LockedProfitTracker{
		LastUpdatedLockedProfit: 100000,
		LastReport:              1700000000 - 250000,
		LockedProfitDegradation: 2000000,
	}
	params.AVaultLpAmount = 900000

	params.VaultB.TotalAmount = 3000000
	params.BVaultLpAmount = 2500000
	params.BVaultLpSupply = 3000000
	params.BVaultTokenAmount = 2400000

	params.Pool.Fees = PoolFees{
		TradeFeeNumerator:           30,
		TradeFeeDenominator:         10000,
		ProtocolTradeFeeNumerator:   20,
		ProtocolTradeFeeDenominator: 100,
	}
	params.AmountIn = 50000

	quote, err := GetQuote(params)
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.EqualValues(t, 150, quote.FeeAmount)
	assert.EqualValues(t, 131204, quote.AmountOut)
}

func TestGetQuoteSkipConditions(t *testing.T) {
	for name, mutate := range map[string]func(*QuoteParams){
		"disabled": func(p *QuoteParams) {
			p.Pool.Enabled = false
		},
		"stake pool liquidity": func(p *QuoteParams) {
			p.Pool.Stake = testKey(42)
		},
		"stable curve": func(p *QuoteParams) {
			p.Pool.CurveType = CurveTypeStable
		},
		"not activated by slot": func(p *QuoteParams) {
			p.Pool.Bootstrapping.ActivationPoint = p.Clock.Slot + 1
		},
		"not activated by timestamp": func(p *QuoteParams) {
			p.Pool.Bootstrapping.ActivationType = uint8(ActivationTypeTimestamp)
			p.Pool.Bootstrapping.ActivationPoint = uint64(p.Clock.UnixTimestamp) + 1
		},
		"insufficient vault liquidity": func(p *QuoteParams) {
			p.BVaultTokenAmount = 19000
		},
	} {
		params := quoteParams()
		mutate(params)

		quote, err := GetQuote(params)
		require.NoError(t, err, name)
		assert.Nil(t, quote, name)
	}
}

func TestGetQuoteActivationBoundary(t *testing.T) {
	params := quoteParams()
	params.Pool.Bootstrapping.ActivationPoint = params.Clock.Slot

	quote, err := GetQuote(params)
	require.NoError(t, err)
	assert.NotNil(t, quote)

	params = quoteParams()
	params.Pool.Bootstrapping.ActivationType = uint8(ActivationTypeTimestamp)
	params.Pool.Bootstrapping.ActivationPoint = uint64(params.Clock.UnixTimestamp)

	quote, err = GetQuote(params)
	require.NoError(t, err)
	assert.NotNil(t, quote)
}

func TestGetQuoteInvalidMint(t *testing.T) {
	params := quoteParams()
	params.InTokenMint = testKey(99)

	_, err := GetQuote(params)
	assert.Equal(t, ErrInvalidTokenMint, err)
}

func TestGetQuoteInvalidActivationType(t *testing.T) {
	params := quoteParams()
	params.Pool.Bootstrapping.ActivationType = 2

	_, err := GetQuote(params)
	assert.Equal(t, ErrInvalidActivation, err)
}

func TestGetQuoteMinimumFee(t *testing.T) {
	params := quoteParams()
	params.AmountIn = 10

	quote, err := GetQuote(params)
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.EqualValues(t, 1, quote.FeeAmount)
}
