package intermediary

import (
	"bytes"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/meteora"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

// meteoraV1Adapter routes a swap through the dynamic AMM.
//
// Window layout: program, clock, pool, a vault, b vault, a token
// vault, b token vault, a vault lp mint, b vault lp mint, a vault lp,
// b vault lp, protocol token fee, vault program, token program.
type meteoraV1Adapter struct{}

func (meteoraV1Adapter) swapAccountsQuantity() int {
	return 14
}

func (meteoraV1Adapter) calculateSwap(base *baseData, window []*solana.AccountInfo) (*SwapCalculationResult, error) {
	program, clockInfo, pool := window[0], window[1], window[2]
	aVault, bVault := window[3], window[4]
	aTokenVault, bTokenVault := window[5], window[6]
	aVaultLpMint, bVaultLpMint := window[7], window[8]
	aVaultLp, bVaultLp := window[9], window[10]
	protocolTokenFee := window[11]
	vaultProgram := window[12]

	if !bytes.Equal(program.Key, meteora.ProgramKey) || !bytes.Equal(vaultProgram.Key, meteora.VaultProgramKey) {
		return nil, ErrorInvalidAccountPubkey
	}
	if base.withChecks &&
		(!pool.IsWritable ||
			!aVault.IsWritable ||
			!bVault.IsWritable ||
			!aTokenVault.IsWritable ||
			!bTokenVault.IsWritable ||
			!aVaultLpMint.IsWritable ||
			!bVaultLpMint.IsWritable ||
			!aVaultLp.IsWritable ||
			!bVaultLp.IsWritable ||
			!protocolTokenFee.IsWritable) {
		return nil, ErrorInvalidAccountConfigurationFlags
	}

	clock, err := system.GetClockFromAccount(clockInfo)
	if err != nil {
		return nil, err
	}

	var poolState meteora.Pool
	if err := poolState.Unmarshal(pool.Data); err != nil {
		return nil, err
	}
	var vaultA, vaultB meteora.Vault
	if err := vaultA.Unmarshal(aVault.Data); err != nil {
		return nil, err
	}
	if err := vaultB.Unmarshal(bVault.Data); err != nil {
		return nil, err
	}

	var aLp, bLp, aToken, bToken token.Account
	if !aLp.Unmarshal(aVaultLp.Data) || !bLp.Unmarshal(bVaultLp.Data) ||
		!aToken.Unmarshal(aTokenVault.Data) || !bToken.Unmarshal(bTokenVault.Data) {
		return nil, ErrorInvalidAccountData
	}
	var aLpMint, bLpMint token.Mint
	if !aLpMint.Unmarshal(aVaultLpMint.Data) || !bLpMint.Unmarshal(bVaultLpMint.Data) {
		return nil, ErrorInvalidAccountData
	}

	inTokenMint := base.tokenMint
	if base.isFromQuoteToToken {
		inTokenMint = base.quoteMint
	}

	quote, err := meteora.GetQuote(&meteora.QuoteParams{
		Pool: &poolState,

		VaultA: &vaultA,
		VaultB: &vaultB,

		AVaultLpAmount: aLp.Amount,
		BVaultLpAmount: bLp.Amount,

		AVaultLpSupply: aLpMint.Supply,
		BVaultLpSupply: bLpMint.Supply,

		AVaultTokenAmount: aToken.Amount,
		BVaultTokenAmount: bToken.Amount,

		Clock: clock,

		InTokenMint: inTokenMint,
		AmountIn:    base.amountIn,
	})
	if err != nil {
		if err == meteora.ErrInvalidTokenMint {
			return nil, ErrorInvalidTokenMint
		}
		return nil, err
	}
	if quote == nil {
		return nil, nil
	}

	return &SwapCalculationResult{
		Pool:        pool.Key,
		AmountInFee: quote.FeeAmount,
		AmountOut:   quote.AmountOut,
	}, nil
}

func (meteoraV1Adapter) swap(invoker solana.Invoker, base *baseData, window []*solana.AccountInfo) error {
	program, pool := window[0], window[2]
	aVault, bVault := window[3], window[4]
	aTokenVault, bTokenVault := window[5], window[6]
	aVaultLpMint, bVaultLpMint := window[7], window[8]
	aVaultLp, bVaultLp := window[9], window[10]
	protocolTokenFee := window[11]
	vaultProgram, tokenProgram := window[12], window[13]

	source, destination := base.tokenAccount, base.quoteTokenAccount
	if base.isFromQuoteToToken {
		source, destination = base.quoteTokenAccount, base.tokenAccount
	}

	instruction := meteora.Swap(program.Key, meteora.SwapInstructionAccounts{
		Pool:                 pool.Key,
		UserSourceToken:      source.Key,
		UserDestinationToken: destination.Key,
		AVault:               aVault.Key,
		BVault:               bVault.Key,
		ATokenVault:          aTokenVault.Key,
		BTokenVault:          bTokenVault.Key,
		AVaultLpMint:         aVaultLpMint.Key,
		BVaultLpMint:         bVaultLpMint.Key,
		AVaultLp:             aVaultLp.Key,
		BVaultLp:             bVaultLp.Key,
		ProtocolTokenFee:     protocolTokenFee.Key,
		User:                 base.selfAuthority.Key,
		VaultProgram:         vaultProgram.Key,
		TokenProgram:         tokenProgram.Key,
	}, base.amountIn, base.minAmountOut)

	return invoker.InvokeSigned(
		instruction,
		[]*solana.AccountInfo{
			pool,
			source,
			destination,
			aVault,
			bVault,
			aTokenVault,
			bTokenVault,
			aVaultLpMint,
			bVaultLpMint,
			aVaultLp,
			bVaultLp,
			protocolTokenFee,
			base.selfAuthority,
			vaultProgram,
			tokenProgram,
		},
		base.selfAuthoritySeeds(),
	)
}
