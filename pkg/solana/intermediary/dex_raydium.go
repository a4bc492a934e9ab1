package intermediary

import (
	"bytes"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/raydium"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

// raydiumV4Adapter routes a swap through the hybrid AMM.
//
// Window layout: program, clock, token program, amm pool, amm
// authority, amm open orders, amm coin vault, amm pc vault, market
// program, market, bids, asks, event queue, market coin vault, market
// pc vault, market vault signer.
type raydiumV4Adapter struct{}

func (raydiumV4Adapter) swapAccountsQuantity() int {
	return 16
}

func (raydiumV4Adapter) calculateSwap(base *baseData, window []*solana.AccountInfo) (*SwapCalculationResult, error) {
	program, clockInfo, tokenProgram := window[0], window[1], window[2]
	ammPool, ammAuthority, ammOpenOrders := window[3], window[4], window[5]
	ammCoinVault, ammPcVault := window[6], window[7]
	market := window[9]
	marketBids, marketAsks, marketEventQueue := window[10], window[11], window[12]
	marketCoinVault, marketPcVault := window[13], window[14]

	if !bytes.Equal(program.Key, raydium.ProgramKey) {
		return nil, ErrorInvalidAccountPubkey
	}
	if base.withChecks &&
		(!ammPool.IsWritable ||
			!ammOpenOrders.IsWritable ||
			!ammCoinVault.IsWritable ||
			!ammPcVault.IsWritable ||
			!market.IsWritable ||
			!marketBids.IsWritable ||
			!marketAsks.IsWritable ||
			!marketEventQueue.IsWritable ||
			!marketCoinVault.IsWritable ||
			!marketPcVault.IsWritable) {
		return nil, ErrorInvalidAccountConfigurationFlags
	}

	if !bytes.Equal(tokenProgram.Key, token.ProgramKey) {
		return nil, ErrorInvalidSplTokenProgram
	}

	// An uninitialized pool is rejected like a wrong owner or size:
	// the caller wired in a broken account, not a halted market.
	amm, err := raydium.GetAmmInfo(ammPool, program.Key)
	if err != nil {
		switch err {
		case raydium.ErrInvalidStatus:
			return nil, ErrorInvalidStatus
		case raydium.ErrInvalidAmmAccountOwner:
			return nil, ErrorInvalidAmmAccountOwner
		case raydium.ErrExpectedAccount:
			return nil, ErrorExpectedAccount
		}
		return nil, err
	}

	coinVault, err := unpackTokenAccount(ammCoinVault)
	if err != nil {
		return nil, err
	}
	pcVault, err := unpackTokenAccount(ammPcVault)
	if err != nil {
		return nil, err
	}

	// The program only routes quote to token trades, so the quote
	// account is always the source.
	userSource, err := unpackTokenAccount(base.quoteTokenAccount)
	if err != nil {
		return nil, err
	}
	userDestination, err := unpackTokenAccount(base.tokenAccount)
	if err != nil {
		return nil, err
	}

	clock, err := system.GetClockFromAccount(clockInfo)
	if err != nil {
		return nil, err
	}

	quote, err := raydium.GetQuote(&raydium.QuoteParams{
		Amm: amm,

		CoinVaultAmount: coinVault.Amount,
		PcVaultAmount:   pcVault.Amount,
		CoinVaultMint:   coinVault.Mint,
		PcVaultMint:     pcVault.Mint,

		Market:     market,
		OpenOrders: ammOpenOrders,
		EventQueue: marketEventQueue,

		Authority: ammAuthority.Key,

		Clock: clock,

		SourceMint:      userSource.Mint,
		DestinationMint: userDestination.Mint,
		AmountIn:        base.amountIn,
	})
	if err != nil {
		switch err {
		case raydium.ErrInvalidUserToken:
			return nil, ErrorInvalidUserToken
		case raydium.ErrInvalidMarket:
			return nil, ErrorInvalidMarket
		case raydium.ErrInvalidOwner:
			return nil, ErrorInvalidOwner
		case raydium.ErrInvalidOpenOrders:
			return nil, ErrorInvalidOpenOrders
		case raydium.ErrWrongEventQueue:
			return nil, ErrorWrongEventQueueAccount
		}
		return nil, err
	}
	if quote == nil {
		return nil, nil
	}

	return &SwapCalculationResult{
		Pool:        ammPool.Key,
		AmountInFee: quote.FeeAmount,
		AmountOut:   quote.AmountOut,
	}, nil
}

func (raydiumV4Adapter) swap(invoker solana.Invoker, base *baseData, window []*solana.AccountInfo) error {
	program, tokenProgram := window[0], window[2]
	ammPool, ammAuthority, ammOpenOrders := window[3], window[4], window[5]
	ammCoinVault, ammPcVault := window[6], window[7]
	marketProgram, market := window[8], window[9]
	marketBids, marketAsks, marketEventQueue := window[10], window[11], window[12]
	marketCoinVault, marketPcVault, marketVaultSigner := window[13], window[14], window[15]

	source, destination := base.tokenAccount, base.quoteTokenAccount
	if base.isFromQuoteToToken {
		source, destination = base.quoteTokenAccount, base.tokenAccount
	}

	instruction := raydium.Swap(program.Key, raydium.SwapInstructionAccounts{
		TokenProgram: tokenProgram.Key,

		AmmPool:       ammPool.Key,
		AmmAuthority:  ammAuthority.Key,
		AmmOpenOrders: ammOpenOrders.Key,
		AmmCoinVault:  ammCoinVault.Key,
		AmmPcVault:    ammPcVault.Key,

		MarketProgram:     marketProgram.Key,
		Market:            market.Key,
		MarketBids:        marketBids.Key,
		MarketAsks:        marketAsks.Key,
		MarketEventQueue:  marketEventQueue.Key,
		MarketCoinVault:   marketCoinVault.Key,
		MarketPcVault:     marketPcVault.Key,
		MarketVaultSigner: marketVaultSigner.Key,

		UserTokenSource:      source.Key,
		UserTokenDestination: destination.Key,
		UserSourceOwner:      base.selfAuthority.Key,
	}, base.amountIn, base.minAmountOut)

	return invoker.InvokeSigned(
		instruction,
		[]*solana.AccountInfo{
			tokenProgram,
			ammPool,
			ammAuthority,
			ammOpenOrders,
			ammCoinVault,
			ammPcVault,
			marketProgram,
			market,
			marketBids,
			marketAsks,
			marketEventQueue,
			marketCoinVault,
			marketPcVault,
			marketVaultSigner,
			source,
			destination,
			base.selfAuthority,
		},
		base.selfAuthoritySeeds(),
	)
}

// unpackTokenAccount decodes a token account, requiring it to be owned
// by the token program.
func unpackTokenAccount(info *solana.AccountInfo) (*token.Account, error) {
	if !bytes.Equal(info.Owner, token.ProgramKey) {
		return nil, ErrorExpectedAccount
	}

	var account token.Account
	if !account.Unmarshal(info.Data) {
		return nil, ErrorExpectedAccount
	}
	return &account, nil
}
