package intermediary

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/lookuptable"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

// Number of base accounts a swap reserves before the venue windows.
const swapReservedAccountsQuantity = 10

// Processor executes the program's instructions over a set of loaded
// accounts, delegating cross-program calls to the invoker.
type Processor struct {
	log     *logrus.Entry
	invoker solana.Invoker
}

func NewProcessor(invoker solana.Invoker) *Processor {
	return &Processor{
		log:     logrus.StandardLogger().WithField("type", "intermediary/processor"),
		invoker: invoker,
	}
}

// Process decodes and dispatches one instruction.
func (p *Processor) Process(accounts []*solana.AccountInfo, data []byte) error {
	command, err := GetCommand(data)
	if err != nil {
		return err
	}

	switch command {
	case CommandInitialize:
		var args InitializeArgs
		if err := args.Unmarshal(data); err != nil {
			return err
		}
		return p.initialize(accounts, args)
	case CommandDepositFunds:
		var args DepositFundsArgs
		if err := args.Unmarshal(data); err != nil {
			return err
		}
		return p.depositFunds(accounts, args)
	case CommandWithdrawFunds:
		var args WithdrawFundsArgs
		if err := args.Unmarshal(data); err != nil {
			return err
		}
		return p.withdrawFunds(accounts, args)
	case CommandSwap:
		var args SwapArgs
		if err := args.Unmarshal(data); err != nil {
			return err
		}
		return p.swap(accounts, args)
	}

	return solana.ErrIncorrectInstruction
}

func (p *Processor) initialize(accounts []*solana.AccountInfo, args InitializeArgs) error {
	var cursor int
	next := func() *solana.AccountInfo {
		account, err := solana.NextAccount(accounts, &cursor)
		if err != nil {
			return nil
		}
		return account
	}

	intermediary := next()
	manager := next()
	trader := next()
	wSolTokenAccount := next()
	temporaryWSolTokenAccount := next()
	commonAddressLookupTable := next()
	selfAuthority := next()
	wSolTokenMint := next()
	systemProgram := next()
	rent := next()
	tokenProgram := next()
	addressLookupTableProgram := next()
	if addressLookupTableProgram == nil {
		return solana.ErrNotEnoughAccounts
	}

	createLookupTable, lookupTableAddress, err := lookuptable.CreateLookupTable(selfAuthority.Key, manager.Key, args.RecentSlot)
	if err != nil {
		return err
	}

	expectedWSolTokenAccount, err := CreateTokenAccountAddress(intermediary.Key, token.NativeMint, args.WSolTokenAccountBump)
	if err != nil {
		return err
	}
	expectedTemporary, err := CreateTemporaryWSolTokenAccountAddress(intermediary.Key, args.TemporaryWSolTokenAccountBump)
	if err != nil {
		return err
	}
	expectedSelfAuthority, err := CreateSelfAuthorityAddress(intermediary.Key, args.SelfAuthorityBump)
	if err != nil {
		return err
	}

	if !allDistinct(
		intermediary.Key,
		manager.Key,
		trader.Key,
		wSolTokenAccount.Key,
		temporaryWSolTokenAccount.Key,
		commonAddressLookupTable.Key,
		selfAuthority.Key,
		wSolTokenMint.Key,
		systemProgram.Key,
		rent.Key,
		tokenProgram.Key,
		addressLookupTableProgram.Key,
	) ||
		!bytes.Equal(wSolTokenAccount.Key, expectedWSolTokenAccount) ||
		!bytes.Equal(temporaryWSolTokenAccount.Key, expectedTemporary) ||
		!bytes.Equal(selfAuthority.Key, expectedSelfAuthority) ||
		!bytes.Equal(commonAddressLookupTable.Key, lookupTableAddress) ||
		!bytes.Equal(wSolTokenMint.Key, token.NativeMint) ||
		!bytes.Equal(systemProgram.Key, system.SystemAccount) ||
		!bytes.Equal(rent.Key, system.RentSysVar) ||
		!bytes.Equal(tokenProgram.Key, token.ProgramKey) ||
		!bytes.Equal(addressLookupTableProgram.Key, lookuptable.ProgramKey) {
		return ErrorInvalidAccountPubkey
	}

	lookupTableAccounts := []ed25519.PublicKey{
		intermediary.Key,
		wSolTokenAccount.Key,
		selfAuthority.Key,
	}
	if len(lookupTableAccounts) != QuantityOfMuchUsedDynamicAccounts {
		return ErrorInvalidLogic
	}
	staticAccounts := MuchUsedStaticAccounts()
	if !allDistinct(staticAccounts...) {
		return ErrorInvalidLogic
	}
	lookupTableAccounts = append(lookupTableAccounts, staticAccounts...)

	if !intermediary.IsWritable ||
		!intermediary.IsSigner ||
		!manager.IsWritable ||
		!manager.IsSigner ||
		!trader.IsSigner ||
		!wSolTokenAccount.IsWritable ||
		!commonAddressLookupTable.IsWritable {
		return ErrorInvalidAccountConfigurationFlags
	}
	if manager.Lamports == 0 || trader.Lamports == 0 {
		return ErrorInvalidAccountLamports
	}

	record := NewIntermediary(
		manager.Key,
		trader.Key,
		wSolTokenAccount.Key,
		temporaryWSolTokenAccount.Key,
		commonAddressLookupTable.Key,
		selfAuthority.Key,
		args.WSolTokenAccountBump,
		args.TemporaryWSolTokenAccountBump,
		args.SelfAuthorityBump,
	)

	rentState, err := system.GetRentFromAccount(rent)
	if err != nil {
		return err
	}
	intermediaryRentExemptionBalance := rentState.MinimumBalance(IntermediarySize)
	tokenAccountRentExemptionBalance := rentState.MinimumBalance(token.AccountSize)

	err = p.invoker.Invoke(
		system.CreateAccount(manager.Key, intermediary.Key, ProgramKey, intermediaryRentExemptionBalance, IntermediarySize),
		[]*solana.AccountInfo{manager, intermediary},
	)
	if err != nil {
		return err
	}
	intermediary.Data = record.Marshal()

	err = p.invoker.InvokeSigned(
		system.CreateAccount(manager.Key, wSolTokenAccount.Key, tokenProgram.Key, tokenAccountRentExemptionBalance+args.LamportsToTreasury, token.AccountSize),
		[]*solana.AccountInfo{manager, wSolTokenAccount},
		TokenAccountSeeds(intermediary.Key, token.NativeMint, args.WSolTokenAccountBump),
	)
	if err != nil {
		return err
	}

	err = p.invoker.Invoke(
		token.InitializeAccount(wSolTokenAccount.Key, wSolTokenMint.Key, selfAuthority.Key),
		[]*solana.AccountInfo{wSolTokenAccount, wSolTokenMint, selfAuthority, rent},
	)
	if err != nil {
		return err
	}

	err = p.invoker.Invoke(
		createLookupTable,
		[]*solana.AccountInfo{commonAddressLookupTable, selfAuthority, manager, systemProgram},
	)
	if err != nil {
		return err
	}

	return p.invoker.InvokeSigned(
		lookuptable.ExtendLookupTable(commonAddressLookupTable.Key, selfAuthority.Key, manager.Key, lookupTableAccounts),
		[]*solana.AccountInfo{commonAddressLookupTable, selfAuthority, manager, systemProgram},
		SelfAuthoritySeeds(intermediary.Key, args.SelfAuthorityBump),
	)
}

func (p *Processor) depositFunds(accounts []*solana.AccountInfo, args DepositFundsArgs) error {
	var cursor int
	intermediary, err := solana.NextAccount(accounts, &cursor)
	if err != nil {
		return err
	}
	manager, err := solana.NextAccount(accounts, &cursor)
	if err != nil {
		return err
	}
	wSolTokenAccount, err := solana.NextAccount(accounts, &cursor)
	if err != nil {
		return err
	}
	systemProgram, err := solana.NextAccount(accounts, &cursor)
	if err != nil {
		return err
	}
	tokenProgram, err := solana.NextAccount(accounts, &cursor)
	if err != nil {
		return err
	}

	if !bytes.Equal(systemProgram.Key, system.SystemAccount) || !bytes.Equal(tokenProgram.Key, token.ProgramKey) {
		return ErrorInvalidAccountPubkey
	}
	if !manager.IsWritable || !manager.IsSigner || !wSolTokenAccount.IsWritable {
		return ErrorInvalidAccountConfigurationFlags
	}
	if manager.Lamports < args.LamportsToTreasury {
		return ErrorInvalidAccountLamports
	}

	record, err := GetIntermediary(intermediary)
	if err != nil {
		return ErrorInvalidLogic
	}
	if !record.IsInitialized() {
		return ErrorIntermediaryIsNotInitialized
	}
	if !bytes.Equal(manager.Key, record.Manager) {
		return ErrorIntermediaryInvalidManager
	}
	expectedWSolTokenAccount, err := CreateTokenAccountAddress(intermediary.Key, token.NativeMint, record.WSolTokenAccountBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(wSolTokenAccount.Key, record.WSolTokenAccount) || !bytes.Equal(wSolTokenAccount.Key, expectedWSolTokenAccount) {
		return ErrorIntermediaryInvalidWSolTokenAccount
	}

	err = p.invoker.Invoke(
		system.Transfer(manager.Key, wSolTokenAccount.Key, args.LamportsToTreasury),
		[]*solana.AccountInfo{manager, wSolTokenAccount},
	)
	if err != nil {
		return err
	}

	return p.invoker.Invoke(
		token.SyncNative(wSolTokenAccount.Key),
		[]*solana.AccountInfo{wSolTokenAccount},
	)
}

func (p *Processor) withdrawFunds(accounts []*solana.AccountInfo, args WithdrawFundsArgs) error {
	var cursor int
	next := func() *solana.AccountInfo {
		account, err := solana.NextAccount(accounts, &cursor)
		if err != nil {
			return nil
		}
		return account
	}

	intermediary := next()
	manager := next()
	wSolTokenAccount := next()
	temporaryWSolTokenAccount := next()
	selfAuthority := next()
	wSolTokenMint := next()
	systemProgram := next()
	rent := next()
	tokenProgram := next()
	if tokenProgram == nil {
		return solana.ErrNotEnoughAccounts
	}

	if !bytes.Equal(wSolTokenMint.Key, token.NativeMint) ||
		!bytes.Equal(systemProgram.Key, system.SystemAccount) ||
		!bytes.Equal(rent.Key, system.RentSysVar) ||
		!bytes.Equal(tokenProgram.Key, token.ProgramKey) {
		return ErrorInvalidAccountPubkey
	}
	if !manager.IsWritable || !manager.IsSigner || !wSolTokenAccount.IsWritable || !temporaryWSolTokenAccount.IsWritable {
		return ErrorInvalidAccountConfigurationFlags
	}

	record, err := GetIntermediary(intermediary)
	if err != nil {
		return ErrorInvalidLogic
	}
	if !record.IsInitialized() {
		return ErrorIntermediaryIsNotInitialized
	}
	if !bytes.Equal(manager.Key, record.Manager) {
		return ErrorIntermediaryInvalidManager
	}

	expectedWSolTokenAccount, err := CreateTokenAccountAddress(intermediary.Key, token.NativeMint, record.WSolTokenAccountBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(wSolTokenAccount.Key, record.WSolTokenAccount) || !bytes.Equal(wSolTokenAccount.Key, expectedWSolTokenAccount) {
		return ErrorIntermediaryInvalidWSolTokenAccount
	}
	expectedTemporary, err := CreateTemporaryWSolTokenAccountAddress(intermediary.Key, record.TemporaryWSolTokenAccountBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(temporaryWSolTokenAccount.Key, record.TemporaryWSolTokenAccount) || !bytes.Equal(temporaryWSolTokenAccount.Key, expectedTemporary) {
		return ErrorIntermediaryInvalidTemporaryWSolTokenAccount
	}

	var treasury token.Account
	if !treasury.Unmarshal(wSolTokenAccount.Data) {
		return ErrorInvalidAccountData
	}
	if args.LamportsFromTreasury > treasury.Amount {
		return ErrorTokenAccountInsufficientAmount
	}

	expectedSelfAuthority, err := CreateSelfAuthorityAddress(intermediary.Key, record.SelfAuthorityBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(selfAuthority.Key, record.SelfAuthority) || !bytes.Equal(selfAuthority.Key, expectedSelfAuthority) {
		return ErrorIntermediaryInvalidAuthority
	}

	rentState, err := system.GetRentFromAccount(rent)
	if err != nil {
		return err
	}
	tokenAccountRentExemptionBalance := rentState.MinimumBalance(token.AccountSize)
	if manager.Lamports < tokenAccountRentExemptionBalance {
		return ErrorInvalidAccountLamports
	}

	err = p.invoker.InvokeSigned(
		system.CreateAccount(manager.Key, temporaryWSolTokenAccount.Key, tokenProgram.Key, tokenAccountRentExemptionBalance, token.AccountSize),
		[]*solana.AccountInfo{manager, temporaryWSolTokenAccount},
		TemporaryWSolTokenAccountSeeds(intermediary.Key, record.TemporaryWSolTokenAccountBump),
	)
	if err != nil {
		return err
	}

	err = p.invoker.Invoke(
		token.InitializeAccount(temporaryWSolTokenAccount.Key, wSolTokenMint.Key, manager.Key),
		[]*solana.AccountInfo{temporaryWSolTokenAccount, wSolTokenMint, manager, rent},
	)
	if err != nil {
		return err
	}

	err = p.invoker.InvokeSigned(
		token.Transfer(wSolTokenAccount.Key, temporaryWSolTokenAccount.Key, selfAuthority.Key, args.LamportsFromTreasury),
		[]*solana.AccountInfo{wSolTokenAccount, temporaryWSolTokenAccount, selfAuthority},
		SelfAuthoritySeeds(intermediary.Key, record.SelfAuthorityBump),
	)
	if err != nil {
		return err
	}

	// Closing the temporary account releases both the withdrawn amount
	// and its rent back to the manager as plain lamports.
	return p.invoker.Invoke(
		token.CloseAccount(temporaryWSolTokenAccount.Key, manager.Key, manager.Key),
		[]*solana.AccountInfo{temporaryWSolTokenAccount, manager, manager},
	)
}

func (p *Processor) swap(accounts []*solana.AccountInfo, args SwapArgs) error {
	// Only the wSOL to token direction is supported.
	if !args.IsFromQuoteToToken || !bytes.Equal(args.QuoteMint, token.NativeMint) {
		return ErrorNotImplemented
	}
	if bytes.Equal(args.TokenMint, args.QuoteMint) {
		return ErrorEqualMints
	}
	if args.AmountIn == 0 {
		return ErrorZeroAmountIn
	}
	if len(args.Dexes) == 0 {
		return ErrorZeroDexesPresented
	}

	var cursor int
	next := func() *solana.AccountInfo {
		account, err := solana.NextAccount(accounts, &cursor)
		if err != nil {
			return nil
		}
		return account
	}

	intermediary := next()
	trader := next()
	quoteTokenAccount := next()
	selfAuthority := next()
	tokenAccount := next()
	quoteTokenMint := next()
	tokenMint := next()
	systemProgram := next()
	rent := next()
	tokenProgram := next()
	if tokenProgram == nil {
		return solana.ErrNotEnoughAccounts
	}

	if !bytes.Equal(args.TokenMint, tokenMint.Key) {
		return ErrorInvalidTokenMint
	}
	if args.WithChecks {
		expectedTokenAccount, err := CreateTokenAccountAddress(intermediary.Key, tokenMint.Key, args.TokenAccountBump)
		if err != nil {
			return err
		}
		if !bytes.Equal(tokenAccount.Key, expectedTokenAccount) ||
			bytes.Equal(quoteTokenMint.Key, tokenMint.Key) ||
			!bytes.Equal(quoteTokenMint.Key, token.NativeMint) ||
			!bytes.Equal(systemProgram.Key, system.SystemAccount) ||
			!bytes.Equal(rent.Key, system.RentSysVar) ||
			!bytes.Equal(tokenProgram.Key, token.ProgramKey) {
			return ErrorInvalidAccountPubkey
		}
		if !trader.IsSigner || !trader.IsWritable || !quoteTokenAccount.IsWritable || !tokenAccount.IsWritable {
			return ErrorInvalidAccountConfigurationFlags
		}
	}

	rentState, err := system.GetRentFromAccount(rent)
	if err != nil {
		return err
	}
	tokenAccountRentExemptionBalance := rentState.MinimumBalance(token.AccountSize)
	if trader.Lamports < tokenAccountRentExemptionBalance {
		return ErrorInvalidAccountLamports
	}

	record, err := GetIntermediary(intermediary)
	if err != nil {
		return ErrorInvalidLogic
	}
	if !record.IsInitialized() {
		return ErrorIntermediaryIsNotInitialized
	}
	if !bytes.Equal(trader.Key, record.Trader) {
		return ErrorIntermediaryInvalidTrader
	}
	expectedQuoteTokenAccount, err := CreateTokenAccountAddress(intermediary.Key, token.NativeMint, record.WSolTokenAccountBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(quoteTokenAccount.Key, record.WSolTokenAccount) || !bytes.Equal(quoteTokenAccount.Key, expectedQuoteTokenAccount) {
		return ErrorIntermediaryInvalidWSolTokenAccount
	}
	expectedSelfAuthority, err := CreateSelfAuthorityAddress(intermediary.Key, record.SelfAuthorityBump)
	if err != nil {
		return err
	}
	if !bytes.Equal(selfAuthority.Key, record.SelfAuthority) || !bytes.Equal(selfAuthority.Key, expectedSelfAuthority) {
		return ErrorIntermediaryInvalidAuthority
	}

	var quoteState token.Account
	if !quoteState.Unmarshal(quoteTokenAccount.Data) {
		return ErrorInvalidAccountData
	}
	initialQuoteTokenAmount := quoteState.Amount
	if args.AmountIn > initialQuoteTokenAmount {
		return ErrorTokenAccountInsufficientAmount
	}

	var initialTokenAmount uint64
	if tokenAccount.IsDataEmpty() {
		err = p.invoker.InvokeSigned(
			system.CreateAccount(trader.Key, tokenAccount.Key, tokenProgram.Key, tokenAccountRentExemptionBalance, token.AccountSize),
			[]*solana.AccountInfo{trader, tokenAccount},
			TokenAccountSeeds(intermediary.Key, tokenMint.Key, args.TokenAccountBump),
		)
		if err != nil {
			return err
		}

		err = p.invoker.Invoke(
			token.InitializeAccount(tokenAccount.Key, tokenMint.Key, selfAuthority.Key),
			[]*solana.AccountInfo{tokenAccount, tokenMint, selfAuthority, rent},
		)
		if err != nil {
			return err
		}
	} else {
		var tokenState token.Account
		if !tokenState.Unmarshal(tokenAccount.Data) {
			return ErrorInvalidAccountData
		}
		initialTokenAmount = tokenState.Amount
	}

	base := &baseData{
		intermediary: intermediary,
		record:       record,

		selfAuthority:     selfAuthority,
		quoteTokenAccount: quoteTokenAccount,
		tokenAccount:      tokenAccount,

		tokenMint: args.TokenMint,
		quoteMint: args.QuoteMint,

		amountIn:     args.AmountIn,
		minAmountOut: args.MinAmountOut,

		isFromQuoteToToken: args.IsFromQuoteToToken,
		withChecks:         args.WithChecks,
	}

	adapters := make([]venueAdapter, 0, len(args.Dexes))
	seen := make(map[Dex]struct{}, len(args.Dexes))
	for _, dex := range args.Dexes {
		if _, ok := seen[dex]; ok {
			return ErrorRepeatableDex
		}
		seen[dex] = struct{}{}

		adapter, err := dex.adapter()
		if err != nil {
			return err
		}
		adapters = append(adapters, adapter)
	}

	var matchedDex Dex
	var matched *SwapCalculationResult
	firstAccountIndex := swapReservedAccountsQuantity
	for i, adapter := range adapters {
		dex := args.Dexes[i]

		quantity := adapter.swapAccountsQuantity()
		if firstAccountIndex+quantity > len(accounts) {
			return solana.ErrNotEnoughAccounts
		}
		window := accounts[firstAccountIndex : firstAccountIndex+quantity]
		firstAccountIndex += quantity

		// A discrepancy between the window accounts and the trade is a
		// logical error, not a reason to try the next venue.
		result, err := adapter.calculateSwap(base, window)
		if err != nil {
			p.log.Warnf("0Fail. Invalid CPI accounts for Dex %s,", dex)
			return err
		}
		if result == nil {
			continue
		}

		if result.AmountOut >= args.MinAmountOut {
			matchedDex, matched = dex, result
			if err := adapter.swap(p.invoker, base, window); err != nil {
				p.log.Warnf("1Fail. Invalid CPI accounts for Dex %s,", dex)
				return err
			}
			break
		}
	}

	if matched == nil {
		p.log.Warnf(
			"3Fail. No matching dex found. In_mint: %s, out_mint: %s, amount_in : %d, min_amount_out: %d.",
			base58.Encode(args.QuoteMint),
			base58.Encode(args.TokenMint),
			args.AmountIn,
			args.MinAmountOut,
		)
		return ErrorInvalidSwapConditions
	}

	err = p.invoker.Invoke(
		token.SyncNative(quoteTokenAccount.Key),
		[]*solana.AccountInfo{quoteTokenAccount},
	)
	if err != nil {
		return err
	}

	var newTokenState, newQuoteState token.Account
	if !newTokenState.Unmarshal(tokenAccount.Data) || !newQuoteState.Unmarshal(quoteTokenAccount.Data) {
		return ErrorInvalidAccountData
	}
	newTokenAmount := newTokenState.Amount

	if newQuoteState.Amount < initialQuoteTokenAmount-args.AmountIn ||
		newTokenAmount < initialTokenAmount ||
		newTokenAmount-initialTokenAmount < args.MinAmountOut {
		p.log.Warnf(
			"2Fail. Invalid calculation logic. Dex: %s, pool: %s, in_mint: %s, out_mint: %s, amount_in : %d, amount_in_fee: %d, amount_out: %d, min_amount_out: %d.",
			matchedDex,
			base58.Encode(matched.Pool),
			base58.Encode(args.QuoteMint),
			base58.Encode(args.TokenMint),
			args.AmountIn,
			matched.AmountInFee,
			matched.AmountOut,
			args.MinAmountOut,
		)
		return ErrorTokenAccountInvalidAmount
	}

	p.log.Infof(
		"0Success. Dex: %s, pool: %s, in_mint: %s, out_mint: %s, amount_in : %d, amount_in_fee: %d, amount_out: %d, min_amount_out: %d.",
		matchedDex,
		base58.Encode(matched.Pool),
		base58.Encode(args.QuoteMint),
		base58.Encode(args.TokenMint),
		args.AmountIn,
		matched.AmountInFee,
		newTokenAmount-initialTokenAmount,
		args.MinAmountOut,
	)
	return nil
}

func allDistinct(keys ...ed25519.PublicKey) bool {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[string(key)]; ok {
			return false
		}
		seen[string(key)] = struct{}{}
	}
	return true
}
