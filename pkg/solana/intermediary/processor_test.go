package intermediary

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/lookuptable"
	"github.com/LetMut1/Dexswap/pkg/solana/meteora"
	"github.com/LetMut1/Dexswap/pkg/solana/raydium"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

type mockInvoker struct {
	instructions []solana.Instruction
	signedSeeds  [][][]byte

	onInvoke func(instruction solana.Instruction, accounts []*solana.AccountInfo) error
}

func (m *mockInvoker) Invoke(instruction solana.Instruction, accounts []*solana.AccountInfo) error {
	m.instructions = append(m.instructions, instruction)
	if m.onInvoke != nil {
		return m.onInvoke(instruction, accounts)
	}
	return nil
}

func (m *mockInvoker) InvokeSigned(instruction solana.Instruction, accounts []*solana.AccountInfo, signers ...[][]byte) error {
	m.signedSeeds = append(m.signedSeeds, signers...)
	return m.Invoke(instruction, accounts)
}

func rentData() []byte {
	rent := system.Rent{
		LamportsPerByteYear: 3480,
		ExemptionThreshold:  2.0,
		BurnPercent:         50,
	}
	return rent.Marshal()
}

func clockData() []byte {
	clock := system.Clock{
		Slot:          200,
		UnixTimestamp: 1700000000,
	}
	return clock.Marshal()
}

func tokenAccountData(mint, owner ed25519.PublicKey, amount uint64) []byte {
	account := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	return account.Marshal()
}

func mintData(supply uint64) []byte {
	mint := token.Mint{
		Supply:        supply,
		Decimals:      9,
		IsInitialized: true,
	}
	return mint.Marshal()
}

func creditTokenAccount(t *testing.T, info *solana.AccountInfo, amount uint64) {
	var account token.Account
	require.True(t, account.Unmarshal(info.Data))
	account.Amount += amount
	info.Data = account.Marshal()
}

func debitTokenAccount(t *testing.T, info *solana.AccountInfo, amount uint64) {
	var account token.Account
	require.True(t, account.Unmarshal(info.Data))
	require.GreaterOrEqual(t, account.Amount, amount)
	account.Amount -= amount
	info.Data = account.Marshal()
}

func tokenAccountAmount(t *testing.T, info *solana.AccountInfo) uint64 {
	var account token.Account
	require.True(t, account.Unmarshal(info.Data))
	return account.Amount
}

// custodyFixture derives one intermediary with all of its PDA accounts.
type custodyFixture struct {
	intermediaryKey ed25519.PublicKey
	managerKey      ed25519.PublicKey
	traderKey       ed25519.PublicKey
	tableKey        ed25519.PublicKey

	wSolKey      ed25519.PublicKey
	temporaryKey ed25519.PublicKey
	authorityKey ed25519.PublicKey

	wSolBump      uint8
	temporaryBump uint8
	authorityBump uint8

	record Intermediary
}

func newCustodyFixture(t *testing.T) *custodyFixture {
	f := &custodyFixture{
		intermediaryKey: testKey(1),
		managerKey:      testKey(2),
		traderKey:       testKey(3),
		tableKey:        testKey(4),
	}

	var err error
	f.wSolKey, f.wSolBump, err = FindTokenAccountAddress(f.intermediaryKey, token.NativeMint)
	require.NoError(t, err)
	f.temporaryKey, f.temporaryBump, err = FindTemporaryWSolTokenAccountAddress(f.intermediaryKey)
	require.NoError(t, err)
	f.authorityKey, f.authorityBump, err = FindSelfAuthorityAddress(f.intermediaryKey)
	require.NoError(t, err)

	f.record = NewIntermediary(
		f.managerKey, f.traderKey, f.wSolKey, f.temporaryKey, f.tableKey, f.authorityKey,
		f.wSolBump, f.temporaryBump, f.authorityBump,
	)
	return f
}

func TestProcessInitialize(t *testing.T) {
	f := newCustodyFixture(t)

	args := InitializeArgs{
		RecentSlot:         1000,
		LamportsToTreasury: 5_000,

		WSolTokenAccountBump:          f.wSolBump,
		TemporaryWSolTokenAccountBump: f.temporaryBump,
		SelfAuthorityBump:             f.authorityBump,
	}

	_, tableKey, err := lookuptable.CreateLookupTable(f.authorityKey, f.managerKey, args.RecentSlot)
	require.NoError(t, err)

	intermediary := &solana.AccountInfo{Key: f.intermediaryKey, IsSigner: true, IsWritable: true}
	accounts := []*solana.AccountInfo{
		intermediary,
		{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 1_000_000_000},
		{Key: f.traderKey, IsSigner: true, Lamports: 1},
		{Key: f.wSolKey, IsWritable: true},
		{Key: f.temporaryKey},
		{Key: tableKey, IsWritable: true},
		{Key: f.authorityKey},
		{Key: token.NativeMint},
		{Key: system.SystemAccount},
		{Key: system.RentSysVar, Data: rentData()},
		{Key: token.ProgramKey},
		{Key: lookuptable.ProgramKey},
	}

	invoker := &mockInvoker{}
	err = NewProcessor(invoker).Process(accounts, args.Marshal())
	require.NoError(t, err)

	expected := NewIntermediary(
		f.managerKey, f.traderKey, f.wSolKey, f.temporaryKey, tableKey, f.authorityKey,
		f.wSolBump, f.temporaryBump, f.authorityBump,
	)
	assert.Equal(t, expected.Marshal(), intermediary.Data)

	require.Len(t, invoker.instructions, 5)
	assert.EqualValues(t, system.ProgramKey[:], invoker.instructions[0].Program)
	assert.EqualValues(t, system.ProgramKey[:], invoker.instructions[1].Program)
	assert.EqualValues(t, token.ProgramKey, invoker.instructions[2].Program)
	assert.EqualValues(t, lookuptable.ProgramKey, invoker.instructions[3].Program)
	assert.EqualValues(t, lookuptable.ProgramKey, invoker.instructions[4].Program)

	// The table holds the three dynamic accounts plus the static set.
	extend := invoker.instructions[4]
	assert.Len(t, extend.Data, 12+(QuantityOfMuchUsedDynamicAccounts+8)*32)

	// The wSOL treasury is funded with its rent plus the initial deposit.
	rentExempt := uint64(128+token.AccountSize) * 3480 * 2
	assert.Equal(t, rentExempt+args.LamportsToTreasury, binary.LittleEndian.Uint64(invoker.instructions[1].Data[4:]))

	require.Len(t, invoker.signedSeeds, 2)
	seeded, err := solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[0]...)
	require.NoError(t, err)
	assert.Equal(t, f.wSolKey, seeded)
	seeded, err = solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[1]...)
	require.NoError(t, err)
	assert.Equal(t, f.authorityKey, seeded)
}

func TestProcessInitializeValidation(t *testing.T) {
	f := newCustodyFixture(t)

	args := InitializeArgs{
		RecentSlot: 1000,

		WSolTokenAccountBump:          f.wSolBump,
		TemporaryWSolTokenAccountBump: f.temporaryBump,
		SelfAuthorityBump:             f.authorityBump,
	}

	_, tableKey, err := lookuptable.CreateLookupTable(f.authorityKey, f.managerKey, args.RecentSlot)
	require.NoError(t, err)

	build := func() []*solana.AccountInfo {
		return []*solana.AccountInfo{
			{Key: f.intermediaryKey, IsSigner: true, IsWritable: true},
			{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 1_000_000_000},
			{Key: f.traderKey, IsSigner: true, Lamports: 1},
			{Key: f.wSolKey, IsWritable: true},
			{Key: f.temporaryKey},
			{Key: tableKey, IsWritable: true},
			{Key: f.authorityKey},
			{Key: token.NativeMint},
			{Key: system.SystemAccount},
			{Key: system.RentSysVar, Data: rentData()},
			{Key: token.ProgramKey},
			{Key: lookuptable.ProgramKey},
		}
	}

	for _, tc := range []struct {
		name     string
		mutate   func(accounts []*solana.AccountInfo)
		expected error
	}{
		{
			name: "wrong treasury address",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[3].Key = testKey(99)
			},
			expected: ErrorInvalidAccountPubkey,
		},
		{
			name: "wrong lookup table",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[5].Key = testKey(99)
			},
			expected: ErrorInvalidAccountPubkey,
		},
		{
			name: "duplicated accounts",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[2].Key = f.managerKey
			},
			expected: ErrorInvalidAccountPubkey,
		},
		{
			name: "trader is not a signer",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[2].IsSigner = false
			},
			expected: ErrorInvalidAccountConfigurationFlags,
		},
		{
			name: "unfunded manager",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[1].Lamports = 0
			},
			expected: ErrorInvalidAccountLamports,
		},
		{
			name: "not enough accounts",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[11] = nil
			},
			expected: solana.ErrNotEnoughAccounts,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			accounts := build()
			tc.mutate(accounts)
			if accounts[len(accounts)-1] == nil {
				accounts = accounts[:len(accounts)-1]
			}

			invoker := &mockInvoker{}
			err := NewProcessor(invoker).Process(accounts, args.Marshal())
			assert.Equal(t, tc.expected, err)
			assert.Empty(t, invoker.instructions)
		})
	}
}

func TestProcessDepositFunds(t *testing.T) {
	f := newCustodyFixture(t)

	accounts := []*solana.AccountInfo{
		{Key: f.intermediaryKey, Data: f.record.Marshal()},
		{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 10_000},
		{Key: f.wSolKey, IsWritable: true},
		{Key: system.SystemAccount},
		{Key: token.ProgramKey},
	}

	args := DepositFundsArgs{LamportsToTreasury: 6_000}

	invoker := &mockInvoker{}
	err := NewProcessor(invoker).Process(accounts, args.Marshal())
	require.NoError(t, err)

	require.Len(t, invoker.instructions, 2)
	assert.EqualValues(t, system.ProgramKey[:], invoker.instructions[0].Program)
	assert.Equal(t, args.LamportsToTreasury, binary.LittleEndian.Uint64(invoker.instructions[0].Data[4:]))
	assert.EqualValues(t, token.ProgramKey, invoker.instructions[1].Program)
	assert.Equal(t, byte(token.CommandSyncNative), invoker.instructions[1].Data[0])
}

func TestProcessDepositFundsValidation(t *testing.T) {
	f := newCustodyFixture(t)

	build := func() []*solana.AccountInfo {
		return []*solana.AccountInfo{
			{Key: f.intermediaryKey, Data: f.record.Marshal()},
			{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 10_000},
			{Key: f.wSolKey, IsWritable: true},
			{Key: system.SystemAccount},
			{Key: token.ProgramKey},
		}
	}

	for _, tc := range []struct {
		name     string
		mutate   func(accounts []*solana.AccountInfo)
		expected error
	}{
		{
			name: "manager cannot cover the deposit",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[1].Lamports = 5_999
			},
			expected: ErrorInvalidAccountLamports,
		},
		{
			name: "foreign manager",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[1].Key = testKey(99)
			},
			expected: ErrorIntermediaryInvalidManager,
		},
		{
			name: "uninitialized intermediary",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[0].Data = make([]byte, IntermediarySize)
			},
			expected: ErrorIntermediaryIsNotInitialized,
		},
		{
			name: "malformed intermediary",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[0].Data = make([]byte, IntermediarySize-1)
			},
			expected: ErrorInvalidLogic,
		},
		{
			name: "wrong treasury account",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[2].Key = testKey(99)
			},
			expected: ErrorIntermediaryInvalidWSolTokenAccount,
		},
		{
			name: "treasury is not writable",
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[2].IsWritable = false
			},
			expected: ErrorInvalidAccountConfigurationFlags,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			accounts := build()
			tc.mutate(accounts)

			invoker := &mockInvoker{}
			err := NewProcessor(invoker).Process(accounts, (&DepositFundsArgs{LamportsToTreasury: 6_000}).Marshal())
			assert.Equal(t, tc.expected, err)
			assert.Empty(t, invoker.instructions)
		})
	}
}

func TestProcessWithdrawFunds(t *testing.T) {
	f := newCustodyFixture(t)

	accounts := []*solana.AccountInfo{
		{Key: f.intermediaryKey, Data: f.record.Marshal()},
		{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 3_000_000},
		{Key: f.wSolKey, IsWritable: true, Owner: token.ProgramKey, Data: tokenAccountData(token.NativeMint, f.authorityKey, 50_000)},
		{Key: f.temporaryKey, IsWritable: true},
		{Key: f.authorityKey},
		{Key: token.NativeMint},
		{Key: system.SystemAccount},
		{Key: system.RentSysVar, Data: rentData()},
		{Key: token.ProgramKey},
	}

	args := WithdrawFundsArgs{LamportsFromTreasury: 20_000}

	invoker := &mockInvoker{}
	err := NewProcessor(invoker).Process(accounts, args.Marshal())
	require.NoError(t, err)

	require.Len(t, invoker.instructions, 4)
	assert.EqualValues(t, system.ProgramKey[:], invoker.instructions[0].Program)
	assert.Equal(t, byte(token.CommandInitializeAccount), invoker.instructions[1].Data[0])
	assert.Equal(t, byte(token.CommandTransfer), invoker.instructions[2].Data[0])
	assert.Equal(t, args.LamportsFromTreasury, binary.LittleEndian.Uint64(invoker.instructions[2].Data[1:]))
	assert.Equal(t, byte(token.CommandCloseAccount), invoker.instructions[3].Data[0])

	// The scratch account is created with its own seeds, the transfer is
	// signed by the self authority.
	require.Len(t, invoker.signedSeeds, 2)
	seeded, err := solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[0]...)
	require.NoError(t, err)
	assert.Equal(t, f.temporaryKey, seeded)
	seeded, err = solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[1]...)
	require.NoError(t, err)
	assert.Equal(t, f.authorityKey, seeded)
}

func TestProcessWithdrawFundsValidation(t *testing.T) {
	f := newCustodyFixture(t)

	build := func() []*solana.AccountInfo {
		return []*solana.AccountInfo{
			{Key: f.intermediaryKey, Data: f.record.Marshal()},
			{Key: f.managerKey, IsSigner: true, IsWritable: true, Lamports: 3_000_000},
			{Key: f.wSolKey, IsWritable: true, Owner: token.ProgramKey, Data: tokenAccountData(token.NativeMint, f.authorityKey, 50_000)},
			{Key: f.temporaryKey, IsWritable: true},
			{Key: f.authorityKey},
			{Key: token.NativeMint},
			{Key: system.SystemAccount},
			{Key: system.RentSysVar, Data: rentData()},
			{Key: token.ProgramKey},
		}
	}

	for _, tc := range []struct {
		name     string
		amount   uint64
		mutate   func(accounts []*solana.AccountInfo)
		expected error
	}{
		{
			name:     "amount exceeds the treasury",
			amount:   50_001,
			mutate:   func(accounts []*solana.AccountInfo) {},
			expected: ErrorTokenAccountInsufficientAmount,
		},
		{
			name:   "manager cannot cover the scratch account rent",
			amount: 20_000,
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[1].Lamports = 1_000
			},
			expected: ErrorInvalidAccountLamports,
		},
		{
			name:   "wrong scratch account",
			amount: 20_000,
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[3].Key = testKey(99)
			},
			expected: ErrorIntermediaryInvalidTemporaryWSolTokenAccount,
		},
		{
			name:   "wrong self authority",
			amount: 20_000,
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[4].Key = testKey(99)
			},
			expected: ErrorIntermediaryInvalidAuthority,
		},
		{
			name:   "wrong mint",
			amount: 20_000,
			mutate: func(accounts []*solana.AccountInfo) {
				accounts[5].Key = testKey(99)
			},
			expected: ErrorInvalidAccountPubkey,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			accounts := build()
			tc.mutate(accounts)

			invoker := &mockInvoker{}
			err := NewProcessor(invoker).Process(accounts, (&WithdrawFundsArgs{LamportsFromTreasury: tc.amount}).Marshal())
			assert.Equal(t, tc.expected, err)
			assert.Empty(t, invoker.instructions)
		})
	}
}

// swapFixture assembles the base accounts and a healthy dynamic AMM
// window quoting 19752 tokens out for 10000 wSOL in.
type swapFixture struct {
	*custodyFixture

	tokenMint       ed25519.PublicKey
	tokenAccountKey ed25519.PublicKey
	tokenBump       uint8

	quoteTokenAccount *solana.AccountInfo
	tokenAccount      *solana.AccountInfo

	accounts []*solana.AccountInfo
}

const (
	swapFixtureAmountIn  = 10_000
	swapFixtureAmountOut = 19_752
)

func newSwapFixture(t *testing.T) *swapFixture {
	f := &swapFixture{
		custodyFixture: newCustodyFixture(t),
		tokenMint:      testKey(9),
	}

	var err error
	f.tokenAccountKey, f.tokenBump, err = FindTokenAccountAddress(f.intermediaryKey, f.tokenMint)
	require.NoError(t, err)

	f.quoteTokenAccount = &solana.AccountInfo{
		Key:        f.wSolKey,
		IsWritable: true,
		Owner:      token.ProgramKey,
		Data:       tokenAccountData(token.NativeMint, f.authorityKey, 1_000_000),
	}
	f.tokenAccount = &solana.AccountInfo{
		Key:        f.tokenAccountKey,
		IsWritable: true,
		Owner:      token.ProgramKey,
		Data:       tokenAccountData(f.tokenMint, f.authorityKey, 500),
	}

	f.accounts = []*solana.AccountInfo{
		{Key: f.intermediaryKey, Data: f.record.Marshal()},
		{Key: f.traderKey, IsSigner: true, IsWritable: true, Lamports: 3_000_000},
		f.quoteTokenAccount,
		{Key: f.authorityKey},
		f.tokenAccount,
		{Key: token.NativeMint},
		{Key: f.tokenMint},
		{Key: system.SystemAccount},
		{Key: system.RentSysVar, Data: rentData()},
		{Key: token.ProgramKey},
	}
	return f
}

func (f *swapFixture) args() SwapArgs {
	return SwapArgs{
		Dexes: []Dex{DexMeteoraV1},

		TokenMint: f.tokenMint,
		QuoteMint: token.NativeMint,

		AmountIn:     swapFixtureAmountIn,
		MinAmountOut: 15_000,

		TokenAccountBump:   f.tokenBump,
		IsFromQuoteToToken: true,
		WithChecks:         true,
	}
}

func (f *swapFixture) appendMeteoraWindow(t *testing.T) {
	pool := meteora.Pool{
		TokenAMint: token.NativeMint,
		TokenBMint: f.tokenMint,
		Enabled:    true,
		Stake:      make(ed25519.PublicKey, ed25519.PublicKeySize),

		Fees: meteora.PoolFees{
			TradeFeeNumerator:           25,
			TradeFeeDenominator:         10000,
			ProtocolTradeFeeDenominator: meteora.FeeDenominator,
		},
		Bootstrapping: meteora.Bootstrapping{
			ActivationPoint: 100,
			ActivationType:  uint8(meteora.ActivationTypeSlot),
		},
		CurveType: meteora.CurveTypeConstantProduct,
	}
	vaultA := meteora.Vault{Enabled: 1, TotalAmount: 1_000_000, TokenMint: token.NativeMint}
	vaultB := meteora.Vault{Enabled: 1, TotalAmount: 2_000_000, TokenMint: f.tokenMint}

	f.accounts = append(f.accounts,
		&solana.AccountInfo{Key: meteora.ProgramKey},
		&solana.AccountInfo{Key: system.ClockSysVar, Data: clockData()},
		&solana.AccountInfo{Key: testKey(30), IsWritable: true, Data: pool.Marshal()},
		&solana.AccountInfo{Key: testKey(31), IsWritable: true, Data: vaultA.Marshal()},
		&solana.AccountInfo{Key: testKey(32), IsWritable: true, Data: vaultB.Marshal()},
		&solana.AccountInfo{Key: testKey(33), IsWritable: true, Data: tokenAccountData(token.NativeMint, testKey(50), 1_000_000)},
		&solana.AccountInfo{Key: testKey(34), IsWritable: true, Data: tokenAccountData(f.tokenMint, testKey(50), 2_000_000)},
		&solana.AccountInfo{Key: testKey(35), IsWritable: true, Data: mintData(1_000_000)},
		&solana.AccountInfo{Key: testKey(36), IsWritable: true, Data: mintData(2_000_000)},
		&solana.AccountInfo{Key: testKey(37), IsWritable: true, Data: tokenAccountData(testKey(35), testKey(30), 1_000_000)},
		&solana.AccountInfo{Key: testKey(38), IsWritable: true, Data: tokenAccountData(testKey(36), testKey(30), 2_000_000)},
		&solana.AccountInfo{Key: testKey(39), IsWritable: true},
		&solana.AccountInfo{Key: meteora.VaultProgramKey},
		&solana.AccountInfo{Key: token.ProgramKey},
	)
}

func (f *swapFixture) appendHaltedRaydiumWindow() {
	f.appendRaydiumWindow(raydium.AmmStatusDisabled)
}

func (f *swapFixture) appendUninitializedRaydiumWindow() {
	f.appendRaydiumWindow(raydium.AmmStatusUninitialized)
}

func (f *swapFixture) appendRaydiumWindow(status raydium.AmmStatus) {
	amm := raydium.AmmInfo{Status: uint64(status)}

	f.accounts = append(f.accounts,
		&solana.AccountInfo{Key: raydium.ProgramKey},
		&solana.AccountInfo{Key: system.ClockSysVar, Data: clockData()},
		&solana.AccountInfo{Key: token.ProgramKey},
		&solana.AccountInfo{Key: testKey(40), IsWritable: true, Owner: raydium.ProgramKey, Data: amm.Marshal()},
		&solana.AccountInfo{Key: testKey(41)},
		&solana.AccountInfo{Key: testKey(42), IsWritable: true},
		&solana.AccountInfo{Key: testKey(43), IsWritable: true, Owner: token.ProgramKey, Data: tokenAccountData(f.tokenMint, testKey(41), 0)},
		&solana.AccountInfo{Key: testKey(44), IsWritable: true, Owner: token.ProgramKey, Data: tokenAccountData(token.NativeMint, testKey(41), 0)},
		&solana.AccountInfo{Key: testKey(45)},
		&solana.AccountInfo{Key: testKey(46), IsWritable: true},
		&solana.AccountInfo{Key: testKey(47), IsWritable: true},
		&solana.AccountInfo{Key: testKey(48), IsWritable: true},
		&solana.AccountInfo{Key: testKey(49), IsWritable: true},
		&solana.AccountInfo{Key: testKey(50), IsWritable: true},
		&solana.AccountInfo{Key: testKey(51), IsWritable: true},
		&solana.AccountInfo{Key: testKey(52)},
	)
}

// settleMeteoraSwap mutates the user accounts the way the venue program
// would, crediting amountOut to the destination.
func settleMeteoraSwap(t *testing.T, invoker *mockInvoker, amountOut uint64) {
	invoker.onInvoke = func(instruction solana.Instruction, accounts []*solana.AccountInfo) error {
		if !bytes.Equal(instruction.Program, meteora.ProgramKey) {
			return nil
		}

		amountIn := binary.LittleEndian.Uint64(instruction.Data[8:])
		debitTokenAccount(t, accounts[1], amountIn)
		creditTokenAccount(t, accounts[2], amountOut)
		return nil
	}
}

func TestProcessSwap(t *testing.T) {
	f := newSwapFixture(t)
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}
	settleMeteoraSwap(t, invoker, swapFixtureAmountOut)

	args := f.args()
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	require.NoError(t, err)

	require.Len(t, invoker.instructions, 2)
	assert.EqualValues(t, meteora.ProgramKey, invoker.instructions[0].Program)
	assert.EqualValues(t, token.ProgramKey, invoker.instructions[1].Program)
	assert.Equal(t, byte(token.CommandSyncNative), invoker.instructions[1].Data[0])

	// The swap is signed by the self authority.
	require.Len(t, invoker.signedSeeds, 1)
	seeded, err := solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[0]...)
	require.NoError(t, err)
	assert.Equal(t, f.authorityKey, seeded)

	assert.Equal(t, uint64(1_000_000-swapFixtureAmountIn), tokenAccountAmount(t, f.quoteTokenAccount))
	assert.Equal(t, uint64(500+swapFixtureAmountOut), tokenAccountAmount(t, f.tokenAccount))
}

func TestProcessSwapCreatesTokenAccount(t *testing.T) {
	f := newSwapFixture(t)
	f.tokenAccount.Data = nil
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}
	invoker.onInvoke = func(instruction solana.Instruction, accounts []*solana.AccountInfo) error {
		switch {
		case bytes.Equal(instruction.Program, token.ProgramKey) && instruction.Data[0] == byte(token.CommandInitializeAccount):
			accounts[0].Data = tokenAccountData(f.tokenMint, f.authorityKey, 0)
		case bytes.Equal(instruction.Program, meteora.ProgramKey):
			debitTokenAccount(t, accounts[1], binary.LittleEndian.Uint64(instruction.Data[8:]))
			creditTokenAccount(t, accounts[2], swapFixtureAmountOut)
		}
		return nil
	}

	args := f.args()
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	require.NoError(t, err)

	require.Len(t, invoker.instructions, 4)
	assert.EqualValues(t, system.ProgramKey[:], invoker.instructions[0].Program)
	assert.Equal(t, byte(token.CommandInitializeAccount), invoker.instructions[1].Data[0])
	assert.EqualValues(t, meteora.ProgramKey, invoker.instructions[2].Program)
	assert.Equal(t, byte(token.CommandSyncNative), invoker.instructions[3].Data[0])

	// The new account is created with its own seeds.
	require.Len(t, invoker.signedSeeds, 2)
	seeded, err := solana.CreateProgramAddress(ProgramKey, invoker.signedSeeds[0]...)
	require.NoError(t, err)
	assert.Equal(t, f.tokenAccountKey, seeded)

	assert.Equal(t, uint64(swapFixtureAmountOut), tokenAccountAmount(t, f.tokenAccount))
}

func TestProcessSwapFirstFitSkipsHaltedVenue(t *testing.T) {
	f := newSwapFixture(t)
	f.appendHaltedRaydiumWindow()
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}
	settleMeteoraSwap(t, invoker, swapFixtureAmountOut)

	args := f.args()
	args.Dexes = []Dex{DexRaydiumV4, DexMeteoraV1}
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	require.NoError(t, err)

	require.Len(t, invoker.instructions, 2)
	assert.EqualValues(t, meteora.ProgramKey, invoker.instructions[0].Program)
}

func TestProcessSwapUninitializedVenueFatal(t *testing.T) {
	f := newSwapFixture(t)
	f.appendUninitializedRaydiumWindow()
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}

	// An uninitialized pool aborts the whole swap, the next venue in
	// the list must never be consulted.
	args := f.args()
	args.Dexes = []Dex{DexRaydiumV4, DexMeteoraV1}
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	assert.Equal(t, ErrorInvalidStatus, err)
	assert.Empty(t, invoker.instructions)
}

func TestProcessSwapNoMatchingVenue(t *testing.T) {
	f := newSwapFixture(t)
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}

	args := f.args()
	args.MinAmountOut = swapFixtureAmountOut + 1
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	assert.Equal(t, ErrorInvalidSwapConditions, err)
	assert.Empty(t, invoker.instructions)
}

func TestProcessSwapBalanceMismatch(t *testing.T) {
	f := newSwapFixture(t)
	f.appendMeteoraWindow(t)

	// The venue credits less than the promised minimum.
	invoker := &mockInvoker{}
	settleMeteoraSwap(t, invoker, 100)

	args := f.args()
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	assert.Equal(t, ErrorTokenAccountInvalidAmount, err)
}

func TestProcessSwapRepeatedDex(t *testing.T) {
	f := newSwapFixture(t)
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}

	args := f.args()
	args.Dexes = []Dex{DexMeteoraV1, DexMeteoraV1}
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	assert.Equal(t, ErrorRepeatableDex, err)
}

func TestProcessSwapInsufficientTreasury(t *testing.T) {
	f := newSwapFixture(t)
	f.appendMeteoraWindow(t)

	invoker := &mockInvoker{}

	args := f.args()
	args.AmountIn = 2_000_000
	err := NewProcessor(invoker).Process(f.accounts, args.Marshal())
	assert.Equal(t, ErrorTokenAccountInsufficientAmount, err)
}

func TestProcessSwapPreChecks(t *testing.T) {
	tokenMint := testKey(9)

	for _, tc := range []struct {
		name     string
		args     SwapArgs
		expected error
	}{
		{
			name: "token to quote is not supported",
			args: SwapArgs{
				Dexes:     []Dex{DexMeteoraV1},
				TokenMint: tokenMint,
				QuoteMint: token.NativeMint,
				AmountIn:  1,
			},
			expected: ErrorNotImplemented,
		},
		{
			name: "quote must be wSOL",
			args: SwapArgs{
				Dexes:              []Dex{DexMeteoraV1},
				TokenMint:          tokenMint,
				QuoteMint:          testKey(10),
				AmountIn:           1,
				IsFromQuoteToToken: true,
			},
			expected: ErrorNotImplemented,
		},
		{
			name: "equal mints",
			args: SwapArgs{
				Dexes:              []Dex{DexMeteoraV1},
				TokenMint:          token.NativeMint,
				QuoteMint:          token.NativeMint,
				AmountIn:           1,
				IsFromQuoteToToken: true,
			},
			expected: ErrorEqualMints,
		},
		{
			name: "zero amount in",
			args: SwapArgs{
				Dexes:              []Dex{DexMeteoraV1},
				TokenMint:          tokenMint,
				QuoteMint:          token.NativeMint,
				IsFromQuoteToToken: true,
			},
			expected: ErrorZeroAmountIn,
		},
		{
			name: "zero dexes",
			args: SwapArgs{
				TokenMint:          tokenMint,
				QuoteMint:          token.NativeMint,
				AmountIn:           1,
				IsFromQuoteToToken: true,
			},
			expected: ErrorZeroDexesPresented,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := NewProcessor(&mockInvoker{}).Process(nil, tc.args.Marshal())
			assert.Equal(t, tc.expected, err)
		})
	}
}
