package intermediary

import (
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/binary"
	"github.com/LetMut1/Dexswap/pkg/solana/lookuptable"
	"github.com/LetMut1/Dexswap/pkg/solana/meteora"
	"github.com/LetMut1/Dexswap/pkg/solana/raydium"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

type Command byte

const (
	CommandInitialize Command = iota
	CommandDepositFunds
	CommandWithdrawFunds
	CommandSwap

	CommandUnknown = Command(math.MaxUint8)
)

// GetCommand returns the command an instruction payload carries.
func GetCommand(data []byte) (Command, error) {
	if len(data) == 0 {
		return CommandUnknown, solana.ErrIncorrectInstruction
	}
	if data[0] > byte(CommandSwap) {
		return CommandUnknown, solana.ErrIncorrectInstruction
	}
	return Command(data[0]), nil
}

const (
	initializeInstructionSize = 1 + 2*8 + 3
	lamportsInstructionSize   = 1 + 8
	swapInstructionBaseSize   = 1 + 4 + 2*ed25519.PublicKeySize + 2*8 + 3
)

// InitializeArgs creates the intermediary record, its wSOL treasury,
// and the common lookup table.
type InitializeArgs struct {
	RecentSlot         uint64
	LamportsToTreasury uint64

	WSolTokenAccountBump          uint8
	TemporaryWSolTokenAccountBump uint8
	SelfAuthorityBump             uint8
}

func (a *InitializeArgs) Marshal() []byte {
	b := make([]byte, initializeInstructionSize)

	offset := 1
	b[0] = byte(CommandInitialize)
	binary.PutUint64(b[offset:], a.RecentSlot, &offset)
	binary.PutUint64(b[offset:], a.LamportsToTreasury, &offset)
	binary.PutUint8(b[offset:], a.WSolTokenAccountBump, &offset)
	binary.PutUint8(b[offset:], a.TemporaryWSolTokenAccountBump, &offset)
	binary.PutUint8(b[offset:], a.SelfAuthorityBump, &offset)

	return b
}

func (a *InitializeArgs) Unmarshal(b []byte) error {
	if len(b) != initializeInstructionSize || b[0] != byte(CommandInitialize) {
		return solana.ErrIncorrectInstruction
	}

	offset := 1
	binary.GetUint64(b[offset:], &a.RecentSlot, &offset)
	binary.GetUint64(b[offset:], &a.LamportsToTreasury, &offset)
	binary.GetUint8(b[offset:], &a.WSolTokenAccountBump, &offset)
	binary.GetUint8(b[offset:], &a.TemporaryWSolTokenAccountBump, &offset)
	binary.GetUint8(b[offset:], &a.SelfAuthorityBump, &offset)

	return nil
}

// DepositFundsArgs tops the wSOL treasury up from the manager's
// lamports.
type DepositFundsArgs struct {
	LamportsToTreasury uint64
}

func (a *DepositFundsArgs) Marshal() []byte {
	b := make([]byte, lamportsInstructionSize)

	offset := 1
	b[0] = byte(CommandDepositFunds)
	binary.PutUint64(b[offset:], a.LamportsToTreasury, &offset)

	return b
}

func (a *DepositFundsArgs) Unmarshal(b []byte) error {
	if len(b) != lamportsInstructionSize || b[0] != byte(CommandDepositFunds) {
		return solana.ErrIncorrectInstruction
	}

	offset := 1
	binary.GetUint64(b[offset:], &a.LamportsToTreasury, &offset)
	return nil
}

// WithdrawFundsArgs unwraps part of the treasury back to the manager.
type WithdrawFundsArgs struct {
	LamportsFromTreasury uint64
}

func (a *WithdrawFundsArgs) Marshal() []byte {
	b := make([]byte, lamportsInstructionSize)

	offset := 1
	b[0] = byte(CommandWithdrawFunds)
	binary.PutUint64(b[offset:], a.LamportsFromTreasury, &offset)

	return b
}

func (a *WithdrawFundsArgs) Unmarshal(b []byte) error {
	if len(b) != lamportsInstructionSize || b[0] != byte(CommandWithdrawFunds) {
		return solana.ErrIncorrectInstruction
	}

	offset := 1
	binary.GetUint64(b[offset:], &a.LamportsFromTreasury, &offset)
	return nil
}

// SwapArgs trades the treasury's wSOL through the first listed venue
// able to satisfy MinAmountOut.
type SwapArgs struct {
	Dexes []Dex

	TokenMint ed25519.PublicKey
	QuoteMint ed25519.PublicKey

	AmountIn     uint64
	MinAmountOut uint64

	TokenAccountBump   uint8
	IsFromQuoteToToken bool
	WithChecks         bool
}

func (a *SwapArgs) Marshal() []byte {
	b := make([]byte, swapInstructionBaseSize+len(a.Dexes))

	offset := 1
	b[0] = byte(CommandSwap)
	binary.PutUint32(b[offset:], uint32(len(a.Dexes)), &offset)
	for _, dex := range a.Dexes {
		binary.PutUint8(b[offset:], byte(dex), &offset)
	}
	binary.PutKey32(b[offset:], a.TokenMint, &offset)
	binary.PutKey32(b[offset:], a.QuoteMint, &offset)
	binary.PutUint64(b[offset:], a.AmountIn, &offset)
	binary.PutUint64(b[offset:], a.MinAmountOut, &offset)
	binary.PutUint8(b[offset:], a.TokenAccountBump, &offset)
	binary.PutUint8(b[offset:], boolByte(a.IsFromQuoteToToken), &offset)
	binary.PutUint8(b[offset:], boolByte(a.WithChecks), &offset)

	return b
}

func (a *SwapArgs) Unmarshal(b []byte) error {
	if len(b) < swapInstructionBaseSize || b[0] != byte(CommandSwap) {
		return solana.ErrIncorrectInstruction
	}

	offset := 1
	var dexCount uint32
	binary.GetUint32(b[offset:], &dexCount, &offset)
	if len(b) != swapInstructionBaseSize+int(dexCount) {
		return solana.ErrIncorrectInstruction
	}

	a.Dexes = make([]Dex, dexCount)
	for i := range a.Dexes {
		var raw uint8
		binary.GetUint8(b[offset:], &raw, &offset)
		if raw > byte(DexRaydiumV4) {
			return errors.Errorf("invalid dex: %d", raw)
		}
		a.Dexes[i] = Dex(raw)
	}
	binary.GetKey32(b[offset:], &a.TokenMint, &offset)
	binary.GetKey32(b[offset:], &a.QuoteMint, &offset)
	binary.GetUint64(b[offset:], &a.AmountIn, &offset)
	binary.GetUint64(b[offset:], &a.MinAmountOut, &offset)
	binary.GetUint8(b[offset:], &a.TokenAccountBump, &offset)
	a.IsFromQuoteToToken = b[offset] == 1
	offset++
	a.WithChecks = b[offset] == 1

	return nil
}

// Initialize builds the instruction creating an intermediary and its
// derived accounts. The manager funds everything and deposits the
// initial treasury balance.
func Initialize(intermediary, manager, trader, wSolTokenAccount, temporaryWSolTokenAccount, commonAddressLookupTable, selfAuthority ed25519.PublicKey, args InitializeArgs) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		args.Marshal(),
		solana.NewAccountMeta(intermediary, true),
		solana.NewReadonlyAccountMeta(manager, true),
		solana.NewReadonlyAccountMeta(trader, true),
		solana.NewAccountMeta(wSolTokenAccount, false),
		solana.NewAccountMeta(temporaryWSolTokenAccount, false),
		solana.NewAccountMeta(commonAddressLookupTable, false),
		solana.NewReadonlyAccountMeta(selfAuthority, false),
		solana.NewReadonlyAccountMeta(token.NativeMint, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(lookuptable.ProgramKey, false),
	)
}

// DepositFunds builds the instruction topping the treasury up.
func DepositFunds(intermediary, manager, wSolTokenAccount ed25519.PublicKey, args DepositFundsArgs) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		args.Marshal(),
		solana.NewReadonlyAccountMeta(intermediary, false),
		solana.NewAccountMeta(manager, true),
		solana.NewAccountMeta(wSolTokenAccount, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}

// WithdrawFunds builds the instruction unwrapping treasury funds back
// to the manager.
func WithdrawFunds(intermediary, manager, wSolTokenAccount, temporaryWSolTokenAccount, selfAuthority ed25519.PublicKey, args WithdrawFundsArgs) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		args.Marshal(),
		solana.NewReadonlyAccountMeta(intermediary, false),
		solana.NewAccountMeta(manager, true),
		solana.NewAccountMeta(wSolTokenAccount, false),
		solana.NewAccountMeta(temporaryWSolTokenAccount, false),
		solana.NewReadonlyAccountMeta(selfAuthority, false),
		solana.NewReadonlyAccountMeta(token.NativeMint, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}

// SwapVenueAccounts is one venue's account window appended after the
// base swap accounts.
type SwapVenueAccounts interface {
	Dex() Dex

	appendMetas(metas []solana.AccountMeta) []solana.AccountMeta
}

// MeteoraV1SwapAccounts is the dynamic AMM account window. The programs
// and the clock sysvar are filled in by the builder.
type MeteoraV1SwapAccounts struct {
	Pool             ed25519.PublicKey
	AVault           ed25519.PublicKey
	BVault           ed25519.PublicKey
	ATokenVault      ed25519.PublicKey
	BTokenVault      ed25519.PublicKey
	AVaultLpMint     ed25519.PublicKey
	BVaultLpMint     ed25519.PublicKey
	AVaultLp         ed25519.PublicKey
	BVaultLp         ed25519.PublicKey
	ProtocolTokenFee ed25519.PublicKey
}

func (MeteoraV1SwapAccounts) Dex() Dex {
	return DexMeteoraV1
}

func (m MeteoraV1SwapAccounts) appendMetas(metas []solana.AccountMeta) []solana.AccountMeta {
	return append(metas,
		solana.NewReadonlyAccountMeta(meteora.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ClockSysVar, false),
		solana.NewAccountMeta(m.Pool, false),
		solana.NewAccountMeta(m.AVault, false),
		solana.NewAccountMeta(m.BVault, false),
		solana.NewAccountMeta(m.ATokenVault, false),
		solana.NewAccountMeta(m.BTokenVault, false),
		solana.NewAccountMeta(m.AVaultLpMint, false),
		solana.NewAccountMeta(m.BVaultLpMint, false),
		solana.NewAccountMeta(m.AVaultLp, false),
		solana.NewAccountMeta(m.BVaultLp, false),
		solana.NewAccountMeta(m.ProtocolTokenFee, false),
		solana.NewReadonlyAccountMeta(meteora.VaultProgramKey, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}

// RaydiumV4SwapAccounts is the hybrid AMM account window. The AMM
// program, the token program, and the clock sysvar are filled in by
// the builder.
type RaydiumV4SwapAccounts struct {
	AmmPool       ed25519.PublicKey
	AmmAuthority  ed25519.PublicKey
	AmmOpenOrders ed25519.PublicKey
	AmmCoinVault  ed25519.PublicKey
	AmmPcVault    ed25519.PublicKey

	MarketProgram     ed25519.PublicKey
	Market            ed25519.PublicKey
	MarketBids        ed25519.PublicKey
	MarketAsks        ed25519.PublicKey
	MarketEventQueue  ed25519.PublicKey
	MarketCoinVault   ed25519.PublicKey
	MarketPcVault     ed25519.PublicKey
	MarketVaultSigner ed25519.PublicKey
}

func (RaydiumV4SwapAccounts) Dex() Dex {
	return DexRaydiumV4
}

func (r RaydiumV4SwapAccounts) appendMetas(metas []solana.AccountMeta) []solana.AccountMeta {
	return append(metas,
		solana.NewReadonlyAccountMeta(raydium.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ClockSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewAccountMeta(r.AmmPool, false),
		solana.NewReadonlyAccountMeta(r.AmmAuthority, false),
		solana.NewAccountMeta(r.AmmOpenOrders, false),
		solana.NewAccountMeta(r.AmmCoinVault, false),
		solana.NewAccountMeta(r.AmmPcVault, false),
		solana.NewReadonlyAccountMeta(r.MarketProgram, false),
		solana.NewAccountMeta(r.Market, false),
		solana.NewAccountMeta(r.MarketBids, false),
		solana.NewAccountMeta(r.MarketAsks, false),
		solana.NewAccountMeta(r.MarketEventQueue, false),
		solana.NewAccountMeta(r.MarketCoinVault, false),
		solana.NewAccountMeta(r.MarketPcVault, false),
		solana.NewReadonlyAccountMeta(r.MarketVaultSigner, false),
	)
}

// Swap builds the instruction routing a trade through the listed
// venues. Each venue may appear at most once.
func Swap(intermediary, trader, quoteTokenAccount, selfAuthority, tokenAccount ed25519.PublicKey, venues []SwapVenueAccounts, args SwapArgs) (solana.Instruction, error) {
	if len(venues) == 0 {
		return solana.Instruction{}, errors.New("zero dexes")
	}

	metas := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(intermediary, false),
		solana.NewAccountMeta(trader, true),
		solana.NewAccountMeta(quoteTokenAccount, false),
		solana.NewReadonlyAccountMeta(selfAuthority, false),
		solana.NewAccountMeta(tokenAccount, false),
		solana.NewReadonlyAccountMeta(args.QuoteMint, false),
		solana.NewReadonlyAccountMeta(args.TokenMint, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	}

	seen := make(map[Dex]struct{}, len(venues))
	dexes := make([]Dex, 0, len(venues))
	for _, venue := range venues {
		dex := venue.Dex()
		if _, ok := seen[dex]; ok {
			return solana.Instruction{}, errors.New("repeatable dexes")
		}
		seen[dex] = struct{}{}

		dexes = append(dexes, dex)
		metas = venue.appendMetas(metas)
	}
	args.Dexes = dexes

	return solana.NewInstruction(ProgramKey, args.Marshal(), metas...), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
