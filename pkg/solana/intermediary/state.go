package intermediary

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/binary"
	"github.com/LetMut1/Dexswap/pkg/solana/meteora"
	"github.com/LetMut1/Dexswap/pkg/solana/raydium"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
	"github.com/LetMut1/Dexswap/pkg/solana/token"
)

// QuantityOfMuchUsedDynamicAccounts is the number of per-intermediary
// accounts stored in the common lookup table: the intermediary, its
// wSOL token account, and its self authority.
const QuantityOfMuchUsedDynamicAccounts = 3

// MuchUsedStaticAccounts returns the well-known accounts stored in
// every common lookup table alongside the dynamic ones.
func MuchUsedStaticAccounts() []ed25519.PublicKey {
	return []ed25519.PublicKey{
		token.NativeMint,
		system.SystemAccount,
		system.RentSysVar,
		token.ProgramKey,
		system.ClockSysVar,
		meteora.ProgramKey,
		meteora.VaultProgramKey,
		raydium.ProgramKey,
	}
}

const IntermediarySize = 6*ed25519.PublicKeySize + 4

// Intermediary is the custody record of one manager/trader pair. All
// derived accounts hang off its address.
type Intermediary struct {
	// Manages funds: deposits to and withdraws from the treasury.
	Manager ed25519.PublicKey
	// Performs the token exchanges.
	Trader ed25519.PublicKey
	// Holds the wSOL liquidity swaps are paid from, so a swap never has
	// to create and fund a token account. Owned by SelfAuthority.
	WSolTokenAccount ed25519.PublicKey
	// Scratch token account for withdrawals. Owned by SelfAuthority.
	TemporaryWSolTokenAccount ed25519.PublicKey
	// Lookup table holding the accounts every transaction needs.
	CommonAddressLookupTable ed25519.PublicKey
	// Signs for the PDA accounts on behalf of the program.
	SelfAuthority ed25519.PublicKey

	WSolTokenAccountBump          uint8
	TemporaryWSolTokenAccountBump uint8
	SelfAuthorityBump             uint8

	isInitialized uint8
}

// NewIntermediary returns an initialized record.
func NewIntermediary(
	manager, trader, wSolTokenAccount, temporaryWSolTokenAccount, commonAddressLookupTable, selfAuthority ed25519.PublicKey,
	wSolTokenAccountBump, temporaryWSolTokenAccountBump, selfAuthorityBump uint8,
) Intermediary {
	return Intermediary{
		Manager:                   manager,
		Trader:                    trader,
		WSolTokenAccount:          wSolTokenAccount,
		TemporaryWSolTokenAccount: temporaryWSolTokenAccount,
		CommonAddressLookupTable:  commonAddressLookupTable,
		SelfAuthority:             selfAuthority,

		WSolTokenAccountBump:          wSolTokenAccountBump,
		TemporaryWSolTokenAccountBump: temporaryWSolTokenAccountBump,
		SelfAuthorityBump:             selfAuthorityBump,

		isInitialized: 1,
	}
}

func (i *Intermediary) IsInitialized() bool {
	return i.isInitialized == 1
}

func (i *Intermediary) Marshal() []byte {
	b := make([]byte, IntermediarySize)

	var offset int
	binary.PutKey32(b, i.Manager, &offset)
	binary.PutKey32(b[offset:], i.Trader, &offset)
	binary.PutKey32(b[offset:], i.WSolTokenAccount, &offset)
	binary.PutKey32(b[offset:], i.TemporaryWSolTokenAccount, &offset)
	binary.PutKey32(b[offset:], i.CommonAddressLookupTable, &offset)
	binary.PutKey32(b[offset:], i.SelfAuthority, &offset)
	binary.PutUint8(b[offset:], i.WSolTokenAccountBump, &offset)
	binary.PutUint8(b[offset:], i.TemporaryWSolTokenAccountBump, &offset)
	binary.PutUint8(b[offset:], i.SelfAuthorityBump, &offset)
	binary.PutUint8(b[offset:], i.isInitialized, &offset)

	return b
}

func (i *Intermediary) Unmarshal(b []byte) error {
	if len(b) != IntermediarySize {
		return errors.Errorf("invalid intermediary account size: %d", len(b))
	}

	var offset int
	binary.GetKey32(b, &i.Manager, &offset)
	binary.GetKey32(b[offset:], &i.Trader, &offset)
	binary.GetKey32(b[offset:], &i.WSolTokenAccount, &offset)
	binary.GetKey32(b[offset:], &i.TemporaryWSolTokenAccount, &offset)
	binary.GetKey32(b[offset:], &i.CommonAddressLookupTable, &offset)
	binary.GetKey32(b[offset:], &i.SelfAuthority, &offset)
	binary.GetUint8(b[offset:], &i.WSolTokenAccountBump, &offset)
	binary.GetUint8(b[offset:], &i.TemporaryWSolTokenAccountBump, &offset)
	binary.GetUint8(b[offset:], &i.SelfAuthorityBump, &offset)
	binary.GetUint8(b[offset:], &i.isInitialized, &offset)

	return nil
}

// GetIntermediary decodes the record from its account.
func GetIntermediary(info *solana.AccountInfo) (*Intermediary, error) {
	var record Intermediary
	if err := record.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	return &record, nil
}

const (
	tokenAccountSeed              = "tokenaccount"
	temporaryWSolTokenAccountSeed = "temporarywsoltokenaccount"
	selfAuthoritySeed             = "selfauthority"
)

// TokenAccountSeeds returns the seed tuple of a per-mint token account,
// for signing on its behalf.
func TokenAccountSeeds(intermediary, tokenMint ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{
		ProgramKey,
		intermediary,
		tokenMint,
		[]byte(tokenAccountSeed),
		{bump},
	}
}

// CreateTokenAccountAddress re-derives a per-mint token account address
// from a known bump.
func CreateTokenAccountAddress(intermediary, tokenMint ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(ProgramKey, ProgramKey, intermediary, tokenMint, []byte(tokenAccountSeed), []byte{bump})
}

// FindTokenAccountAddress derives a per-mint token account address and
// its bump.
func FindTokenAccountAddress(intermediary, tokenMint ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, ProgramKey, intermediary, tokenMint, []byte(tokenAccountSeed))
}

// TemporaryWSolTokenAccountSeeds returns the seed tuple of the
// withdrawal scratch account, for signing on its behalf.
func TemporaryWSolTokenAccountSeeds(intermediary ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{
		ProgramKey,
		intermediary,
		[]byte(temporaryWSolTokenAccountSeed),
		{bump},
	}
}

// CreateTemporaryWSolTokenAccountAddress re-derives the withdrawal
// scratch account address from a known bump.
func CreateTemporaryWSolTokenAccountAddress(intermediary ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(ProgramKey, ProgramKey, intermediary, []byte(temporaryWSolTokenAccountSeed), []byte{bump})
}

// FindTemporaryWSolTokenAccountAddress derives the withdrawal scratch
// account address and its bump.
func FindTemporaryWSolTokenAccountAddress(intermediary ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, ProgramKey, intermediary, []byte(temporaryWSolTokenAccountSeed))
}

// SelfAuthoritySeeds returns the seed tuple of the self authority, for
// signing on its behalf.
func SelfAuthoritySeeds(intermediary ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{
		ProgramKey,
		intermediary,
		[]byte(selfAuthoritySeed),
		{bump},
	}
}

// CreateSelfAuthorityAddress re-derives the self authority address from
// a known bump.
func CreateSelfAuthorityAddress(intermediary ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(ProgramKey, ProgramKey, intermediary, []byte(selfAuthoritySeed), []byte{bump})
}

// FindSelfAuthorityAddress derives the self authority address and its
// bump.
func FindSelfAuthorityAddress(intermediary ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, ProgramKey, intermediary, []byte(selfAuthoritySeed))
}
