package lookuptable

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/system"
)

// ProgramKey is the address of the address lookup table program.
//
// Current key: AddressLookupTab1e1111111111111111111111111
var ProgramKey = ed25519.PublicKey{2, 119, 166, 175, 151, 51, 155, 122, 200, 141, 24, 146, 201, 4, 70, 245, 0, 2, 48, 146, 102, 246, 46, 83, 193, 24, 36, 73, 130, 0, 0, 0}

// Instruction data is bincode encoded, the command is a u32.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/address_lookup_table/instruction.rs#L13
const (
	commandCreateLookupTable uint32 = iota
	// nolint:varcheck,deadcode,unused
	commandFreezeLookupTable
	commandExtendLookupTable
)

// DeriveLookupTableAddress returns the address and bump of the lookup
// table derived from an authority and a recent slot.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/address_lookup_table/instruction.rs#L104
func DeriveLookupTableAddress(authority ed25519.PublicKey, recentSlot uint64) (ed25519.PublicKey, uint8, error) {
	slotSeed := make([]byte, 8)
	binary.LittleEndian.PutUint64(slotSeed, recentSlot)

	return solana.FindProgramAddressAndBump(ProgramKey, authority, slotSeed)
}

// CreateLookupTable builds the instruction creating the lookup table
// derived from the authority and the recent slot, and returns its
// address alongside.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/address_lookup_table/instruction.rs#L129
func CreateLookupTable(authority, payer ed25519.PublicKey, recentSlot uint64) (solana.Instruction, ed25519.PublicKey, error) {
	table, bump, err := DeriveLookupTableAddress(authority, recentSlot)
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	data := make([]byte, 4+8+1)
	binary.LittleEndian.PutUint32(data, commandCreateLookupTable)
	binary.LittleEndian.PutUint64(data[4:], recentSlot)
	data[12] = bump

	instruction := solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(table, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	)
	return instruction, table, nil
}

// ExtendLookupTable builds the instruction appending addresses to an
// existing lookup table.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/address_lookup_table/instruction.rs#L170
func ExtendLookupTable(table, authority, payer ed25519.PublicKey, addresses []ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 4+8+len(addresses)*ed25519.PublicKeySize)
	binary.LittleEndian.PutUint32(data, commandExtendLookupTable)
	binary.LittleEndian.PutUint64(data[4:], uint64(len(addresses)))
	for i, address := range addresses {
		copy(data[12+i*ed25519.PublicKeySize:], address)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(table, false),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	)
}
