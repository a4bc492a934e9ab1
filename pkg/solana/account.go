package solana

import (
	"crypto/ed25519"
)

// AccountInfo is the runtime view of an account as a program sees it:
// the key, the owning program, the lamport balance, the raw data buffer,
// and the transaction-level flags.
type AccountInfo struct {
	Key        ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

// IsDataEmpty returns whether the account has an allocated data buffer.
func (a *AccountInfo) IsDataEmpty() bool {
	return len(a.Data) == 0
}

// NextAccount pops the next account off the slice, mirroring the order
// the instruction builder declared them in.
func NextAccount(accounts []*AccountInfo, cursor *int) (*AccountInfo, error) {
	if *cursor >= len(accounts) {
		return nil, ErrNotEnoughAccounts
	}

	account := accounts[*cursor]
	*cursor++
	return account, nil
}

// Invoker executes cross-program invocations on behalf of a processor.
//
// InvokeSigned extends the transaction's signer set with the program
// addresses derived from the provided seed tuples.
type Invoker interface {
	Invoke(instruction Instruction, accounts []*AccountInfo) error
	InvokeSigned(instruction Instruction, accounts []*AccountInfo, signers ...[][]byte) error
}
