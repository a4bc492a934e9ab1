package meteora

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

// ProgramKey is the address of the dynamic AMM program.
//
// Current key: Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB
var ProgramKey = ed25519.PublicKey{204, 248, 2, 212, 204, 204, 132, 215, 251, 33, 181, 247, 59, 73, 216, 26, 22, 197, 180, 200, 142, 227, 35, 148, 225, 201, 29, 53, 136, 204, 64, 128}

// VaultProgramKey is the address of the dynamic vault program the AMM
// deposits into.
//
// Current key: 24Uqj9JCLxUeoC3hGfh5W3s9FM9uCHDS2SG3LYwBpyTi
var VaultProgramKey = ed25519.PublicKey{15, 191, 232, 132, 109, 104, 92, 189, 198, 44, 202, 126, 4, 199, 232, 246, 141, 204, 49, 58, 179, 18, 119, 226, 224, 17, 42, 46, 192, 224, 82, 229}

// swapDiscriminator is the anchor discriminator of the swap instruction,
// sha256("global:swap")[:8].
var swapDiscriminator = []byte{248, 198, 158, 145, 225, 117, 135, 200}

// SwapInstructionAccounts lists the accounts of the swap instruction in
// the order the program expects them.
type SwapInstructionAccounts struct {
	Pool                 ed25519.PublicKey
	UserSourceToken      ed25519.PublicKey
	UserDestinationToken ed25519.PublicKey
	AVault               ed25519.PublicKey
	BVault               ed25519.PublicKey
	ATokenVault          ed25519.PublicKey
	BTokenVault          ed25519.PublicKey
	AVaultLpMint         ed25519.PublicKey
	BVaultLpMint         ed25519.PublicKey
	AVaultLp             ed25519.PublicKey
	BVaultLp             ed25519.PublicKey
	ProtocolTokenFee     ed25519.PublicKey
	User                 ed25519.PublicKey
	VaultProgram         ed25519.PublicKey
	TokenProgram         ed25519.PublicKey
}

// Swap builds the dynamic AMM swap instruction.
//
// Reference: https://github.com/MeteoraAg/damm-v1-sdk/blob/b21e2efb3680c17a68149ed2e22465aeef9b3784/programs/dynamic-amm/src/instructions/swap.rs#L5
func Swap(programID ed25519.PublicKey, accounts SwapInstructionAccounts, amountIn, minimumAmountOut uint64) solana.Instruction {
	data := make([]byte, len(swapDiscriminator)+16)
	copy(data, swapDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], amountIn)
	binary.LittleEndian.PutUint64(data[16:], minimumAmountOut)

	return solana.NewInstruction(
		programID,
		data,
		solana.NewAccountMeta(accounts.Pool, false),
		solana.NewAccountMeta(accounts.UserSourceToken, false),
		solana.NewAccountMeta(accounts.UserDestinationToken, false),
		solana.NewAccountMeta(accounts.AVault, false),
		solana.NewAccountMeta(accounts.BVault, false),
		solana.NewAccountMeta(accounts.ATokenVault, false),
		solana.NewAccountMeta(accounts.BTokenVault, false),
		solana.NewAccountMeta(accounts.AVaultLpMint, false),
		solana.NewAccountMeta(accounts.BVaultLpMint, false),
		solana.NewAccountMeta(accounts.AVaultLp, false),
		solana.NewAccountMeta(accounts.BVaultLp, false),
		solana.NewAccountMeta(accounts.ProtocolTokenFee, false),
		solana.NewReadonlyAccountMeta(accounts.User, true),
		solana.NewReadonlyAccountMeta(accounts.VaultProgram, false),
		solana.NewReadonlyAccountMeta(accounts.TokenProgram, false),
	)
}
