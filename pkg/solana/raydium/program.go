package raydium

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

// ProgramKey is the address of the v4 hybrid AMM program.
//
// Current key: 675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8
var ProgramKey = ed25519.PublicKey{75, 217, 73, 196, 54, 2, 195, 63, 32, 119, 144, 237, 22, 163, 82, 76, 161, 185, 151, 92, 241, 33, 162, 169, 12, 255, 236, 125, 248, 182, 138, 205}

const swapBaseInCommand = 9

var authoritySeed = []byte("amm authority")

// AuthorityAddress derives the pool authority from the nonce stored in
// the amm account.
func AuthorityAddress(ammProgram ed25519.PublicKey, nonce uint64) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(ammProgram, authoritySeed, []byte{byte(nonce)})
}

// SwapInstructionAccounts lists the accounts of the swap_base_in
// instruction in the order the program expects them.
type SwapInstructionAccounts struct {
	TokenProgram ed25519.PublicKey

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

	UserTokenSource      ed25519.PublicKey
	UserTokenDestination ed25519.PublicKey
	UserSourceOwner      ed25519.PublicKey
}

// Swap builds the swap_base_in instruction.
//
// Reference: https://github.com/raydium-io/raydium-amm/blob/2748852a7981c2b6909e07e10b1325669fbb9195/program/src/instruction.rs#L1045
func Swap(programID ed25519.PublicKey, accounts SwapInstructionAccounts, amountIn, minimumAmountOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInCommand
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minimumAmountOut)

	return solana.NewInstruction(
		programID,
		data,
		solana.NewReadonlyAccountMeta(accounts.TokenProgram, false),
		solana.NewAccountMeta(accounts.AmmPool, false),
		solana.NewReadonlyAccountMeta(accounts.AmmAuthority, false),
		solana.NewAccountMeta(accounts.AmmOpenOrders, false),
		solana.NewAccountMeta(accounts.AmmCoinVault, false),
		solana.NewAccountMeta(accounts.AmmPcVault, false),
		solana.NewReadonlyAccountMeta(accounts.MarketProgram, false),
		solana.NewAccountMeta(accounts.Market, false),
		solana.NewAccountMeta(accounts.MarketBids, false),
		solana.NewAccountMeta(accounts.MarketAsks, false),
		solana.NewAccountMeta(accounts.MarketEventQueue, false),
		solana.NewAccountMeta(accounts.MarketCoinVault, false),
		solana.NewAccountMeta(accounts.MarketPcVault, false),
		solana.NewReadonlyAccountMeta(accounts.MarketVaultSigner, false),
		solana.NewAccountMeta(accounts.UserTokenSource, false),
		solana.NewAccountMeta(accounts.UserTokenDestination, false),
		solana.NewReadonlyAccountMeta(accounts.UserSourceOwner, true),
	)
}
