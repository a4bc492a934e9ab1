package raydium

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorityAddress(t *testing.T) {
	authority, err := AuthorityAddress(ProgramKey, 254)
	require.NoError(t, err)
	assert.Equal(t, "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", base58.Encode(authority))
}

func TestSwap(t *testing.T) {
	accounts := SwapInstructionAccounts{}
	keys := make([]ed25519.PublicKey, 17)
	for i := range keys {
		keys[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		keys[i][0] = byte(i + 1)
	}
	accounts.TokenProgram = keys[0]
	accounts.AmmPool = keys[1]
	accounts.AmmAuthority = keys[2]
	accounts.AmmOpenOrders = keys[3]
	accounts.AmmCoinVault = keys[4]
	accounts.AmmPcVault = keys[5]
	accounts.MarketProgram = keys[6]
	accounts.Market = keys[7]
	accounts.MarketBids = keys[8]
	accounts.MarketAsks = keys[9]
	accounts.MarketEventQueue = keys[10]
	accounts.MarketCoinVault = keys[11]
	accounts.MarketPcVault = keys[12]
	accounts.MarketVaultSigner = keys[13]
	accounts.UserTokenSource = keys[14]
	accounts.UserTokenDestination = keys[15]
	accounts.UserSourceOwner = keys[16]

	instruction := Swap(ProgramKey, accounts, 10000, 9700)

	assert.EqualValues(t, ProgramKey, instruction.Program)
	require.Len(t, instruction.Data, 17)
	assert.Equal(t, byte(swapBaseInCommand), instruction.Data[0])
	assert.EqualValues(t, 10000, binary.LittleEndian.Uint64(instruction.Data[1:9]))
	assert.EqualValues(t, 9700, binary.LittleEndian.Uint64(instruction.Data[9:17]))

	require.Len(t, instruction.Accounts, 17)
	for i, meta := range instruction.Accounts {
		assert.EqualValues(t, keys[i], meta.PublicKey)
	}
	assert.False(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.False(t, instruction.Accounts[2].IsWritable)
	assert.False(t, instruction.Accounts[13].IsWritable)
	assert.True(t, instruction.Accounts[15].IsWritable)
	assert.True(t, instruction.Accounts[16].IsSigner)
	assert.False(t, instruction.Accounts[16].IsWritable)
}
