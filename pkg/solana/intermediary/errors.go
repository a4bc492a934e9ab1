package intermediary

import (
	"github.com/LetMut1/Dexswap/pkg/solana"
)

// Custom error codes of the program, stable across releases.
const (
	ErrorIntermediaryInvalidAuthority solana.CustomError = iota
	ErrorIntermediaryInvalidManager
	ErrorIntermediaryInvalidTemporaryWSolTokenAccount
	ErrorIntermediaryInvalidTrader
	ErrorIntermediaryInvalidWSolTokenAccount
	ErrorIntermediaryIsNotInitialized
	ErrorInvalidAccountConfigurationFlags
	ErrorInvalidAccountData
	ErrorInvalidAccountLamports
	ErrorInvalidAccountPubkey
	ErrorInvalidLogic
	ErrorNotImplemented
	ErrorRepeatableDex
	ErrorEqualMints
	ErrorZeroAmountIn
	ErrorZeroDexesPresented
	ErrorInvalidSwapConditions
	ErrorInvalidTokenMint
	ErrorTokenAccountInsufficientAmount
	ErrorTokenAccountInvalidAmount
	ErrorExpectedAccount
	ErrorInvalidOpenOrders
	ErrorInvalidMarket
	ErrorInvalidOwner
	ErrorInvalidStatus
	ErrorInvalidAmmAccountOwner
	ErrorCheckedSubOverflow
	ErrorCheckedAddOverflow
	ErrorInvalidSplTokenProgram
	ErrorInvalidUserToken
	ErrorInvalidFee
	ErrorWrongEventQueueAccount
)
