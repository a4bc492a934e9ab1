package intermediary

import (
	"crypto/ed25519"
)

// ProgramKey is the address of the swap routing program.
//
// Current key: 9e7vcyBMPrt5SQVAWyyCRHxbw6e26p6rPtEcZZUSK94v
var ProgramKey = ed25519.PublicKey{128, 95, 208, 156, 126, 24, 15, 117, 106, 236, 59, 37, 141, 33, 176, 54, 35, 112, 208, 32, 194, 86, 161, 235, 103, 29, 101, 215, 233, 80, 158, 113}
