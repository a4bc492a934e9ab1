package system

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

const (
	RentAccountSize = 17

	// Extra bytes the runtime charges rent for on every account.
	//
	// Reference: https://github.com/solana-labs/solana/blob/a4956844bdd081e7b90508066c579f29be306ce7/sdk/program/src/rent.rs#L31
	accountStorageOverhead = 128
)

// Rent is the deserialized "Rent" sysvar.
//
// Reference: https://github.com/solana-labs/solana/blob/a4956844bdd081e7b90508066c579f29be306ce7/sdk/program/src/rent.rs#L12
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

func (r *Rent) Marshal() []byte {
	b := make([]byte, RentAccountSize)
	binary.LittleEndian.PutUint64(b, r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(r.ExemptionThreshold))
	b[16] = r.BurnPercent
	return b
}

func (r *Rent) Unmarshal(data []byte) error {
	if len(data) != RentAccountSize {
		return errors.Errorf("invalid rent sysvar size: %d", len(data))
	}

	r.LamportsPerByteYear = binary.LittleEndian.Uint64(data)
	r.ExemptionThreshold = math.Float64frombits(binary.LittleEndian.Uint64(data[8:]))
	r.BurnPercent = data[16]
	return nil
}

// MinimumBalance returns the lamport balance at which an account of the
// given data size becomes rent exempt.
//
// Reference: https://github.com/solana-labs/solana/blob/a4956844bdd081e7b90508066c579f29be306ce7/sdk/program/src/rent.rs#L69
func (r *Rent) MinimumBalance(dataLen uint64) uint64 {
	return uint64(float64((accountStorageOverhead+dataLen)*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// GetRentFromAccount decodes the Rent sysvar from its account.
func GetRentFromAccount(info *solana.AccountInfo) (Rent, error) {
	var rent Rent
	if err := rent.Unmarshal(info.Data); err != nil {
		return rent, err
	}
	return rent, nil
}
