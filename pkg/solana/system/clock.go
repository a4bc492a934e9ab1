package system

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

const ClockAccountSize = 40

// Clock is the deserialized "Clock" sysvar.
//
// Reference: https://github.com/solana-labs/solana/blob/a4956844bdd081e7b90508066c579f29be306ce7/sdk/program/src/clock.rs#L186
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (c *Clock) Marshal() []byte {
	b := make([]byte, ClockAccountSize)
	binary.LittleEndian.PutUint64(b, c.Slot)
	binary.LittleEndian.PutUint64(b[8:], uint64(c.EpochStartTimestamp))
	binary.LittleEndian.PutUint64(b[16:], c.Epoch)
	binary.LittleEndian.PutUint64(b[24:], c.LeaderScheduleEpoch)
	binary.LittleEndian.PutUint64(b[32:], uint64(c.UnixTimestamp))
	return b
}

func (c *Clock) Unmarshal(data []byte) error {
	if len(data) != ClockAccountSize {
		return errors.Errorf("invalid clock sysvar size: %d", len(data))
	}

	c.Slot = binary.LittleEndian.Uint64(data)
	c.EpochStartTimestamp = int64(binary.LittleEndian.Uint64(data[8:]))
	c.Epoch = binary.LittleEndian.Uint64(data[16:])
	c.LeaderScheduleEpoch = binary.LittleEndian.Uint64(data[24:])
	c.UnixTimestamp = int64(binary.LittleEndian.Uint64(data[32:]))
	return nil
}

// GetClockFromAccount decodes the Clock sysvar from its account.
func GetClockFromAccount(info *solana.AccountInfo) (Clock, error) {
	var clock Clock
	if err := clock.Unmarshal(info.Data); err != nil {
		return clock, err
	}
	return clock, nil
}
