package serum

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/LetMut1/Dexswap/pkg/solana"
	"github.com/LetMut1/Dexswap/pkg/solana/binary"
)

type EventFlags uint8

const (
	EventFlagFill EventFlags = 1 << iota
	EventFlagOut
	EventFlagBid
	EventFlagMaker
	EventFlagReleaseFunds
)

const (
	// EventQueueHeaderSize is the packed size of the queue header.
	EventQueueHeaderSize = 32

	// EventSize is the packed size of one queue entry.
	EventSize = 88
)

// EventQueueHeader describes the ring buffer of an event queue account.
//
// Reference: https://github.com/project-serum/serum-dex/blob/master/dex/src/state.rs#L787
type EventQueueHeader struct {
	AccountFlags uint64
	Head         uint64
	Count        uint64
	SeqNum       uint64
}

func (h *EventQueueHeader) Marshal() []byte {
	b := make([]byte, EventQueueHeaderSize)

	var offset int
	binary.PutUint64(b, h.AccountFlags, &offset)
	binary.PutUint64(b[offset:], h.Head, &offset)
	binary.PutUint64(b[offset:], h.Count, &offset)
	binary.PutUint64(b[offset:], h.SeqNum, &offset)

	return b
}

func (h *EventQueueHeader) Unmarshal(b []byte) error {
	if len(b) < EventQueueHeaderSize {
		return errors.Errorf("invalid event queue header size: %d", len(b))
	}

	var offset int
	binary.GetUint64(b, &h.AccountFlags, &offset)
	binary.GetUint64(b[offset:], &h.Head, &offset)
	binary.GetUint64(b[offset:], &h.Count, &offset)
	binary.GetUint64(b[offset:], &h.SeqNum, &offset)

	return nil
}

// Event is a single trade or cancellation in the event queue.
//
// Reference: https://github.com/project-serum/serum-dex/blob/master/dex/src/matching.rs
type Event struct {
	Flags     EventFlags
	OwnerSlot uint8
	FeeTier   uint8

	NativeQtyReleased uint64
	NativeQtyPaid     uint64
	NativeFeeOrRebate uint64

	OrderID       [16]byte
	Owner         ed25519.PublicKey
	ClientOrderID uint64
}

func (e *Event) Marshal() []byte {
	b := make([]byte, EventSize)

	b[0] = byte(e.Flags)
	b[1] = e.OwnerSlot
	b[2] = e.FeeTier

	offset := 8
	binary.PutUint64(b[offset:], e.NativeQtyReleased, &offset)
	binary.PutUint64(b[offset:], e.NativeQtyPaid, &offset)
	binary.PutUint64(b[offset:], e.NativeFeeOrRebate, &offset)

	copy(b[offset:], e.OrderID[:])
	offset += len(e.OrderID)

	binary.PutKey32(b[offset:], e.Owner, &offset)
	binary.PutUint64(b[offset:], e.ClientOrderID, &offset)

	return b
}

func (e *Event) Unmarshal(b []byte) error {
	if len(b) != EventSize {
		return errors.Errorf("invalid event size: %d", len(b))
	}

	e.Flags = EventFlags(b[0])
	e.OwnerSlot = b[1]
	e.FeeTier = b[2]

	offset := 8
	binary.GetUint64(b[offset:], &e.NativeQtyReleased, &offset)
	binary.GetUint64(b[offset:], &e.NativeQtyPaid, &offset)
	binary.GetUint64(b[offset:], &e.NativeFeeOrRebate, &offset)

	copy(e.OrderID[:], b[offset:])
	offset += len(e.OrderID)

	binary.GetKey32(b[offset:], &e.Owner, &offset)
	binary.GetUint64(b[offset:], &e.ClientOrderID, &offset)

	return nil
}

// Validate rejects flag combinations the matching engine never emits.
func (e *Event) Validate() error {
	allowed := EventFlagOut | EventFlagBid | EventFlagReleaseFunds
	if e.Flags&EventFlagFill != 0 {
		allowed = EventFlagFill | EventFlagBid | EventFlagMaker
	}
	if e.Flags&^allowed != 0 {
		return errors.Errorf("invalid event flags: %d", e.Flags)
	}
	return nil
}

// EventQueue is a decoded event queue account. Buffer holds the full ring
// buffer region, slop bytes excluded.
type EventQueue struct {
	Header EventQueueHeader
	Buffer []byte
}

// Len returns the ring buffer capacity in events.
func (q *EventQueue) Len() uint64 {
	return uint64(len(q.Buffer) / EventSize)
}

// Get decodes the i-th pending event, counted from the head of the ring.
func (q *EventQueue) Get(i uint64) (Event, error) {
	var event Event
	if i >= q.Header.Count {
		return event, errors.New("event index out of range")
	}

	slot := (q.Header.Head + i) % q.Len()
	err := event.Unmarshal(q.Buffer[slot*EventSize : (slot+1)*EventSize])
	return event, err
}

// GetEventQueue decodes and validates an event queue account owned by the
// given market program.
func GetEventQueue(info *solana.AccountInfo, marketProgram ed25519.PublicKey) (*EventQueue, error) {
	if !bytes.Equal(info.Owner, marketProgram) {
		return nil, ErrInvalidAccountOwner
	}

	inner, err := StripPadding(info.Data)
	if err != nil {
		return nil, err
	}

	var queue EventQueue
	if err := queue.Header.Unmarshal(inner); err != nil {
		return nil, err
	}
	if AccountFlags(queue.Header.AccountFlags) != FlagInitialized|FlagEventQueue {
		return nil, ErrInvalidAccountFlags
	}

	buffer := inner[EventQueueHeaderSize:]
	buffer = buffer[:len(buffer)/EventSize*EventSize]
	queue.Buffer = buffer

	if queue.Header.Count > queue.Len() {
		return nil, errors.New("event count exceeds queue capacity")
	}

	return &queue, nil
}
