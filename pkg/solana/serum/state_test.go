package serum

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetMut1/Dexswap/pkg/solana"
)

func testKey(b byte) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func pad(inner []byte) []byte {
	data := append([]byte("serum"), inner...)
	return append(data, []byte("padding")...)
}

func TestStripPadding(t *testing.T) {
	inner, err := StripPadding(pad([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, inner)

	_, err = StripPadding([]byte("serum"))
	assert.Equal(t, ErrInvalidPadding, err)

	_, err = StripPadding([]byte("marketpadding"))
	assert.Equal(t, ErrInvalidPadding, err)

	_, err = StripPadding([]byte("serum...trimmed"))
	assert.Equal(t, ErrInvalidPadding, err)
}

func TestMarketState(t *testing.T) {
	program := testKey(9)
	expected := MarketState{
		AccountFlags:     uint64(FlagInitialized | FlagMarket),
		OwnAddress:       testKey(1),
		VaultSignerNonce: 1,
		CoinMint:         testKey(2),
		PcMint:           testKey(3),
		CoinVault:        testKey(4),
		PcVault:          testKey(5),
		RequestQueue:     testKey(6),
		EventQueue:       testKey(7),
		Bids:             testKey(8),
		Asks:             testKey(10),
		CoinLotSize:      1000,
		PcLotSize:        10,
		FeeRateBps:       22,
	}

	info := &solana.AccountInfo{
		Key:   expected.OwnAddress,
		Owner: program,
		Data:  pad(expected.Marshal()),
	}

	actual, err := GetMarketState(info, program)
	require.NoError(t, err)
	assert.Equal(t, &expected, actual)

	_, err = GetMarketState(info, testKey(42))
	assert.Equal(t, ErrInvalidAccountOwner, err)
}

func TestMarketStateFlags(t *testing.T) {
	program := testKey(9)

	for _, tc := range []struct {
		flags AccountFlags
		ok    bool
	}{
		{FlagInitialized | FlagMarket, true},
		{FlagInitialized | FlagMarket | FlagPermissioned, true},
		{FlagInitialized | FlagMarket | FlagPermissioned | FlagCrankAuthorityRequired, true},
		{FlagInitialized, false},
		{FlagMarket, false},
		{FlagInitialized | FlagMarket | FlagDisabled, false},
		{FlagInitialized | FlagMarket | FlagCrankAuthorityRequired, false},
		{FlagInitialized | FlagOpenOrders, false},
	} {
		market := MarketState{AccountFlags: uint64(tc.flags)}
		info := &solana.AccountInfo{
			Owner: program,
			Data:  pad(market.Marshal()),
		}

		_, err := GetMarketState(info, program)
		if tc.ok {
			assert.NoError(t, err, "flags %d", tc.flags)
		} else {
			assert.Equal(t, ErrInvalidAccountFlags, err, "flags %d", tc.flags)
		}
	}
}

func TestOpenOrders(t *testing.T) {
	program := testKey(9)
	expected := OpenOrders{
		AccountFlags:    uint64(FlagInitialized | FlagOpenOrders),
		Market:          testKey(1),
		Owner:           testKey(2),
		NativeCoinFree:  100,
		NativeCoinTotal: 250,
		NativePcFree:    1000,
		NativePcTotal:   5000,
	}

	info := &solana.AccountInfo{
		Owner: program,
		Data:  pad(expected.Marshal()),
	}

	actual, err := GetOpenOrders(info, program, expected.Market, expected.Owner)
	require.NoError(t, err)
	assert.Equal(t, &expected, actual)

	_, err = GetOpenOrders(info, program, testKey(42), expected.Owner)
	assert.Error(t, err)

	_, err = GetOpenOrders(info, program, expected.Market, testKey(42))
	assert.Error(t, err)

	expected.AccountFlags = uint64(FlagInitialized)
	info.Data = pad(expected.Marshal())
	_, err = GetOpenOrders(info, program, nil, nil)
	assert.Equal(t, ErrInvalidAccountFlags, err)
}

func TestEventQueueRing(t *testing.T) {
	program := testKey(9)

	events := []Event{
		{
			Flags:             EventFlagFill | EventFlagBid | EventFlagMaker,
			NativeQtyReleased: 500,
			NativeQtyPaid:     1000,
			Owner:             testKey(1),
		},
		{
			Flags:             EventFlagFill | EventFlagMaker,
			NativeQtyReleased: 700,
			NativeQtyPaid:     350,
			Owner:             testKey(1),
		},
		{
			Flags: EventFlagOut | EventFlagBid,
			Owner: testKey(2),
		},
	}

	// Four slots with the head near the end so reads wrap around.
	header := EventQueueHeader{
		AccountFlags: uint64(FlagInitialized | FlagEventQueue),
		Head:         2,
		Count:        3,
	}

	buffer := make([]byte, 4*EventSize)
	for i, event := range events {
		slot := (header.Head + uint64(i)) % 4
		copy(buffer[slot*EventSize:], event.Marshal())
	}

	info := &solana.AccountInfo{
		Owner: program,
		Data:  pad(append(header.Marshal(), buffer...)),
	}

	queue, err := GetEventQueue(info, program)
	require.NoError(t, err)
	assert.EqualValues(t, 4, queue.Len())

	for i, expected := range events {
		actual, err := queue.Get(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	_, err = queue.Get(3)
	assert.Error(t, err)
}

func TestEventQueueValidation(t *testing.T) {
	program := testKey(9)

	header := EventQueueHeader{
		AccountFlags: uint64(FlagInitialized | FlagEventQueue),
		Count:        5,
	}
	info := &solana.AccountInfo{
		Owner: program,
		Data:  pad(append(header.Marshal(), make([]byte, 2*EventSize)...)),
	}

	_, err := GetEventQueue(info, program)
	assert.Error(t, err)

	header.Count = 0
	header.AccountFlags = uint64(FlagInitialized | FlagRequestQueue)
	info.Data = pad(append(header.Marshal(), make([]byte, 2*EventSize)...))

	_, err = GetEventQueue(info, program)
	assert.Equal(t, ErrInvalidAccountFlags, err)
}

func TestEventValidate(t *testing.T) {
	for _, tc := range []struct {
		flags EventFlags
		ok    bool
	}{
		{EventFlagFill, true},
		{EventFlagFill | EventFlagBid | EventFlagMaker, true},
		{EventFlagOut, true},
		{EventFlagOut | EventFlagBid | EventFlagReleaseFunds, true},
		{EventFlagFill | EventFlagOut, false},
		{EventFlagFill | EventFlagReleaseFunds, false},
		{EventFlagOut | EventFlagMaker, false},
	} {
		event := Event{Flags: tc.flags}
		if tc.ok {
			assert.NoError(t, event.Validate(), "flags %d", tc.flags)
		} else {
			assert.Error(t, event.Validate(), "flags %d", tc.flags)
		}
	}
}
