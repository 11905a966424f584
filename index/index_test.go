package index

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/stretchr/testify/require"
)

func TestEntryBytesParseRoundTrip(t *testing.T) {
	e := Entry{FileOffset: 4096, Discontinuity: true, StartTime: 1_000_000, Counter: 512}

	raw := e.Bytes()
	require.Len(t, raw, EntrySize)

	got, err := ParseEntry(raw)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestEntry_DiscontinuityBitDoesNotCorruptOffset(t *testing.T) {
	e := Entry{FileOffset: 123456789, Discontinuity: false, StartTime: 0, Counter: 0}
	raw := e.Bytes()
	got, err := ParseEntry(raw)
	require.NoError(t, err)
	require.Equal(t, int64(123456789), got.FileOffset)
	require.False(t, got.Discontinuity)
}

func TestParseEntry_RejectsWrongSize(t *testing.T) {
	_, err := ParseEntry(make([]byte, EntrySize-1))
	require.ErrorIs(t, err, errs.ErrInvalidIndexEntrySize)
}

func TestNewTerminalEntry(t *testing.T) {
	term := NewTerminalEntry(8192, 9_999, 4000)
	require.Equal(t, int64(8192), term.FileOffset)
	require.Equal(t, int64(10_000), term.StartTime)
	require.Equal(t, int64(4000), term.Counter)
}

func TestValidateOrdering(t *testing.T) {
	ok := []Entry{{Counter: 0}, {Counter: 100}, {Counter: 200}}
	require.NoError(t, ValidateOrdering(ok))

	dup := []Entry{{Counter: 0}, {Counter: 100}, {Counter: 100}}
	require.ErrorIs(t, ValidateOrdering(dup), errs.ErrIndexNotMonotonic)

	outOfOrder := []Entry{{Counter: 100}, {Counter: 0}}
	require.ErrorIs(t, ValidateOrdering(outOfOrder), errs.ErrIndexNotMonotonic)
}

func TestSearch(t *testing.T) {
	entries := []Entry{{Counter: 0}, {Counter: 100}, {Counter: 200}, {Counter: 300}}

	require.Equal(t, 0, Search(entries, 0))
	require.Equal(t, 1, Search(entries, 150))
	require.Equal(t, 3, Search(entries, 1000))
	require.Equal(t, -1, Search(entries, -1))
}

func TestSearchByTime(t *testing.T) {
	entries := []Entry{{StartTime: 1000}, {StartTime: 2000}, {StartTime: 3000}}

	require.Equal(t, 0, SearchByTime(entries, 1500))
	require.Equal(t, 2, SearchByTime(entries, 5000))
	require.Equal(t, -1, SearchByTime(entries, 500))
}
