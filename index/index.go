// Package index implements MED's three fixed 24-byte index entry types:
// Time-Series Index, Video Index, and Record Index. All three share one
// physical layout (a file offset with its sign bit repurposed as a
// discontinuity marker, a µUTC start time, and a segment-local sample,
// frame, or record counter), so one Entry type serves all three.
package index

import (
	"sort"

	"github.com/MEDFormat/MEDC-sub001/endian"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
)

var engine = endian.GetLittleEndianEngine()

// discontinuityBit is the sign bit of the on-disk file_offset field,
// repurposed as a discontinuity marker ("file_offset
// ... sign-bit = discontinuity marker").
const discontinuityBit = uint64(1) << 63

// Entry is one 24-byte index record: a Time-Series Index, Video Index, or
// Record Index entry. Counter holds start_sample_number, start_frame_number,
// or the record ordinal, depending on which index this entry belongs to.
type Entry struct {
	FileOffset     int64
	Discontinuity  bool
	StartTime      int64
	Counter        int64
}

const EntrySize = format.TimeSeriesIndexSize // 24; shared by all three index kinds

// Bytes serializes e into a fresh EntrySize-byte slice.
func (e Entry) Bytes() []byte {
	b := make([]byte, EntrySize)

	packed := uint64(e.FileOffset)
	if e.Discontinuity {
		packed |= discontinuityBit
	} else {
		packed &^= discontinuityBit
	}

	engine.PutUint64(b[0:], packed)
	engine.PutUint64(b[8:], uint64(e.StartTime))
	engine.PutUint64(b[16:], uint64(e.Counter))

	return b
}

// ParseEntry decodes an Entry from exactly EntrySize bytes.
func ParseEntry(data []byte) (Entry, error) {
	if len(data) != EntrySize {
		return Entry{}, errs.ErrInvalidIndexEntrySize
	}

	packed := engine.Uint64(data[0:])

	var e Entry
	e.Discontinuity = packed&discontinuityBit != 0
	e.FileOffset = int64(packed &^ discontinuityBit)
	e.StartTime = int64(engine.Uint64(data[8:]))
	e.Counter = int64(engine.Uint64(data[16:]))

	return e, nil
}

// NewTerminalEntry builds the terminal sentinel entry every index ends
// with: (end_time+1, total_samples), so that range queries against the
// last real entry remain well-defined and half-open.
func NewTerminalEntry(fileLength, endTime, totalCount int64) Entry {
	return Entry{
		FileOffset: fileLength,
		StartTime:  endTime + 1,
		Counter:    totalCount,
	}
}

// ValidateOrdering checks the ordering invariant: "entries are
// strictly ordered by start_sample_number" (equivalently, by Counter, for
// video/record indices).
func ValidateOrdering(entries []Entry) error {
	if !sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].Counter < entries[j].Counter
	}) {
		return errs.ErrIndexNotMonotonic
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].Counter == entries[i-1].Counter {
			return errs.ErrIndexNotMonotonic
		}
	}

	return nil
}

// Search returns the index of the last entry whose Counter is <= target,
// or -1 if target precedes every entry. Entries must already satisfy
// ValidateOrdering.
func Search(entries []Entry, target int64) int {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Counter > target
	})

	return i - 1
}

// SearchByTime returns the index of the last entry whose StartTime is <=
// target, or -1 if target precedes every entry.
func SearchByTime(entries []Entry, target int64) int {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].StartTime > target
	})

	return i - 1
}
