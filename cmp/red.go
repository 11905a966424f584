package cmp

import "github.com/MEDFormat/MEDC-sub001/internal/pool"

// Package-level constants shared by RED and PRED.
var (
	keysampleMarker = int8(-128) // 0x80, the KEYSAMPLE escape byte.
)

// REDModel is a RED block's model region: initial_sample_value plus the
// derivative-level/statistics metadata needed to rebuild the single shared
// statsTable.
type REDModel struct {
	InitialSampleValue   int32
	DifferenceBytes      uint32
	DerivativeLevel      uint8
	NoZeroCountsFlag     uint8
	NumberOfStatisticsBins uint16
	BinCounts            []uint16
	Symbols              []int8
}

// redDifferences produces the signed-byte difference stream shared by RED
// and PRED: consecutive sample deltas, with a 5-byte
// KEYSAMPLE escape (marker + 4 little-endian raw bytes) whenever a delta
// would not fit in a signed byte. The backing array comes from
// internal/pool's byte-slice tier (the same pool the CMP codec uses for
// every other per-block scratch buffer); the caller must invoke the
// returned release func once diffs is no longer needed.
func redDifferences(samples []int32) (diffs []byte, release func()) {
	if len(samples) == 0 {
		return nil, func() {}
	}

	// Worst case: every delta escapes to a 5-byte KEYSAMPLE.
	backing, release := pool.GetByteSlice(5 * (len(samples) - 1))
	diffs = backing[:0]
	for i := 1; i < len(samples); i++ {
		d := int64(samples[i]) - int64(samples[i-1])
		if d > 127 || d < -127 {
			diffs = append(diffs, byte(keysampleMarker))
			diffs = appendInt32LE(diffs, samples[i])
			continue
		}
		diffs = append(diffs, byte(int8(d)))
	}

	return
}

func appendInt32LE(b []byte, v int32) []byte {
	u := uint32(v)
	return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}

func readInt32LE(b []byte) int32 {
	u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return int32(u)
}

// redUndiff reverses redDifferences given the initial sample value and the
// reconstructed byte stream (with KEYSAMPLE escapes already resolved to
// plain differences by the caller is NOT how this works: undiffing and
// escape-resolution happen together since a keysample byte consumes 4
// extra stream bytes).
func redUndiff(initial int32, diffs []byte, n int) []int32 {
	out := make([]int32, n)
	if n == 0 {
		return out
	}
	out[0] = initial

	pos := 0
	for i := 1; i < n; i++ {
		if pos >= len(diffs) {
			break
		}
		b := int8(diffs[pos])
		if b == keysampleMarker && pos+4 < len(diffs) {
			out[i] = readInt32LE(diffs[pos+1 : pos+5])
			pos += 5
			continue
		}
		out[i] = out[i-1] + int32(b)
		pos++
	}

	return out
}

// EncodeRED encodes samples using the RED scheme: difference with
// KEYSAMPLE escapes, then range-code the resulting byte stream against a
// single shared statistics table.
func EncodeRED(samples []int32) (payload []byte, model REDModel) {
	if len(samples) == 0 {
		return nil, REDModel{}
	}
	if len(samples) == 1 {
		return nil, REDModel{InitialSampleValue: samples[0]}
	}

	diffs, release := redDifferences(samples)
	defer release()
	st := buildStatsTable(diffs)

	model = REDModel{
		InitialSampleValue:     samples[0],
		DerivativeLevel:        1,
		NumberOfStatisticsBins: uint16(len(st.symbols)),
		BinCounts:              st.counts,
		Symbols:                st.symbols,
	}

	if len(st.symbols) <= 1 {
		// All samples equal (or a single surviving symbol after
		// differencing) produces exactly one statistics bin and no
		// range-coded payload at all.
		model.DifferenceBytes = uint32(len(diffs))
		return nil, model
	}

	enc := newRangeEncoder()
	for _, b := range diffs {
		idx := st.index[b]
		lo, hi := st.bounds(idx)
		enc.encodeSymbol(lo, hi)
	}
	payload = enc.Finish()
	model.DifferenceBytes = uint32(len(diffs))

	return payload, model
}

// DecodeRED reverses EncodeRED, reconstructing exactly n samples.
func DecodeRED(payload []byte, model REDModel, n int) []int32 {
	if n == 0 {
		return nil
	}
	if n == 1 || model.NumberOfStatisticsBins == 0 {
		out := make([]int32, n)
		out[0] = model.InitialSampleValue
		for i := 1; i < n; i++ {
			out[i] = out[0]
		}
		return out
	}

	st := rebuildStatsTable(model.Symbols, model.BinCounts)

	if len(st.symbols) <= 1 {
		// Single-symbol stream: every byte in the (unencoded) difference
		// stream is the same value.
		var b byte
		if len(st.symbols) == 1 {
			b = byte(st.symbols[0])
		}
		diffs := make([]byte, model.DifferenceBytes)
		for i := range diffs {
			diffs[i] = b
		}
		return redUndiff(model.InitialSampleValue, diffs, n)
	}

	dec := newRangeDecoder(payload)
	diffs := make([]byte, 0, model.DifferenceBytes)
	for uint32(len(diffs)) < model.DifferenceBytes {
		freq := dec.freq()
		idx, err := st.lookup(freq)
		if err != nil {
			break
		}
		lo, hi := st.bounds(idx)
		dec.consume(lo, hi)
		diffs = append(diffs, byte(st.symbols[idx]))
	}

	return redUndiff(model.InitialSampleValue, diffs, n)
}

// rebuildStatsTable reconstructs a statsTable from a decoded (symbols,
// counts) pair, recomputing cumulative bounds the same way
// buildStatsTable does.
func rebuildStatsTable(symbols []int8, counts []uint16) *statsTable {
	st := &statsTable{symbols: symbols, counts: counts}
	for i := range st.index {
		st.index[i] = -1
	}

	st.cumLo = make([]uint32, len(symbols)+1)
	cum := uint32(0)
	for i, s := range symbols {
		st.cumLo[i] = cum
		cum += uint32(counts[i])
		st.index[byte(s)] = i
	}
	st.cumLo[len(symbols)] = cum

	return st
}
