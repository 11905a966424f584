package cmp

// predCategory is the one-step context PRED switches on, derived from the
// sign of the previous emitted difference byte.
type predCategory int

const (
	catNIL predCategory = iota // after zero or at the start
	catPOS                     // after a positive difference
	catNEG                     // after a negative difference
)

func categoryOf(b int8) predCategory {
	switch {
	case b > 0:
		return catPOS
	case b < 0:
		return catNEG
	default:
		return catNIL
	}
}

// PREDModel is PRED's model region: one statsTable per context, each with
// its own bin count and symbol/count arrays.
type PREDModel struct {
	InitialSampleValue int32
	DifferenceBytes    uint32
	Contexts           [3]REDModel // indexed by predCategory
}

// splitByContext partitions a difference byte stream into three streams,
// one per predCategory, walking the one-step context exactly as the
// decoder must: the context updates after every emitted byte.
func splitByContext(diffs []byte) (streams [3][]byte, assign []predCategory) {
	assign = make([]predCategory, len(diffs))
	ctx := catNIL
	for i, b := range diffs {
		assign[i] = ctx
		streams[ctx] = append(streams[ctx], b)
		ctx = categoryOf(int8(b))
	}
	return streams, assign
}

// EncodePRED encodes samples using PRED: the same KEYSAMPLE-escaped
// difference stream as RED, but range-coded through three context-specific
// statistics tables selected by the running one-step context.
func EncodePRED(samples []int32) (payload []byte, model PREDModel) {
	if len(samples) == 0 {
		return nil, PREDModel{}
	}
	if len(samples) == 1 {
		return nil, PREDModel{InitialSampleValue: samples[0]}
	}

	diffs, release := redDifferences(samples)
	defer release()
	streams, assign := splitByContext(diffs)

	var tables [3]*statsTable
	for c := 0; c < 3; c++ {
		tables[c] = buildStatsTable(streams[c])
		model.Contexts[c] = REDModel{
			NumberOfStatisticsBins: uint16(len(tables[c].symbols)),
			BinCounts:              tables[c].counts,
			Symbols:                tables[c].symbols,
		}
	}
	model.InitialSampleValue = samples[0]
	model.DifferenceBytes = uint32(len(diffs))

	needsCoding := false
	for c := 0; c < 3; c++ {
		if len(tables[c].symbols) > 1 {
			needsCoding = true
		}
	}
	if !needsCoding {
		return nil, model
	}

	enc := newRangeEncoder()
	for i, b := range diffs {
		ctx := assign[i]
		st := tables[ctx]
		if len(st.symbols) <= 1 {
			continue // nothing to code: the lone symbol is implied by the table
		}
		idx := st.index[b]
		lo, hi := st.bounds(idx)
		enc.encodeSymbol(lo, hi)
	}
	payload = enc.Finish()

	return payload, model
}

// DecodePRED reverses EncodePRED, reconstructing exactly n samples.
func DecodePRED(payload []byte, model PREDModel, n int) []int32 {
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int32{model.InitialSampleValue}
	}

	var tables [3]*statsTable
	for c := 0; c < 3; c++ {
		tables[c] = rebuildStatsTable(model.Contexts[c].Symbols, model.Contexts[c].BinCounts)
	}

	dec := newRangeDecoder(payload)
	diffs := make([]byte, 0, model.DifferenceBytes)
	ctx := catNIL
	for uint32(len(diffs)) < model.DifferenceBytes {
		st := tables[ctx]

		var b byte
		if len(st.symbols) <= 1 {
			if len(st.symbols) == 1 {
				b = byte(st.symbols[0])
			}
		} else {
			freq := dec.freq()
			idx, err := st.lookup(freq)
			if err != nil {
				break
			}
			lo, hi := st.bounds(idx)
			dec.consume(lo, hi)
			b = byte(st.symbols[idx])
		}

		diffs = append(diffs, b)
		ctx = categoryOf(int8(b))
	}

	return redUndiff(model.InitialSampleValue, diffs, n)
}
