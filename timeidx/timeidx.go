// Package timeidx implements MED's time/index translation engine:
// converting between absolute µUTC, segment-local sample numbers, and
// channel/session-absolute sample numbers, honoring recording-clock
// discontinuities recorded in a time-series index.
//
// Both conversion directions operate over the same fixed-width index.Entry
// the index package defines.
package timeidx

import (
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/index"
)

// SampleForUUTC maps an absolute µUTC to a sample number.
//
// When indices is non-empty, it scans for the entry whose start_time first
// exceeds targetUUTC: if target precedes every entry, the lowest absolute
// sample is returned; if it's past the terminal entry, the terminal
// entry's sample minus one is returned; otherwise fs is refined from the
// surrounding pair (honoring a clock-rate change across a discontinuity)
// and the sample is extrapolated from the previous entry. Without
// indices, it's a linear extrapolation from (refSample, refUUTC) at fs.
func SampleForUUTC(refSample int64, refUUTC, targetUUTC int64, fs float64, indices []index.Entry, mode format.TimeMode) int64 {
	if len(indices) == 0 {
		return applyMode(linearSample(refSample, refUUTC, targetUUTC, fs), mode)
	}

	// Find the first entry whose StartTime strictly exceeds targetUUTC.
	pos := 0
	for pos < len(indices) && indices[pos].StartTime <= targetUUTC {
		pos++
	}

	if pos == 0 {
		return indices[0].Counter
	}
	if pos >= len(indices) {
		return indices[len(indices)-1].Counter - 1
	}

	prev := indices[pos-1]
	next := indices[pos]

	effectiveFS := fs
	if next.Discontinuity {
		// The gap spans a discontinuity: use the sampling frequency
		// refined from the next contiguous pair, never interpolating
		// across the break.
		if pos+1 < len(indices) {
			after := indices[pos+1]
			if after.StartTime != next.StartTime {
				effectiveFS = float64(after.Counter-next.Counter) * 1e6 / float64(after.StartTime-next.StartTime)
			}
		}
		return applyMode(linearSample(next.Counter, next.StartTime, targetUUTC, effectiveFS), mode)
	}

	if next.StartTime != prev.StartTime {
		effectiveFS = float64(next.Counter-prev.Counter) * 1e6 / float64(next.StartTime-prev.StartTime)
	}

	return applyMode(linearSample(prev.Counter, prev.StartTime, targetUUTC, effectiveFS), mode)
}

// UUTCForSample maps a sample number to a µUTC. A sample's time is the
// half-open interval [sample_start, next_sample_start); RangeMode selects
// FindStart/FindEnd/FindCenter within that period.
func UUTCForSample(refSample int64, refUUTC, targetSample int64, fs float64, indices []index.Entry, mode format.RangeMode) int64 {
	if len(indices) == 0 {
		return applyRangeMode(linearUUTC(refSample, refUUTC, targetSample, fs), fs, mode)
	}

	pos := 0
	for pos < len(indices) && indices[pos].Counter <= targetSample {
		pos++
	}

	if pos == 0 {
		return applyRangeMode(float64(indices[0].StartTime), fs, mode)
	}
	if pos >= len(indices) {
		return indices[len(indices)-1].StartTime
	}

	prev := indices[pos-1]
	next := indices[pos]

	effectiveFS := fs
	if next.Discontinuity {
		if pos+1 < len(indices) {
			after := indices[pos+1]
			if after.Counter != next.Counter {
				effectiveFS = float64(after.Counter-next.Counter) * 1e6 / float64(after.StartTime-next.StartTime)
			}
		}
		return applyRangeMode(linearUUTC(next.Counter, next.StartTime, targetSample, effectiveFS), effectiveFS, mode)
	}

	if next.Counter != prev.Counter {
		effectiveFS = float64(next.Counter-prev.Counter) * 1e6 / float64(next.StartTime-prev.StartTime)
	}

	return applyRangeMode(linearUUTC(prev.Counter, prev.StartTime, targetSample, effectiveFS), effectiveFS, mode)
}

func linearSample(refSample, refUUTC, targetUUTC int64, fs float64) float64 {
	if fs <= 0 {
		return float64(refSample)
	}
	return float64(refSample) + float64(targetUUTC-refUUTC)*fs/1e6
}

func linearUUTC(refSample, refUUTC, targetSample int64, fs float64) float64 {
	if fs <= 0 {
		return float64(refUUTC)
	}
	return float64(refUUTC) + float64(targetSample-refSample)*1e6/fs
}

func applyMode(v float64, mode format.TimeMode) int64 {
	switch mode {
	case format.ModeClosest:
		if v >= 0 {
			return int64(v + 0.5)
		}
		return -int64(-v + 0.5)
	case format.ModeNext:
		f := int64(v)
		if float64(f) < v {
			f++
		}
		return f
	default: // ModeCurrent: floor
		f := int64(v)
		if float64(f) > v {
			f--
		}
		return f
	}
}

// applyRangeMode resolves a fractional µUTC estimate against the
// half-open sample period [start, start + periodWidth) that FindStart,
// FindEnd, and FindCenter address.
func applyRangeMode(start float64, fs float64, mode format.RangeMode) int64 {
	period := 0.0
	if fs > 0 {
		period = 1e6 / fs
	}

	switch mode {
	case format.FindEnd:
		return int64(start+period) - 1
	case format.FindCenter:
		return int64(start + period/2)
	default: // FindStart
		return int64(start)
	}
}

// ApplyRecordingTimeOffset and RemoveRecordingTimeOffset are the
// de-identification helpers: on-disk timestamps have
// recordingTimeOffset subtracted before storage so absolute times can be
// stripped by zeroing the offset. A value already outside the
// offset-adjusted valid range is treated as already-absolute and passed
// through unchanged. The metadata package carries the same two helpers as
// thin wrappers over these, since its Section3 owns the RecordingTimeOffset field
// these operate on; the arithmetic itself lives here, next to the rest of
// the translation engine.
func ApplyRecordingTimeOffset(absoluteUUTC, recordingTimeOffset int64) int64 {
	if absoluteUUTC == format.UUTCNoEntry || absoluteUUTC < format.BeginningOfTime {
		return absoluteUUTC
	}
	return absoluteUUTC - recordingTimeOffset
}

func RemoveRecordingTimeOffset(storedUUTC, recordingTimeOffset int64) int64 {
	if storedUUTC == format.UUTCNoEntry {
		return storedUUTC
	}
	restored := storedUUTC + recordingTimeOffset
	if restored < format.BeginningOfTime || restored > format.EndOfTime {
		return storedUUTC
	}
	return restored
}
