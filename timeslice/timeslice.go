// Package timeslice implements MED's time-slice resolver: given a
// (time-or-index range, reference channel) request, it locates the
// start/end segment across a channel or session and fills in the
// symmetric fields of the slice.
//
// Resolution tries Sgmt records first, falls back to per-segment
// metadata, and finally to cross-channel translation through a reference
// channel.
package timeslice

import (
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/record"
)

// Slice is the symmetric time/index window descriptor: both request and
// response for a time-slice query.
type Slice struct {
	StartTime int64
	EndTime   int64

	StartIndex int64
	EndIndex   int64

	LocalStartIndex int64
	LocalEndIndex   int64

	NumberOfSamples int64

	StartSegmentNumber int32
	EndSegmentNumber   int32

	SessionStartTime int64
	SessionEndTime   int64

	IndexReferenceChannelName string
	Conditioned               bool
}

// HasTimeLimits reports whether the slice names its range via time.
func (s Slice) HasTimeLimits() bool {
	return s.StartTime != format.UUTCNoEntry || s.EndTime != format.UUTCNoEntry
}

// HasIndexLimits reports whether the slice names its range via sample
// index.
func (s Slice) HasIndexLimits() bool {
	return s.StartIndex != format.SampleNumberNoEntry || s.EndIndex != format.SampleNumberNoEntry
}

// Condition applies the slice-conditioning rules in place: a negative
// time value means "relative to session start"
// (actual = session_start - value); a large positive, apparently
// un-offset value is corrected by subtracting recordingTimeOffset when
// doing so still yields a positive result.
func (s *Slice) Condition(sessionStart, recordingTimeOffset int64) {
	if s.Conditioned {
		return
	}

	adjust := func(t int64) int64 {
		if t == format.UUTCNoEntry {
			return t
		}
		if t < 0 {
			return sessionStart - t
		}
		if corrected := t - recordingTimeOffset; corrected > 0 {
			return corrected
		}
		return t
	}

	s.StartTime = adjust(s.StartTime)
	s.EndTime = adjust(s.EndTime)
	s.Conditioned = true
}

// SegmentTimeSource is satisfied by a reader of segment-level metadata, so
// this package never depends directly on a filesystem layout, only the
// facts it needs from each segment.
type SegmentTimeSource interface {
	SegmentNumber() int32
	FileStartTime() int64
	FileEndTime() int64
	AbsoluteStartSampleNumber() int64
	NumberOfSamples() int64
}

// ResolveFromSgmtRecords is the first resolution strategy: scan
// Sgmt_v10 records for the first one whose [start_time,end_time] (or
// sample bounds) contains the limit, snapping forward for the start limit
// and backward for the end limit when the requested point falls between
// adjacent segments. A "variable" or absent sampling frequency forces the
// caller to fall through to strategy 2.
func ResolveFromSgmtRecords(sgmts []record.SgmtV10, req Slice) (Slice, bool) {
	if len(sgmts) == 0 {
		return req, false
	}

	resp := req

	if req.HasTimeLimits() {
		startSeg, ok := findSegmentByTime(sgmts, req.StartTime, true)
		if !ok {
			return req, false
		}
		endTarget := req.EndTime
		if endTarget == format.UUTCNoEntry {
			endTarget = req.StartTime
		}
		endSeg, ok := findSegmentByTime(sgmts, endTarget, false)
		if !ok {
			return req, false
		}
		if startSeg.SamplingFrequency <= 0 || endSeg.SamplingFrequency <= 0 {
			return req, false
		}

		resp.StartSegmentNumber = startSeg.SegmentNumber
		resp.EndSegmentNumber = endSeg.SegmentNumber
		resp.LocalStartIndex = localSampleForTime(startSeg, req.StartTime)
		resp.LocalEndIndex = localSampleForTime(endSeg, endTarget)
		resp.StartIndex = startSeg.AbsoluteStartSampleNumber + resp.LocalStartIndex
		resp.EndIndex = endSeg.AbsoluteStartSampleNumber + resp.LocalEndIndex
		resp.NumberOfSamples = resp.EndIndex - resp.StartIndex + 1

		return resp, true
	}

	if req.HasIndexLimits() {
		startSeg, ok := findSegmentBySample(sgmts, req.StartIndex, true)
		if !ok {
			return req, false
		}
		endTarget := req.EndIndex
		if endTarget == format.SampleNumberNoEntry {
			endTarget = req.StartIndex
		}
		endSeg, ok := findSegmentBySample(sgmts, endTarget, false)
		if !ok {
			return req, false
		}
		if startSeg.SamplingFrequency <= 0 || endSeg.SamplingFrequency <= 0 {
			return req, false
		}

		resp.StartSegmentNumber = startSeg.SegmentNumber
		resp.EndSegmentNumber = endSeg.SegmentNumber
		resp.StartTime = startSeg.StartTime
		resp.EndTime = endSeg.EndTime
		resp.LocalStartIndex = req.StartIndex - startSeg.AbsoluteStartSampleNumber
		resp.LocalEndIndex = endTarget - endSeg.AbsoluteStartSampleNumber
		resp.NumberOfSamples = endTarget - req.StartIndex + 1

		return resp, true
	}

	return req, false
}

// localSampleForTime converts a µUTC inside seg into a segment-local
// sample offset using the segment's own sampling frequency, clamped to the
// segment's sample bounds. A missing or variable frequency yields the
// segment boundary itself.
func localSampleForTime(seg record.SgmtV10, t int64) int64 {
	if seg.SamplingFrequency <= 0 {
		return 0
	}
	local := int64(float64(t-seg.StartTime) * seg.SamplingFrequency / 1e6)
	if local < 0 {
		local = 0
	}
	if maxLocal := seg.AbsoluteEndSampleNumber - seg.AbsoluteStartSampleNumber; local > maxLocal {
		local = maxLocal
	}
	return local
}

func findSegmentByTime(sgmts []record.SgmtV10, target int64, snapForward bool) (record.SgmtV10, bool) {
	for _, s := range sgmts {
		if target >= s.StartTime && target <= s.EndTime {
			return s, true
		}
	}

	// Falls between adjacent segments: snap forward for a start limit,
	// backward for an end limit.
	if snapForward {
		var best *record.SgmtV10
		for i := range sgmts {
			if sgmts[i].StartTime > target && (best == nil || sgmts[i].StartTime < best.StartTime) {
				best = &sgmts[i]
			}
		}
		if best != nil {
			return *best, true
		}
	} else {
		var best *record.SgmtV10
		for i := range sgmts {
			if sgmts[i].EndTime < target && (best == nil || sgmts[i].EndTime > best.EndTime) {
				best = &sgmts[i]
			}
		}
		if best != nil {
			return *best, true
		}
	}

	return record.SgmtV10{}, false
}

func findSegmentBySample(sgmts []record.SgmtV10, target int64, snapForward bool) (record.SgmtV10, bool) {
	for _, s := range sgmts {
		if target >= s.AbsoluteStartSampleNumber && target <= s.AbsoluteEndSampleNumber {
			return s, true
		}
	}

	if snapForward {
		var best *record.SgmtV10
		for i := range sgmts {
			if sgmts[i].AbsoluteStartSampleNumber > target && (best == nil || sgmts[i].AbsoluteStartSampleNumber < best.AbsoluteStartSampleNumber) {
				best = &sgmts[i]
			}
		}
		if best != nil {
			return *best, true
		}
	} else {
		var best *record.SgmtV10
		for i := range sgmts {
			if sgmts[i].AbsoluteEndSampleNumber < target && (best == nil || sgmts[i].AbsoluteEndSampleNumber > best.AbsoluteEndSampleNumber) {
				best = &sgmts[i]
			}
		}
		if best != nil {
			return *best, true
		}
	}

	return record.SgmtV10{}, false
}

// ResolveFromSegmentMetadata is the second resolution strategy: when
// Sgmt records are absent, walk each segment's metadata in directory
// order and locate the window by file_start_time/file_end_time, snapping
// forward for the start limit and backward for the end limit. Only time
// limits are resolved: a request with index limits alone returns
// errs.ErrSliceLimitsMissing. StartIndex and EndIndex are set to the whole
// segments' sample range (absolute_start_sample_number of the start
// segment through the last sample of the end segment), not to the sample
// nearest each requested time.
func ResolveFromSegmentMetadata[T SegmentTimeSource](segments []T, req Slice) (Slice, error) {
	if len(segments) == 0 {
		return req, errs.ErrSegmentNotFound
	}

	resp := req

	findByTime := func(t int64, snapForward bool) (T, bool) {
		for _, seg := range segments {
			if t >= seg.FileStartTime() && t <= seg.FileEndTime() {
				return seg, true
			}
		}
		var best T
		found := false
		for _, seg := range segments {
			if snapForward && seg.FileStartTime() > t {
				if !found || seg.FileStartTime() < best.FileStartTime() {
					best, found = seg, true
				}
			}
			if !snapForward && seg.FileEndTime() < t {
				if !found || seg.FileEndTime() > best.FileEndTime() {
					best, found = seg, true
				}
			}
		}
		return best, found
	}

	if req.HasTimeLimits() {
		startSeg, ok := findByTime(req.StartTime, true)
		if !ok {
			return req, errs.ErrSegmentNotFound
		}
		endTarget := req.EndTime
		if endTarget == format.UUTCNoEntry {
			endTarget = req.StartTime
		}
		endSeg, ok := findByTime(endTarget, false)
		if !ok {
			return req, errs.ErrSegmentNotFound
		}

		resp.StartSegmentNumber = startSeg.SegmentNumber()
		resp.EndSegmentNumber = endSeg.SegmentNumber()
		resp.StartIndex = startSeg.AbsoluteStartSampleNumber()
		resp.EndIndex = endSeg.AbsoluteStartSampleNumber() + endSeg.NumberOfSamples() - 1
		resp.NumberOfSamples = resp.EndIndex - resp.StartIndex + 1

		return resp, nil
	}

	return req, errs.ErrSliceLimitsMissing
}

// ReferenceChannel chooses the channel a session-level slice resolves
// against: the one named by the slice if set, else the first channel.
func ReferenceChannel(requested string, available []string) (string, error) {
	if requested != "" {
		for _, name := range available {
			if name == requested {
				return name, nil
			}
		}
		return "", errs.ErrNoReferenceChannel
	}

	if len(available) == 0 {
		return "", errs.ErrNoReferenceChannel
	}

	return available[0], nil
}
