// Package metadata implements MED's three fixed 1024-byte metadata
// sections: password hints plus the current/native encryption level of
// the other two sections; the time-series-or-video channel/segment
// description (a tagged union, not a raw byte buffer with casting); and
// recording-time-offset, timezone, and subject-identity fields.
//
// Each section follows the same fixed-offset Parse/Bytes discipline as
// uheader.Header.
package metadata

import (
	"math"

	"github.com/MEDFormat/MEDC-sub001/endian"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/timeidx"
)

const SectionSize = format.MetadataSectionSize

var engine = endian.GetLittleEndianEngine()

func putFixedString(b []byte, s string) {
	clear(b)
	copy(b, s)
}

func getFixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// Section1 carries password hints and the encryption state of sections 2
// and 3.
type Section1 struct {
	Hint1                   string
	Hint2                   string
	Section2EncryptionLevel format.EncryptionLevel
	Section3EncryptionLevel format.EncryptionLevel
}

const (
	s1HintSize        = 256
	s1Offset1         = 0
	s1Offset2         = s1Offset1 + s1HintSize // 256
	s1OffsetSec2Level = s1Offset2 + s1HintSize // 512
	s1OffsetSec3Level = s1OffsetSec2Level + 1  // 513
	// bytes [514, 1024) reserved.
)

// Bytes serializes Section1 into a fresh SectionSize-byte slice.
func (s Section1) Bytes() []byte {
	b := make([]byte, SectionSize)
	putFixedString(b[s1Offset1:s1Offset1+s1HintSize], s.Hint1)
	putFixedString(b[s1Offset2:s1Offset2+s1HintSize], s.Hint2)
	b[s1OffsetSec2Level] = byte(s.Section2EncryptionLevel)
	b[s1OffsetSec3Level] = byte(s.Section3EncryptionLevel)
	return b
}

// ParseSection1 decodes a Section1 from exactly SectionSize bytes.
func ParseSection1(data []byte) (Section1, error) {
	if len(data) != SectionSize {
		return Section1{}, errs.ErrInvalidMetadataSize
	}

	var s Section1
	s.Hint1 = getFixedString(data[s1Offset1 : s1Offset1+s1HintSize])
	s.Hint2 = getFixedString(data[s1Offset2 : s1Offset2+s1HintSize])
	s.Section2EncryptionLevel = format.EncryptionLevel(int8(data[s1OffsetSec2Level]))
	s.Section3EncryptionLevel = format.EncryptionLevel(int8(data[s1OffsetSec3Level]))

	return s, nil
}

// SectionKind discriminates Section2's tagged union.
type SectionKind uint8

const (
	KindTimeSeries SectionKind = iota + 1
	KindVideo
)

// Section2 is the channel/segment description section, specific to either
// a time-series or a video channel.
type Section2 struct {
	Kind                     SectionKind
	AcquisitionChannelNumber int32
	SessionDescription       string
	ChannelDescription       string
	SegmentDescription       string
	EquipmentDescription     string

	TimeSeries TimeSeriesSection2
	Video      VideoSection2
}

// TimeSeriesSection2 holds the fields populated when Kind == KindTimeSeries.
type TimeSeriesSection2 struct {
	SamplingFrequency         float64
	LowFilterFrequency        float64
	HighFilterFrequency       float64
	NotchFilterFrequency      float64
	AbsoluteStartSampleNumber int64
	MaximumBlockBytes         uint32
	MaximumBlockSamples       uint32
	DiscontinuityCount        uint32
}

// VideoSection2 holds the fields populated when Kind == KindVideo.
type VideoSection2 struct {
	HorizontalResolution int32
	VerticalResolution   int32
	FrameRate            float64
	NumberOfClips        uint32
}

const (
	descSize = 128

	s2OffsetKind     = 0
	s2OffsetAcqChan  = 4
	s2OffsetSession  = 8
	s2OffsetChannel  = s2OffsetSession + descSize // 136
	s2OffsetSegment  = s2OffsetChannel + descSize // 264
	s2OffsetEquip    = s2OffsetSegment + descSize // 392
	s2OffsetTSRegion = s2OffsetEquip + descSize   // 520

	s2OffsetSamplingFrequency    = s2OffsetTSRegion
	s2OffsetLowFilter            = s2OffsetSamplingFrequency + 8
	s2OffsetHighFilter           = s2OffsetLowFilter + 8
	s2OffsetNotchFilter          = s2OffsetHighFilter + 8
	s2OffsetAbsStartSample       = s2OffsetNotchFilter + 8
	s2OffsetMaxBlockBytes        = s2OffsetAbsStartSample + 8
	s2OffsetMaxBlockSamples      = s2OffsetMaxBlockBytes + 4
	s2OffsetDiscontinuityCount   = s2OffsetMaxBlockSamples + 4
	s2OffsetVideoRegion          = s2OffsetDiscontinuityCount + 4 // 572

	s2OffsetHorizontalResolution = s2OffsetVideoRegion
	s2OffsetVerticalResolution   = s2OffsetHorizontalResolution + 4
	s2OffsetFrameRate            = s2OffsetVerticalResolution + 4
	s2OffsetNumberOfClips        = s2OffsetFrameRate + 8
	// bytes [s2OffsetNumberOfClips+4, 1024) reserved.
)

func putInt64(b []byte, v int64)     { engine.PutUint64(b, uint64(v)) }
func getInt64(b []byte) int64        { return int64(engine.Uint64(b)) }
func putFloat64(b []byte, v float64) { engine.PutUint64(b, math.Float64bits(v)) }
func getFloat64(b []byte) float64    { return math.Float64frombits(engine.Uint64(b)) }

// Bytes serializes Section2 into a fresh SectionSize-byte slice.
func (s Section2) Bytes() []byte {
	b := make([]byte, SectionSize)

	b[s2OffsetKind] = byte(s.Kind)
	engine.PutUint32(b[s2OffsetAcqChan:], uint32(s.AcquisitionChannelNumber))
	putFixedString(b[s2OffsetSession:s2OffsetSession+descSize], s.SessionDescription)
	putFixedString(b[s2OffsetChannel:s2OffsetChannel+descSize], s.ChannelDescription)
	putFixedString(b[s2OffsetSegment:s2OffsetSegment+descSize], s.SegmentDescription)
	putFixedString(b[s2OffsetEquip:s2OffsetEquip+descSize], s.EquipmentDescription)

	putFloat64(b[s2OffsetSamplingFrequency:], s.TimeSeries.SamplingFrequency)
	putFloat64(b[s2OffsetLowFilter:], s.TimeSeries.LowFilterFrequency)
	putFloat64(b[s2OffsetHighFilter:], s.TimeSeries.HighFilterFrequency)
	putFloat64(b[s2OffsetNotchFilter:], s.TimeSeries.NotchFilterFrequency)
	putInt64(b[s2OffsetAbsStartSample:], s.TimeSeries.AbsoluteStartSampleNumber)
	engine.PutUint32(b[s2OffsetMaxBlockBytes:], s.TimeSeries.MaximumBlockBytes)
	engine.PutUint32(b[s2OffsetMaxBlockSamples:], s.TimeSeries.MaximumBlockSamples)
	engine.PutUint32(b[s2OffsetDiscontinuityCount:], s.TimeSeries.DiscontinuityCount)

	engine.PutUint32(b[s2OffsetHorizontalResolution:], uint32(s.Video.HorizontalResolution))
	engine.PutUint32(b[s2OffsetVerticalResolution:], uint32(s.Video.VerticalResolution))
	putFloat64(b[s2OffsetFrameRate:], s.Video.FrameRate)
	engine.PutUint32(b[s2OffsetNumberOfClips:], s.Video.NumberOfClips)

	return b
}

// ParseSection2 decodes a Section2 from exactly SectionSize bytes.
func ParseSection2(data []byte) (Section2, error) {
	if len(data) != SectionSize {
		return Section2{}, errs.ErrInvalidMetadataSize
	}

	var s Section2
	s.Kind = SectionKind(data[s2OffsetKind])
	s.AcquisitionChannelNumber = int32(engine.Uint32(data[s2OffsetAcqChan:]))
	s.SessionDescription = getFixedString(data[s2OffsetSession : s2OffsetSession+descSize])
	s.ChannelDescription = getFixedString(data[s2OffsetChannel : s2OffsetChannel+descSize])
	s.SegmentDescription = getFixedString(data[s2OffsetSegment : s2OffsetSegment+descSize])
	s.EquipmentDescription = getFixedString(data[s2OffsetEquip : s2OffsetEquip+descSize])

	s.TimeSeries.SamplingFrequency = getFloat64(data[s2OffsetSamplingFrequency:])
	s.TimeSeries.LowFilterFrequency = getFloat64(data[s2OffsetLowFilter:])
	s.TimeSeries.HighFilterFrequency = getFloat64(data[s2OffsetHighFilter:])
	s.TimeSeries.NotchFilterFrequency = getFloat64(data[s2OffsetNotchFilter:])
	s.TimeSeries.AbsoluteStartSampleNumber = getInt64(data[s2OffsetAbsStartSample:])
	s.TimeSeries.MaximumBlockBytes = engine.Uint32(data[s2OffsetMaxBlockBytes:])
	s.TimeSeries.MaximumBlockSamples = engine.Uint32(data[s2OffsetMaxBlockSamples:])
	s.TimeSeries.DiscontinuityCount = engine.Uint32(data[s2OffsetDiscontinuityCount:])

	s.Video.HorizontalResolution = int32(engine.Uint32(data[s2OffsetHorizontalResolution:]))
	s.Video.VerticalResolution = int32(engine.Uint32(data[s2OffsetVerticalResolution:]))
	s.Video.FrameRate = getFloat64(data[s2OffsetFrameRate:])
	s.Video.NumberOfClips = engine.Uint32(data[s2OffsetNumberOfClips:])

	switch s.Kind {
	case KindTimeSeries, KindVideo:
		return s, nil
	default:
		return s, errs.ErrUnknownTypeCode
	}
}

// Section3 carries the recording time offset, timezone, and subject
// identity fields.
type Section3 struct {
	RecordingTimeOffset    int64
	DSTStartCode           int32
	DSTEndCode             int32
	StandardUTCOffset      int32
	StandardTimezoneAcronym string
	StandardTimezoneString  string
	DaylightTimezoneAcronym string
	DaylightTimezoneString  string
	SubjectName1           string
	SubjectName2           string
	SubjectName3           string
	SubjectID              string
	Location               string
	GeotagLatitude         float64
	GeotagLongitude        float64
}

const (
	tzAcronymSize = 8
	tzStringSize  = 64
	subjectSize   = 64
	locationSize  = 128

	s3OffsetRecordingTimeOffset = 0
	s3OffsetDSTStart            = s3OffsetRecordingTimeOffset + 8
	s3OffsetDSTEnd              = s3OffsetDSTStart + 4
	s3OffsetStdUTCOffset        = s3OffsetDSTEnd + 4
	s3OffsetStdTZAcronym        = s3OffsetStdUTCOffset + 4
	s3OffsetStdTZString         = s3OffsetStdTZAcronym + tzAcronymSize
	s3OffsetDstTZAcronym        = s3OffsetStdTZString + tzStringSize
	s3OffsetDstTZString         = s3OffsetDstTZAcronym + tzAcronymSize
	s3OffsetSubjectName1        = s3OffsetDstTZString + tzStringSize
	s3OffsetSubjectName2        = s3OffsetSubjectName1 + subjectSize
	s3OffsetSubjectName3        = s3OffsetSubjectName2 + subjectSize
	s3OffsetSubjectID           = s3OffsetSubjectName3 + subjectSize
	s3OffsetLocation            = s3OffsetSubjectID + subjectSize
	s3OffsetGeotagLatitude      = s3OffsetLocation + locationSize
	s3OffsetGeotagLongitude     = s3OffsetGeotagLatitude + 8
	// bytes [s3OffsetGeotagLongitude+8, 1024) reserved.
)

// Bytes serializes Section3 into a fresh SectionSize-byte slice.
func (s Section3) Bytes() []byte {
	b := make([]byte, SectionSize)

	putInt64(b[s3OffsetRecordingTimeOffset:], s.RecordingTimeOffset)
	engine.PutUint32(b[s3OffsetDSTStart:], uint32(s.DSTStartCode))
	engine.PutUint32(b[s3OffsetDSTEnd:], uint32(s.DSTEndCode))
	engine.PutUint32(b[s3OffsetStdUTCOffset:], uint32(s.StandardUTCOffset))
	putFixedString(b[s3OffsetStdTZAcronym:s3OffsetStdTZAcronym+tzAcronymSize], s.StandardTimezoneAcronym)
	putFixedString(b[s3OffsetStdTZString:s3OffsetStdTZString+tzStringSize], s.StandardTimezoneString)
	putFixedString(b[s3OffsetDstTZAcronym:s3OffsetDstTZAcronym+tzAcronymSize], s.DaylightTimezoneAcronym)
	putFixedString(b[s3OffsetDstTZString:s3OffsetDstTZString+tzStringSize], s.DaylightTimezoneString)
	putFixedString(b[s3OffsetSubjectName1:s3OffsetSubjectName1+subjectSize], s.SubjectName1)
	putFixedString(b[s3OffsetSubjectName2:s3OffsetSubjectName2+subjectSize], s.SubjectName2)
	putFixedString(b[s3OffsetSubjectName3:s3OffsetSubjectName3+subjectSize], s.SubjectName3)
	putFixedString(b[s3OffsetSubjectID:s3OffsetSubjectID+subjectSize], s.SubjectID)
	putFixedString(b[s3OffsetLocation:s3OffsetLocation+locationSize], s.Location)
	putFloat64(b[s3OffsetGeotagLatitude:], s.GeotagLatitude)
	putFloat64(b[s3OffsetGeotagLongitude:], s.GeotagLongitude)

	return b
}

// ParseSection3 decodes a Section3 from exactly SectionSize bytes.
func ParseSection3(data []byte) (Section3, error) {
	if len(data) != SectionSize {
		return Section3{}, errs.ErrInvalidMetadataSize
	}

	var s Section3
	s.RecordingTimeOffset = getInt64(data[s3OffsetRecordingTimeOffset:])
	s.DSTStartCode = int32(engine.Uint32(data[s3OffsetDSTStart:]))
	s.DSTEndCode = int32(engine.Uint32(data[s3OffsetDSTEnd:]))
	s.StandardUTCOffset = int32(engine.Uint32(data[s3OffsetStdUTCOffset:]))
	s.StandardTimezoneAcronym = getFixedString(data[s3OffsetStdTZAcronym : s3OffsetStdTZAcronym+tzAcronymSize])
	s.StandardTimezoneString = getFixedString(data[s3OffsetStdTZString : s3OffsetStdTZString+tzStringSize])
	s.DaylightTimezoneAcronym = getFixedString(data[s3OffsetDstTZAcronym : s3OffsetDstTZAcronym+tzAcronymSize])
	s.DaylightTimezoneString = getFixedString(data[s3OffsetDstTZString : s3OffsetDstTZString+tzStringSize])
	s.SubjectName1 = getFixedString(data[s3OffsetSubjectName1 : s3OffsetSubjectName1+subjectSize])
	s.SubjectName2 = getFixedString(data[s3OffsetSubjectName2 : s3OffsetSubjectName2+subjectSize])
	s.SubjectName3 = getFixedString(data[s3OffsetSubjectName3 : s3OffsetSubjectName3+subjectSize])
	s.SubjectID = getFixedString(data[s3OffsetSubjectID : s3OffsetSubjectID+subjectSize])
	s.Location = getFixedString(data[s3OffsetLocation : s3OffsetLocation+locationSize])
	s.GeotagLatitude = getFloat64(data[s3OffsetGeotagLatitude:])
	s.GeotagLongitude = getFloat64(data[s3OffsetGeotagLongitude:])

	return s, nil
}

// ApplyRecordingTimeOffset subtracts offset from an absolute µUTC timestamp
// to get the value actually stored on disk. The
// arithmetic lives in timeidx alongside the rest of the time/index
// translation engine; this is a thin wrapper so callers working at the
// metadata-section level don't need to import timeidx directly.
func ApplyRecordingTimeOffset(absoluteUUTC, offset int64) int64 {
	return timeidx.ApplyRecordingTimeOffset(absoluteUUTC, offset)
}

// RemoveRecordingTimeOffset reverses ApplyRecordingTimeOffset; a value
// that applying the offset would move outside the valid time range is
// treated as already-absolute and passed through unchanged.
func RemoveRecordingTimeOffset(storedUUTC, offset int64) int64 {
	return timeidx.RemoveRecordingTimeOffset(storedUUTC, offset)
}
