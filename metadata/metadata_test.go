package metadata

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/stretchr/testify/require"
)

func TestSection1RoundTrip(t *testing.T) {
	s := Section1{
		Hint1:                   "mother's maiden name",
		Hint2:                   "favorite equation",
		Section2EncryptionLevel: 1,
		Section3EncryptionLevel: -2,
	}

	raw := s.Bytes()
	require.Len(t, raw, SectionSize)

	got, err := ParseSection1(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)

	require.True(t, s.Section2EncryptionLevel.Encrypted())
	require.Equal(t, format.AccessLevel1, s.Section2EncryptionLevel.Level())
	require.False(t, s.Section3EncryptionLevel.Encrypted())
	require.Equal(t, format.AccessLevel2, s.Section3EncryptionLevel.Level())
}

func TestParseSection1_RejectsWrongSize(t *testing.T) {
	_, err := ParseSection1(make([]byte, SectionSize-1))
	require.ErrorIs(t, err, errs.ErrInvalidMetadataSize)
}

func TestSection2RoundTrip_TimeSeries(t *testing.T) {
	s := Section2{
		Kind:                     KindTimeSeries,
		AcquisitionChannelNumber: 4,
		SessionDescription:       "overnight EEG",
		ChannelDescription:       "Fp1-Fp2",
		SegmentDescription:       "segment 3 of 12",
		EquipmentDescription:     "amplifier model X",
		TimeSeries: TimeSeriesSection2{
			SamplingFrequency:         1000.0,
			LowFilterFrequency:        0.5,
			HighFilterFrequency:       70.0,
			NotchFilterFrequency:      60.0,
			AbsoluteStartSampleNumber: 123456,
			MaximumBlockBytes:         4096,
			MaximumBlockSamples:       512,
			DiscontinuityCount:        2,
		},
	}

	raw := s.Bytes()
	got, err := ParseSection2(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestSection2RoundTrip_Video(t *testing.T) {
	s := Section2{
		Kind:                     KindVideo,
		AcquisitionChannelNumber: 1,
		SessionDescription:       "bedside camera",
		Video: VideoSection2{
			HorizontalResolution: 1920,
			VerticalResolution:   1080,
			FrameRate:            29.97,
			NumberOfClips:        6,
		},
	}

	raw := s.Bytes()
	got, err := ParseSection2(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestParseSection2_RejectsUnknownKind(t *testing.T) {
	s := Section2{Kind: 0}
	raw := s.Bytes()
	_, err := ParseSection2(raw)
	require.ErrorIs(t, err, errs.ErrUnknownTypeCode)
}

func TestSection3RoundTrip(t *testing.T) {
	s := Section3{
		RecordingTimeOffset:     3_600_000_000,
		DSTStartCode:            1,
		DSTEndCode:              2,
		StandardUTCOffset:       -18000,
		StandardTimezoneAcronym: "EST",
		StandardTimezoneString:  "Eastern Standard Time",
		DaylightTimezoneAcronym: "EDT",
		DaylightTimezoneString:  "Eastern Daylight Time",
		SubjectName1:            "Jane",
		SubjectName2:            "Q",
		SubjectName3:            "Public",
		SubjectID:               "anon-0001",
		Location:                "Lab 3",
		GeotagLatitude:          42.36,
		GeotagLongitude:         -71.06,
	}

	raw := s.Bytes()
	require.Len(t, raw, SectionSize)

	got, err := ParseSection3(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestApplyAndRemoveRecordingTimeOffset(t *testing.T) {
	const offset = int64(5_000_000)
	absolute := int64(1_700_000_000_000_000)

	stored := ApplyRecordingTimeOffset(absolute, offset)
	require.Equal(t, absolute-offset, stored)

	restored := RemoveRecordingTimeOffset(stored, offset)
	require.Equal(t, absolute, restored)
}

func TestRemoveRecordingTimeOffset_PassesThroughOutOfRange(t *testing.T) {
	// A value already near int64 bounds cannot have offset re-applied
	// without leaving the valid time range; it passes through unchanged.
	stored := int64(1 << 62)
	got := RemoveRecordingTimeOffset(stored, 1<<62)
	require.Equal(t, stored, got)
}
