package record

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
	"github.com/stretchr/testify/require"
)

func TestHeaderBytesParseRoundTrip(t *testing.T) {
	h := Header{
		StartTime:       1000,
		TypeCode:        TypeCodeSgmt,
		VersionMajor:    1,
		VersionMinor:    0,
		EncryptionLevel: -1,
	}
	h.TotalRecordBytes = format.RecordHeaderSize

	raw := h.Bytes()
	require.Len(t, raw, format.RecordHeaderSize)

	got, err := ParseHeader(raw)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestParseHeader_RejectsWrongSize(t *testing.T) {
	_, err := ParseHeader(make([]byte, format.RecordHeaderSize-1))
	require.ErrorIs(t, err, errs.ErrInvalidRecordHeaderSize)
}

func TestEncodeAndValidate(t *testing.T) {
	sgmt := SgmtV10{
		StartTime:                 1000,
		EndTime:                   5000,
		AbsoluteStartSampleNumber: 0,
		AbsoluteEndSampleNumber:   3999,
		SamplingFrequency:         1000.0,
		SegmentNumber:             7,
	}
	body := sgmt.Bytes()

	h := Header{StartTime: sgmt.StartTime, TypeCode: TypeCodeSgmt, VersionMajor: 1}
	raw := Encode(h, body)

	require.NoError(t, Validate(raw))

	raw[len(raw)-1] ^= 0xFF
	require.ErrorIs(t, Validate(raw), errs.ErrRecordCRCMismatch)
}

func TestSgmtV10RoundTrip(t *testing.T) {
	s := SgmtV10{
		StartTime:                 100,
		EndTime:                   200,
		AbsoluteStartSampleNumber: 10,
		AbsoluteEndSampleNumber:   20,
		SamplingFrequency:         512.5,
		SegmentNumber:             3,
	}

	raw := s.Bytes()
	got, err := ParseSgmtV10(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCombineBodyCRC_MatchesDirectCRCOfConcatenation(t *testing.T) {
	sgmt1 := SgmtV10{StartTime: 0, EndTime: 100, SamplingFrequency: 1000}
	sgmt2 := SgmtV10{StartTime: 100, EndTime: 200, SamplingFrequency: 1000}

	rec1 := Encode(Header{StartTime: 0, TypeCode: TypeCodeSgmt, VersionMajor: 1}, sgmt1.Bytes())
	rec2 := Encode(Header{StartTime: 100, TypeCode: TypeCodeSgmt, VersionMajor: 1}, sgmt2.Bytes())

	bodyCRC := CombineBodyCRC(crc32med.Calculate(nil), rec1)
	bodyCRC = CombineBodyCRC(bodyCRC, rec2)

	direct := crc32med.Calculate(append(append([]byte{}, rec1...), rec2...))
	require.Equal(t, direct, bodyCRC)
}
