package uheader

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
	"github.com/stretchr/testify/require"
)

func sampleHeader() *Header {
	h := New(format.TypeCodeTimeSeriesData, 3, 0xAABBCCDDEEFF0011)
	h.SessionStartTime = 1000
	h.FileStartTime = 1000
	h.FileEndTime = 2000
	h.SessionUID = 0x1111111111111111
	h.ChannelUID = 0x2222222222222222
	h.SegmentUID = 0x3333333333333333
	h.SessionName = "session-alpha"
	h.ChannelName = "channel-1"
	h.AnonymizedSubjectID = "subject-001"
	return h
}

func TestBytesParseRoundTrip(t *testing.T) {
	h := sampleHeader()
	raw := h.Bytes()
	require.Len(t, raw, Size)

	got, err := Parse(raw)
	require.NoError(t, err)

	require.Equal(t, h.FileEndTime, got.FileEndTime)
	require.Equal(t, h.SegmentNumber, got.SegmentNumber)
	require.Equal(t, h.TypeCode, got.TypeCode)
	require.Equal(t, h.SessionStartTime, got.SessionStartTime)
	require.Equal(t, h.FileStartTime, got.FileStartTime)
	require.Equal(t, h.SessionUID, got.SessionUID)
	require.Equal(t, h.ChannelUID, got.ChannelUID)
	require.Equal(t, h.SegmentUID, got.SegmentUID)
	require.Equal(t, h.SessionName, got.SessionName)
	require.Equal(t, h.ChannelName, got.ChannelName)
	require.Equal(t, h.AnonymizedSubjectID, got.AnonymizedSubjectID)
	require.Equal(t, VersionMajor, got.VersionMajor)
	require.Equal(t, VersionMinor, got.VersionMinor)
	require.Equal(t, format.ByteOrderLittleEndian, got.ByteOrderCode)
}

func TestParse_RejectsWrongSize(t *testing.T) {
	_, err := Parse(make([]byte, Size-1))
	require.ErrorIs(t, err, errs.ErrInvalidUniversalHeaderSize)
}

func TestParse_RejectsBadByteOrder(t *testing.T) {
	h := sampleHeader()
	raw := h.Bytes()
	raw[offsetByteOrderCode] = 2
	// header_CRC no longer matches after this mutation, but byte-order is
	// checked independently of CRC validation in Parse.
	_, err := Parse(raw)
	require.ErrorIs(t, err, errs.ErrInvalidByteOrderCode)
}

func TestValidateHeaderCRC(t *testing.T) {
	h := sampleHeader()
	raw := h.Bytes()

	require.NoError(t, ValidateHeaderCRC(raw))

	raw[crcCoverageStart] ^= 0xFF
	require.ErrorIs(t, ValidateHeaderCRC(raw), errs.ErrHeaderCRCMismatch)
}

func TestValidateBodyCRC(t *testing.T) {
	body := []byte("some record or block payload bytes")
	crc := crc32med.Calculate(body)

	require.NoError(t, ValidateBodyCRC(body, crc))
	require.ErrorIs(t, ValidateBodyCRC(append(body, 0), crc), errs.ErrBodyCRCMismatch)
}

func TestValidateTypeCode(t *testing.T) {
	require.NoError(t, ValidateTypeCode(format.TypeCodeTimeSeriesData, format.TypeCodeTimeSeriesData))
	require.ErrorIs(t, ValidateTypeCode(format.TypeCodeTimeSeriesData, format.TypeCodeVideoIndices), errs.ErrTypeCodeMismatch)
}

func TestValidateUID(t *testing.T) {
	require.NoError(t, ValidateUID(0xDEADBEEFCAFEBABE))
	require.ErrorIs(t, ValidateUID(format.UIDNoEntry), errs.ErrReservedUID)
	require.ErrorIs(t, ValidateUID(format.CMPBlockStartUID), errs.ErrReservedUID)
}
