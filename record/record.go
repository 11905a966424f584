// Package record implements MED's record layer: a 32-byte RECORD_HEADER
// followed by a type_code-keyed body, plus the CRC-combine machinery that
// assembles a file-wide body_CRC from N per-record CRCs without a second
// pass over the payload.
//
// The distinguished Sgmt_v10 record type is a concrete struct rather than
// a raw byte buffer with casting; other record types key off the same
// type_code dispatch and can be added the same way.
package record

import (
	"math"

	"github.com/MEDFormat/MEDC-sub001/endian"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
)

var engine = endian.GetLittleEndianEngine()

// Record type codes.
var (
	TypeCodeSgmt = format.PackTypeCode("Sgmt")
)

const (
	offsetRecordCRC       = 0
	offsetTotalRecordBytes = 4
	offsetStartTime       = 8
	offsetTypeCode        = 16
	offsetVersionMajor    = 20
	offsetVersionMinor    = 21
	offsetEncryptionLevel = 22
	// bytes [23, 32) reserved.

	// record_CRC covers [crcCoverageStart, total_record_bytes), the byte
	// just past the CRC field itself.
	crcCoverageStart = offsetTotalRecordBytes
)

// Header is the fixed 32-byte RECORD_HEADER every record body follows.
type Header struct {
	RecordCRC       uint32
	TotalRecordBytes uint32
	StartTime       int64
	TypeCode        format.TypeCode
	VersionMajor    uint8
	VersionMinor    uint8
	EncryptionLevel format.EncryptionLevel
}

// ParseHeader decodes a Header from exactly format.RecordHeaderSize bytes.
func ParseHeader(data []byte) (Header, error) {
	if len(data) != format.RecordHeaderSize {
		return Header{}, errs.ErrInvalidRecordHeaderSize
	}

	var h Header
	h.RecordCRC = engine.Uint32(data[offsetRecordCRC:])
	h.TotalRecordBytes = engine.Uint32(data[offsetTotalRecordBytes:])
	h.StartTime = int64(engine.Uint64(data[offsetStartTime:]))
	h.TypeCode = format.TypeCode(engine.Uint32(data[offsetTypeCode:]))
	h.VersionMajor = data[offsetVersionMajor]
	h.VersionMinor = data[offsetVersionMinor]
	h.EncryptionLevel = format.EncryptionLevel(int8(data[offsetEncryptionLevel]))

	return h, nil
}

// Bytes serializes h into a fresh format.RecordHeaderSize-byte slice.
func (h Header) Bytes() []byte {
	b := make([]byte, format.RecordHeaderSize)

	engine.PutUint32(b[offsetRecordCRC:], h.RecordCRC)
	engine.PutUint32(b[offsetTotalRecordBytes:], h.TotalRecordBytes)
	engine.PutUint64(b[offsetStartTime:], uint64(h.StartTime))
	engine.PutUint32(b[offsetTypeCode:], uint32(h.TypeCode))
	b[offsetVersionMajor] = h.VersionMajor
	b[offsetVersionMinor] = h.VersionMinor
	b[offsetEncryptionLevel] = byte(h.EncryptionLevel)

	return b
}

// Encode assembles a complete record (header + body) and computes
// record_CRC over [crcCoverageStart, total_record_bytes).
func Encode(h Header, body []byte) []byte {
	h.TotalRecordBytes = uint32(format.RecordHeaderSize + len(body))

	buf := make([]byte, h.TotalRecordBytes)
	copy(buf[format.RecordHeaderSize:], body)

	headerBytes := h.Bytes()
	copy(buf, headerBytes)

	h.RecordCRC = crc32med.Calculate(buf[crcCoverageStart:])
	engine.PutUint32(buf[offsetRecordCRC:], h.RecordCRC)

	return buf
}

// Validate reports whether raw's record_CRC matches its stored value.
func Validate(raw []byte) error {
	if len(raw) < format.RecordHeaderSize {
		return errs.ErrInvalidRecordHeaderSize
	}

	stored := engine.Uint32(raw[offsetRecordCRC:])
	if crc32med.Calculate(raw[crcCoverageStart:]) != stored {
		return errs.ErrRecordCRCMismatch
	}

	return nil
}

// CombineBodyCRC folds one more encoded record into a running file-wide
// body_CRC via CRC_combine(prefix_CRC, record_full_CRC,
// record_total_bytes). prefixCRC should start at crc32med.Calculate(nil)
// (the CRC of zero bytes) before the first record.
func CombineBodyCRC(prefixCRC uint32, recordBytes []byte) uint32 {
	recordCRC := crc32med.Calculate(recordBytes)
	return crc32med.Combine(prefixCRC, recordCRC, int64(len(recordBytes)))
}

// SgmtV10 is the body of a Sgmt_v10 record: per-segment timing and sample
// bounds.
type SgmtV10 struct {
	StartTime                int64
	EndTime                  int64
	AbsoluteStartSampleNumber int64
	AbsoluteEndSampleNumber   int64
	SamplingFrequency        float64
	SegmentNumber            int32
}

const sgmtV10BodySize = 8 + 8 + 8 + 8 + 8 + 4 // 44 bytes

// Bytes serializes s into a fresh sgmtV10BodySize-byte slice.
func (s SgmtV10) Bytes() []byte {
	b := make([]byte, sgmtV10BodySize)

	engine.PutUint64(b[0:], uint64(s.StartTime))
	engine.PutUint64(b[8:], uint64(s.EndTime))
	engine.PutUint64(b[16:], uint64(s.AbsoluteStartSampleNumber))
	engine.PutUint64(b[24:], uint64(s.AbsoluteEndSampleNumber))
	engine.PutUint64(b[32:], math.Float64bits(s.SamplingFrequency))
	engine.PutUint32(b[40:], uint32(s.SegmentNumber))

	return b
}

// ParseSgmtV10 decodes a SgmtV10 body from exactly sgmtV10BodySize bytes.
func ParseSgmtV10(data []byte) (SgmtV10, error) {
	if len(data) != sgmtV10BodySize {
		return SgmtV10{}, errs.ErrInvalidRecordHeaderSize
	}

	var s SgmtV10
	s.StartTime = int64(engine.Uint64(data[0:]))
	s.EndTime = int64(engine.Uint64(data[8:]))
	s.AbsoluteStartSampleNumber = int64(engine.Uint64(data[16:]))
	s.AbsoluteEndSampleNumber = int64(engine.Uint64(data[24:]))
	s.SamplingFrequency = math.Float64frombits(engine.Uint64(data[32:]))
	s.SegmentNumber = int32(engine.Uint32(data[40:]))

	return s, nil
}
