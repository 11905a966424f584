// Package uheader implements MED's Universal Header: the fixed 1024-byte
// block that opens every MED file, carrying enough identity, integrity,
// and access-control metadata that a file can be validated and routed to
// the right payload decoder without first parsing its body.
//
// A struct of named Go fields plus the Parse(data)/Bytes() pair is the
// single source of truth for the on-disk shape; nothing reads the layout
// through pointer casts.
package uheader

import (
	"unsafe"

	"github.com/MEDFormat/MEDC-sub001/endian"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
)

// Field sizes and offsets within the 1024-byte header. header_CRC covers
// bytes [crcCoverageStart, Size); body_CRC covers everything past Size in
// the file.
const (
	Size = format.UniversalHeaderSize

	offsetHeaderCRC = 0
	offsetBodyCRC   = 4
	// bytes 8-15 are reserved, keeping the CRC-covered region aligned at 16.
	crcCoverageStart = 16

	offsetFileEndTime      = 16
	offsetNumberOfEntries  = 24
	offsetMaxEntrySize     = 28
	offsetSegmentNumber    = 32
	offsetTypeCode         = 36
	offsetVersionMajor     = 40
	offsetVersionMinor     = 41
	offsetByteOrderCode    = 42
	// byte 43 reserved for alignment
	offsetSessionStartTime = 44
	offsetFileStartTime    = 52
	offsetSessionUID       = 60
	offsetChannelUID       = 68
	offsetSegmentUID       = 76
	offsetFileUID          = 84
	offsetProvenanceUID    = 92
	offsetPasswordL1       = 100
	offsetPasswordL2       = 116
	offsetPasswordL3       = 132

	sessionNameSize   = 256
	channelNameSize   = 256
	subjectIDSize     = 64
	offsetSessionName = 148
	offsetChannelName = offsetSessionName + sessionNameSize // 404
	offsetSubjectID   = offsetChannelName + channelNameSize // 660
	// bytes [724, 1024) reserved.
)

// VersionMajor and VersionMinor identify the on-disk format this library
// reads and writes: MED 1.0.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0
)

// Header is the in-memory form of a MED universal header.
type Header struct {
	HeaderCRC uint32
	BodyCRC   uint32

	FileEndTime      int64
	NumberOfEntries  uint32
	MaxEntrySize     uint32
	SegmentNumber    int32
	TypeCode         format.TypeCode
	VersionMajor     uint8
	VersionMinor     uint8
	ByteOrderCode    uint8
	SessionStartTime int64
	FileStartTime    int64

	SessionUID    uint64
	ChannelUID    uint64
	SegmentUID    uint64
	FileUID       uint64
	ProvenanceUID uint64

	PasswordLevel1 [format.PasswordValidationFieldSize]byte
	PasswordLevel2 [format.PasswordValidationFieldSize]byte
	PasswordLevel3 [format.PasswordValidationFieldSize]byte

	SessionName        string
	ChannelName        string
	AnonymizedSubjectID string
}

var engine = endian.GetLittleEndianEngine()

// New builds a fresh header for type_code at the session or channel level
// (segmentNumber is one of format.SegmentNumberChannelLevel/SessionLevel)
// or for a concrete segment. fileUID is also used as provenanceUID unless
// the caller overwrites it to mark derived data.
func New(typeCode format.TypeCode, segmentNumber int32, fileUID uint64) *Header {
	return &Header{
		NumberOfEntries: 0,
		MaxEntrySize:    0,
		SegmentNumber:   segmentNumber,
		TypeCode:        typeCode,
		VersionMajor:    VersionMajor,
		VersionMinor:    VersionMinor,
		ByteOrderCode:   format.ByteOrderLittleEndian,
		FileEndTime:     format.UUTCNoEntry,
		FileUID:         fileUID,
		ProvenanceUID:   fileUID,
	}
}

func putInt64(b []byte, v int64) {
	engine.PutUint64(b, *(*uint64)(unsafe.Pointer(&v)))
}

func getInt64(b []byte) int64 {
	u := engine.Uint64(b)
	return *(*int64)(unsafe.Pointer(&u))
}

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

// Parse decodes a Header from exactly Size bytes, without validating CRCs
// (callers validate separately against the rest of the file; see
// ValidateHeaderCRC and ValidateBodyCRC).
func Parse(data []byte) (Header, error) {
	if len(data) != Size {
		return Header{}, errs.ErrInvalidUniversalHeaderSize
	}

	var h Header
	h.HeaderCRC = engine.Uint32(data[offsetHeaderCRC:])
	h.BodyCRC = engine.Uint32(data[offsetBodyCRC:])
	h.FileEndTime = getInt64(data[offsetFileEndTime:])
	h.NumberOfEntries = engine.Uint32(data[offsetNumberOfEntries:])
	h.MaxEntrySize = engine.Uint32(data[offsetMaxEntrySize:])
	h.SegmentNumber = int32(engine.Uint32(data[offsetSegmentNumber:]))
	h.TypeCode = format.TypeCode(engine.Uint32(data[offsetTypeCode:]))
	h.VersionMajor = data[offsetVersionMajor]
	h.VersionMinor = data[offsetVersionMinor]
	h.ByteOrderCode = data[offsetByteOrderCode]
	h.SessionStartTime = getInt64(data[offsetSessionStartTime:])
	h.FileStartTime = getInt64(data[offsetFileStartTime:])
	h.SessionUID = engine.Uint64(data[offsetSessionUID:])
	h.ChannelUID = engine.Uint64(data[offsetChannelUID:])
	h.SegmentUID = engine.Uint64(data[offsetSegmentUID:])
	h.FileUID = engine.Uint64(data[offsetFileUID:])
	h.ProvenanceUID = engine.Uint64(data[offsetProvenanceUID:])

	copy(h.PasswordLevel1[:], data[offsetPasswordL1:offsetPasswordL1+format.PasswordValidationFieldSize])
	copy(h.PasswordLevel2[:], data[offsetPasswordL2:offsetPasswordL2+format.PasswordValidationFieldSize])
	copy(h.PasswordLevel3[:], data[offsetPasswordL3:offsetPasswordL3+format.PasswordValidationFieldSize])

	h.SessionName = getFixedString(data[offsetSessionName : offsetSessionName+sessionNameSize])
	h.ChannelName = getFixedString(data[offsetChannelName : offsetChannelName+channelNameSize])
	h.AnonymizedSubjectID = getFixedString(data[offsetSubjectID : offsetSubjectID+subjectIDSize])

	if h.ByteOrderCode != format.ByteOrderLittleEndian {
		return h, errs.ErrInvalidByteOrderCode
	}

	return h, nil
}

// Bytes serializes h into a fresh Size-byte slice. BodyCRC is written as
// currently set on h; HeaderCRC is computed over the serialized bytes,
// stored back on h, and written.
func (h *Header) Bytes() []byte {
	b := make([]byte, Size)

	engine.PutUint32(b[offsetBodyCRC:], h.BodyCRC)
	putInt64(b[offsetFileEndTime:], h.FileEndTime)
	engine.PutUint32(b[offsetNumberOfEntries:], h.NumberOfEntries)
	engine.PutUint32(b[offsetMaxEntrySize:], h.MaxEntrySize)
	engine.PutUint32(b[offsetSegmentNumber:], uint32(h.SegmentNumber))
	engine.PutUint32(b[offsetTypeCode:], uint32(h.TypeCode))
	b[offsetVersionMajor] = h.VersionMajor
	b[offsetVersionMinor] = h.VersionMinor
	b[offsetByteOrderCode] = h.ByteOrderCode
	putInt64(b[offsetSessionStartTime:], h.SessionStartTime)
	putInt64(b[offsetFileStartTime:], h.FileStartTime)
	engine.PutUint64(b[offsetSessionUID:], h.SessionUID)
	engine.PutUint64(b[offsetChannelUID:], h.ChannelUID)
	engine.PutUint64(b[offsetSegmentUID:], h.SegmentUID)
	engine.PutUint64(b[offsetFileUID:], h.FileUID)
	engine.PutUint64(b[offsetProvenanceUID:], h.ProvenanceUID)

	copy(b[offsetPasswordL1:], h.PasswordLevel1[:])
	copy(b[offsetPasswordL2:], h.PasswordLevel2[:])
	copy(b[offsetPasswordL3:], h.PasswordLevel3[:])

	putFixedString(b[offsetSessionName:offsetSessionName+sessionNameSize], h.SessionName)
	putFixedString(b[offsetChannelName:offsetChannelName+channelNameSize], h.ChannelName)
	putFixedString(b[offsetSubjectID:offsetSubjectID+subjectIDSize], h.AnonymizedSubjectID)

	// header_CRC itself is computed over [crcCoverageStart, Size), so it is
	// written last, after every other field above it is in place.
	h.HeaderCRC = crc32med.Calculate(b[crcCoverageStart:])
	engine.PutUint32(b[offsetHeaderCRC:], h.HeaderCRC)

	return b
}

// ValidateHeaderCRC recomputes header_CRC over raw[crcCoverageStart:Size]
// and compares it to the stored value.
func ValidateHeaderCRC(raw []byte) error {
	if len(raw) != Size {
		return errs.ErrInvalidUniversalHeaderSize
	}

	stored := engine.Uint32(raw[offsetHeaderCRC:])
	if crc32med.Calculate(raw[crcCoverageStart:]) != stored {
		return errs.ErrHeaderCRCMismatch
	}

	return nil
}

// ValidateBodyCRC recomputes body_CRC over body and compares it to stored.
func ValidateBodyCRC(body []byte, stored uint32) error {
	if crc32med.Calculate(body) != stored {
		return errs.ErrBodyCRCMismatch
	}

	return nil
}

// ValidateTypeCode reports an error if code does not match the directory or
// file type_code expected at this position in the tree.
func ValidateTypeCode(got, want format.TypeCode) error {
	if got != want {
		return errs.ErrTypeCodeMismatch
	}

	return nil
}

// ValidateUID reports an error if uid takes a reserved sentinel value:
// zero, or the CMP block start magic.
func ValidateUID(uid uint64) error {
	if uid == format.UIDNoEntry || uid == format.CMPBlockStartUID {
		return errs.ErrReservedUID
	}

	return nil
}
