// Package format holds the shared constants, type codes, sentinel values,
// and fixed byte-layout sizes used across every MED package: the universal
// header, metadata, record, index, and CMP block layers all key off the
// same small set of definitions here rather than duplicating magic numbers.
package format

import "encoding/binary"

// TypeCode identifies the payload kind stored in a MED file or directory.
// It packs the low 4 bytes of the file/directory extension (ASCII, no dot,
// zero-padded on the right when shorter than 4 characters) into a uint32,
// so an extension is always the low 32 bits of its type_code.
type TypeCode uint32

// PackTypeCode converts a short ASCII extension (at most 4 bytes) into the
// packed little-endian TypeCode used throughout the on-disk layout.
func PackTypeCode(ext string) TypeCode {
	var b [4]byte
	copy(b[:], ext)

	return TypeCode(binary.LittleEndian.Uint32(b[:]))
}

// String reverses PackTypeCode, returning the ASCII extension (trailing
// zero bytes trimmed).
func (t TypeCode) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(t))

	n := 4
	for n > 0 && b[n-1] == 0 {
		n--
	}

	return string(b[:n])
}

// Directory type codes.
var (
	TypeCodeSessionDir          = PackTypeCode("medd")
	TypeCodeTimeSeriesChannelDir = PackTypeCode("ticd")
	TypeCodeTimeSeriesSegmentDir = PackTypeCode("tisd")
	TypeCodeVideoChannelDir      = PackTypeCode("vicd")
	TypeCodeVideoSegmentDir      = PackTypeCode("visd")
	TypeCodeRecordDir            = PackTypeCode("rec")
)

// File type codes.
var (
	TypeCodeTimeSeriesMetadata = PackTypeCode("tmet")
	TypeCodeVideoMetadata      = PackTypeCode("vmet")
	TypeCodeTimeSeriesData     = PackTypeCode("tdat")
	TypeCodeTimeSeriesIndices  = PackTypeCode("tidx")
	TypeCodeVideoIndices       = PackTypeCode("vidx")
	TypeCodeRecordIndices      = PackTypeCode("ridx")
	TypeCodeRecordData         = PackTypeCode("rdat")
)

// IsDirectoryType reports whether t identifies a directory level rather
// than a leaf file.
func IsDirectoryType(t TypeCode) bool {
	switch t {
	case TypeCodeSessionDir, TypeCodeTimeSeriesChannelDir, TypeCodeTimeSeriesSegmentDir,
		TypeCodeVideoChannelDir, TypeCodeVideoSegmentDir, TypeCodeRecordDir:
		return true
	default:
		return false
	}
}
