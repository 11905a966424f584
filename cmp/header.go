// Package cmp implements MED's CMP block codec: compressing a contiguous
// span of si4 samples into one self-describing, optionally
// detrended/scaled/encrypted block using one of three entropy/prediction
// schemes (MBE, RED, PRED).
//
// The fixed-header marshaling follows the same Parse/Bytes discipline as
// uheader.Header; the range-coding machinery lives in rangecoder.go, and
// the shared framing, detrend, and scaling logic reuse the package's own
// parameter-region helpers.
package cmp

import (
	"github.com/MEDFormat/MEDC-sub001/endian"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
)

var engine = endian.GetLittleEndianEngine()

const (
	offsetBlockStartUID  = 0
	offsetBlockCRC       = 8
	offsetBlockFlags     = 12
	offsetStartTime      = 16
	offsetAcqChannel     = 24
	// bytes [26,28) reserved for alignment.
	offsetTotalBlockBytes = 28
	offsetNumSamples      = 32
	offsetNumRecords      = 36
	offsetRecordRegion    = 38
	offsetParamFlags      = 40
	offsetParamRegion     = 42
	offsetProtectedRegion = 44
	offsetDiscretRegion   = 46
	offsetModelRegion     = 48
	offsetTotalHeader     = 50
	// bytes [52,56) reserved.

	// block_CRC covers [crcCoverageStart, total_block_bytes), the byte
	// just past the CRC field itself.
	crcCoverageStart = offsetBlockFlags

	// EncryptionOffset is where per-block encryption begins: the byte
	// immediately after the start_time field. Readers and writers must
	// agree on this exact offset for cross-compatibility.
	EncryptionOffset = offsetAcqChannel
)

// FixedHeader is CMP's 56-byte FIXED_HEADER.
type FixedHeader struct {
	BlockCRC       uint32
	BlockFlags     uint32
	StartTime      int64
	AcqChannelNum  int16
	TotalBlockBytes uint32
	NumberOfSamples uint32

	NumberOfRecords          uint16
	RecordRegionBytes        uint16
	ParameterFlags           uint16
	ParameterRegionBytes     uint16
	ProtectedRegionBytes     uint16
	DiscretionaryRegionBytes uint16
	ModelRegionBytes         uint16
	TotalHeaderBytes         uint16
}

// ParseFixedHeader decodes a FixedHeader from exactly
// format.CMPFixedHeaderSize bytes, validating the block_start_UID magic.
func ParseFixedHeader(data []byte) (FixedHeader, error) {
	if len(data) != format.CMPFixedHeaderSize {
		return FixedHeader{}, errs.ErrInvalidBlockMagic
	}

	if engine.Uint64(data[offsetBlockStartUID:]) != format.CMPBlockStartUID {
		return FixedHeader{}, errs.ErrInvalidBlockMagic
	}

	var h FixedHeader
	h.BlockCRC = engine.Uint32(data[offsetBlockCRC:])
	h.BlockFlags = engine.Uint32(data[offsetBlockFlags:])
	h.StartTime = int64(engine.Uint64(data[offsetStartTime:]))
	h.AcqChannelNum = int16(engine.Uint16(data[offsetAcqChannel:]))
	h.TotalBlockBytes = engine.Uint32(data[offsetTotalBlockBytes:])
	h.NumberOfSamples = engine.Uint32(data[offsetNumSamples:])
	h.NumberOfRecords = engine.Uint16(data[offsetNumRecords:])
	h.RecordRegionBytes = engine.Uint16(data[offsetRecordRegion:])
	h.ParameterFlags = engine.Uint16(data[offsetParamFlags:])
	h.ParameterRegionBytes = engine.Uint16(data[offsetParamRegion:])
	h.ProtectedRegionBytes = engine.Uint16(data[offsetProtectedRegion:])
	h.DiscretionaryRegionBytes = engine.Uint16(data[offsetDiscretRegion:])
	h.ModelRegionBytes = engine.Uint16(data[offsetModelRegion:])
	h.TotalHeaderBytes = engine.Uint16(data[offsetTotalHeader:])

	if err := validateFlags(h.BlockFlags); err != nil {
		return h, err
	}

	return h, nil
}

// Bytes serializes h into a fresh format.CMPFixedHeaderSize-byte slice.
// block_CRC is written as currently set on h; CompressBlock fills it in
// over the finished block bytes after serialization.
func (h FixedHeader) Bytes() []byte {
	b := make([]byte, format.CMPFixedHeaderSize)

	engine.PutUint64(b[offsetBlockStartUID:], format.CMPBlockStartUID)
	engine.PutUint32(b[offsetBlockCRC:], h.BlockCRC)
	engine.PutUint32(b[offsetBlockFlags:], h.BlockFlags)
	engine.PutUint64(b[offsetStartTime:], uint64(h.StartTime))
	engine.PutUint16(b[offsetAcqChannel:], uint16(h.AcqChannelNum))
	engine.PutUint32(b[offsetTotalBlockBytes:], h.TotalBlockBytes)
	engine.PutUint32(b[offsetNumSamples:], h.NumberOfSamples)
	engine.PutUint16(b[offsetNumRecords:], h.NumberOfRecords)
	engine.PutUint16(b[offsetRecordRegion:], h.RecordRegionBytes)
	engine.PutUint16(b[offsetParamFlags:], h.ParameterFlags)
	engine.PutUint16(b[offsetParamRegion:], h.ParameterRegionBytes)
	engine.PutUint16(b[offsetProtectedRegion:], h.ProtectedRegionBytes)
	engine.PutUint16(b[offsetDiscretRegion:], h.DiscretionaryRegionBytes)
	engine.PutUint16(b[offsetModelRegion:], h.ModelRegionBytes)
	engine.PutUint16(b[offsetTotalHeader:], h.TotalHeaderBytes)

	return b
}

func validateFlags(flags uint32) error {
	enc := format.EncodingMask(flags)
	// exactly one encoding bit must be set
	if enc == 0 || enc&(enc-1) != 0 {
		return errs.ErrAmbiguousEncoding
	}

	cry := format.EncryptionMask(flags)
	if cry&(cry-1) != 0 {
		return errs.ErrAmbiguousEncryption
	}

	return nil
}

// ParameterRegionBytes computes parameter_region_bytes from parameter_flags:
// popcount(flags & low ParameterFlagBits bits) * 4.
func ParameterRegionBytes(flags uint16) uint16 {
	mask := uint16(1)<<format.ParameterFlagBits - 1
	bits := flags & mask

	count := 0
	for bits != 0 {
		count++
		bits &= bits - 1
	}

	return uint16(count * 4)
}

// PadTo8 rounds n up to the next multiple of 8; total_block_bytes is always
// padded to a multiple of 8 with PadByte fill.
func PadTo8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

// PadByte is the fill value used for total_block_bytes padding.
const PadByte = 0x00
