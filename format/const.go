package format

import "math"

// Fixed byte-layout sizes.
const (
	UniversalHeaderSize   = 1024
	MetadataSectionSize   = 1024
	MetadataTotalSize     = MetadataSectionSize * 3
	RecordHeaderSize      = 32
	RecordIndexSize       = 24
	TimeSeriesIndexSize   = 24
	VideoIndexSize        = 24
	CMPFixedHeaderSize    = 56
	CMPMBEModelBaseSize   = 5 // minimum_sample_value(4) + bits_per_sample(1)
	CMPPREDModelBaseSize  = 14
	CMPREDModelBaseSize   = 12
	AESBlockSize          = 16
	PasswordByteFieldSize = 16
	PasswordValidationFieldSize = 16
	UIDSize               = 8

	// ParameterFlagBits is the number of defined parameter_flags bit
	// positions; parameter_region_bytes = popcount(flags & (1<<ParameterFlagBits - 1)) * 4.
	ParameterFlagBits = 5
)

// ByteOrderCode values. MED files are always little-endian
// on disk; the code is still stored so a reader can refuse anything else.
const (
	ByteOrderLittleEndian uint8 = 1
)

// Sentinel values.
const (
	UUTCNoEntry          int64  = math.MinInt64
	SampleNumberNoEntry  int64  = math.MinInt64
	UIDNoEntry           uint64 = 0
	CRCNoEntry           uint32 = 0
	CRCStartValue        uint32 = 0xFFFFFFFF
	BeginningOfTime      int64  = math.MinInt64 + 1
	EndOfTime            int64  = math.MaxInt64
	CurrentTime          int64  = -1

	// CMPBlockStartUID is the reserved 64-bit magic value that opens every
	// CMP block's fixed header. UIDs generated elsewhere (session/channel/
	// segment/file/provenance) that happen to collide with this value are
	// regenerated.
	CMPBlockStartUID uint64 = 0x0123456789ABCDEF
)

// CMP block_flags bit masks. Exactly one of the encoding
// bits and at most one of the encryption bits may be set.
const (
	BlockFlagDiscontinuity   uint32 = 1 << 0
	BlockFlagLevel1Encryption uint32 = 1 << 1
	BlockFlagLevel2Encryption uint32 = 1 << 2
	BlockFlagRedEncoding     uint32 = 1 << 3
	BlockFlagPredEncoding    uint32 = 1 << 4
	BlockFlagMbeEncoding     uint32 = 1 << 5

	blockFlagEncodingMask   = BlockFlagRedEncoding | BlockFlagPredEncoding | BlockFlagMbeEncoding
	blockFlagEncryptionMask = BlockFlagLevel1Encryption | BlockFlagLevel2Encryption
)

// EncodingMask returns the encoding bits of flags.
func EncodingMask(flags uint32) uint32 { return flags & blockFlagEncodingMask }

// EncryptionMask returns the encryption bits of flags.
func EncryptionMask(flags uint32) uint32 { return flags & blockFlagEncryptionMask }

// CMP parameter_flags bit positions. Each present slot
// occupies 4 bytes in the variable region, in bit-index order.
const (
	ParamFlagGradient       uint32 = 1 << 0 // f32
	ParamFlagIntercept      uint32 = 1 << 1 // i32
	ParamFlagAmplitudeScale uint32 = 1 << 2 // f32
	ParamFlagFrequencyScale uint32 = 1 << 3 // f32
	ParamFlagNoiseScores    uint32 = 1 << 4 // reserved
)

// AccessLevel identifies how much of a file's encrypted payload the current
// password data can decrypt.
type AccessLevel uint8

const (
	AccessNone  AccessLevel = 0
	AccessLevel1 AccessLevel = 1
	AccessLevel2 AccessLevel = 2
)

// EncryptionLevel is the signed encryption-state convention shared by
// metadata section 1 and every record header: a positive value means the
// following payload is currently stored encrypted at that level; a negative
// value means it is currently decrypted in memory but is natively
// encrypted (on disk) at |level|.
type EncryptionLevel int8

// Level returns the absolute access level this field requires, ignoring
// current encryption state.
func (e EncryptionLevel) Level() AccessLevel {
	if e < 0 {
		return AccessLevel(-e)
	}
	return AccessLevel(e)
}

// Encrypted reports whether the payload is currently stored encrypted.
func (e EncryptionLevel) Encrypted() bool { return e > 0 }

// TimeMode selects how sample_for_uutc resolves a fractional sample index.
type TimeMode uint8

const (
	ModeCurrent TimeMode = iota // floor
	ModeClosest                 // round to nearest
	ModeNext                    // ceil (floor+1 on exact match)
)

// RangeMode selects how uutc_for_sample resolves a time within a sample's
// half-open period.
type RangeMode uint8

const (
	FindStart RangeMode = iota
	FindEnd
	FindCenter
)

// SegmentNumberChannelLevel and SegmentNumberSessionLevel are the
// universal-header segment_number values used when a file lives at the
// channel or session level rather than inside a specific segment.
const (
	SegmentNumberChannelLevel int32 = -1
	SegmentNumberSessionLevel int32 = -2
)

// ArchiveCodec selects the whole-session compression codec medarchive uses
// to bundle a Session directory tree into one portable file.
// Distinct from CMP's own per-block encoding (RED/PRED/
// MBE): this compresses already-encoded MED files for transport, not raw
// samples.
type ArchiveCodec uint8

const (
	ArchiveNone ArchiveCodec = iota + 1
	ArchiveS2
	ArchiveZstd
	ArchiveLZ4
)

func (c ArchiveCodec) String() string {
	switch c {
	case ArchiveNone:
		return "none"
	case ArchiveS2:
		return "s2"
	case ArchiveZstd:
		return "zstd"
	case ArchiveLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}
