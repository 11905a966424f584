package cmp

import (
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
	"github.com/MEDFormat/MEDC-sub001/password"
)

// Encoding identifies which of the three CMP encodings a block uses. All
// three share the same fixed header and variable/model region discipline.
type Encoding uint8

const (
	EncodingRED Encoding = iota
	EncodingPRED
	EncodingMBE
)

func (e Encoding) flag() uint32 {
	switch e {
	case EncodingRED:
		return format.BlockFlagRedEncoding
	case EncodingPRED:
		return format.BlockFlagPredEncoding
	default:
		return format.BlockFlagMbeEncoding
	}
}

// Directives configures one CompressBlock call. The pipeline runs
// Raw -> (Detrended?) -> (Scaled?) -> Encoded -> (FallbackMBE?) ->
// (Encrypted?) -> Framed; each stage is a no-op when its directive is off.
type Directives struct {
	Encoding Encoding

	Detrend bool

	// ScaleAmplitude, when non-zero, divides every sample by this factor
	// before encoding. Lossy.
	ScaleAmplitude float32

	// RequireNormality gates ScaleAmplitude behind NormalityScore: lossy
	// steps are skipped when the score falls below the threshold.
	RequireNormality      bool
	NormalityThreshold    uint8

	FrequencyScale float32 // reserved; stored, not applied

	FallThroughToMBE bool

	EncryptLevel format.AccessLevel // 0 = AccessNone, no encryption
	PasswordData *password.Data

	StartTime           int64
	AcquisitionChannel  int16
	Discontinuity       bool

	RecordRegion []byte // pre-serialized per-block records, if any
	Protected    []byte
	Discretionary []byte
}

// Block is a fully-framed CMP block ready to be written to a time-series
// data file: the concatenation of its FixedHeader, variable region, model
// region, and encoded payload, all captured in Raw.
type Block struct {
	Header FixedHeader
	Raw    []byte // the complete framed block, total_block_bytes long
}

// CompressBlock runs the full transform/encode/encrypt pipeline over
// samples and returns a framed, CRC-finalized Block.
func CompressBlock(samples []int32, d Directives) (Block, error) {
	n := len(samples)
	work := samples

	var params Parameters

	if d.Detrend && n > 0 {
		residuals, gradient, intercept := Detrend(work)
		work = residuals
		params.HasGradient, params.Gradient = true, gradient
		params.HasIntercept, params.Intercept = true, intercept
	}

	if d.ScaleAmplitude != 0 && d.ScaleAmplitude != 1 {
		applyScale := true
		if d.RequireNormality {
			applyScale = NormalityScore(work) >= d.NormalityThreshold
		}
		if applyScale {
			work = ScaleAmplitude(work, d.ScaleAmplitude)
			params.HasAmplitudeScale, params.AmplitudeScale = true, d.ScaleAmplitude
		}
	}

	if d.FrequencyScale != 0 {
		// FrequencyScale is reserved: store the parameter, perform no
		// transform.
		params.HasFrequencyScale, params.FrequencyScale = true, d.FrequencyScale
	}

	encoding := d.Encoding
	var modelBytes []byte
	var payload []byte

	switch encoding {
	case EncodingRED:
		p, m := EncodeRED(work)
		payload, modelBytes = p, m.Bytes()
	case EncodingPRED:
		p, m := EncodePRED(work)
		payload, modelBytes = p, m.Bytes()
	case EncodingMBE:
		p, m := EncodeMBE(work)
		payload, modelBytes = p, m.Bytes()
	default:
		return Block{}, errs.ErrUnknownEncoding
	}

	if d.FallThroughToMBE && encoding != EncodingMBE {
		mp, mm := EncodeMBE(work)
		currentHeaderLen := format.CMPFixedHeaderSize + variableRegionLen(d, params) + len(modelBytes)
		currentTotal := PadTo8(currentHeaderLen + len(payload))

		mbeHeaderLen := format.CMPFixedHeaderSize + variableRegionLen(d, params) + len(mm.Bytes())
		mbeTotal := PadTo8(mbeHeaderLen + len(mp))

		if mbeTotal < currentTotal {
			encoding = EncodingMBE
			payload, modelBytes = mp, mm.Bytes()
		}
	}

	blk, err := assembleBlock(samples, work, n, encoding, params, modelBytes, payload, d)
	if err != nil {
		return Block{}, err
	}

	if d.EncryptLevel != format.AccessNone {
		if err := encryptBlock(&blk, d.EncryptLevel, d.PasswordData); err != nil {
			return Block{}, err
		}
	}

	finalizeCRC(&blk)

	return blk, nil
}

func variableRegionLen(d Directives, params Parameters) int {
	return len(d.RecordRegion) + int(ParameterRegionBytes(uint16(params.Flags()))) + len(d.Protected) + len(d.Discretionary)
}

func assembleBlock(original, work []int32, n int, encoding Encoding, params Parameters, modelBytes, payload []byte, d Directives) (Block, error) {
	paramBytes := params.Bytes()
	variableBytes := len(d.RecordRegion) + len(paramBytes) + len(d.Protected) + len(d.Discretionary)
	totalHeader := format.CMPFixedHeaderSize + variableBytes + len(modelBytes)
	totalBlock := PadTo8(totalHeader + len(payload))

	flags := encoding.flag()
	if d.Discontinuity {
		flags |= format.BlockFlagDiscontinuity
	}

	h := FixedHeader{
		BlockFlags:               flags,
		StartTime:                d.StartTime,
		AcqChannelNum:            d.AcquisitionChannel,
		TotalBlockBytes:          uint32(totalBlock),
		NumberOfSamples:          uint32(n),
		NumberOfRecords:          0,
		RecordRegionBytes:        uint16(len(d.RecordRegion)),
		ParameterFlags:           uint16(params.Flags()),
		ParameterRegionBytes:     uint16(len(paramBytes)),
		ProtectedRegionBytes:     uint16(len(d.Protected)),
		DiscretionaryRegionBytes: uint16(len(d.Discretionary)),
		ModelRegionBytes:         uint16(len(modelBytes)),
		TotalHeaderBytes:         uint16(totalHeader),
	}

	raw := make([]byte, totalBlock)
	copy(raw[0:format.CMPFixedHeaderSize], h.Bytes())

	off := format.CMPFixedHeaderSize
	off += copy(raw[off:], d.RecordRegion)
	off += copy(raw[off:], paramBytes)
	off += copy(raw[off:], d.Protected)
	off += copy(raw[off:], d.Discretionary)
	off += copy(raw[off:], modelBytes)
	copy(raw[off:], payload)
	// Remaining bytes, if any, are PadByte-initialized zero already.

	return Block{Header: h, Raw: raw}, nil
}

// encryptBlock encrypts the contiguous AES-block run starting at
// EncryptionOffset and sets the matching block_flags encryption bit.
func encryptBlock(b *Block, level format.AccessLevel, pd *password.Data) error {
	if pd == nil || !pd.CanDecrypt(level) {
		return errs.ErrInsufficientAccess
	}

	n := encryptedByteCount(b.Header, level)
	if n == 0 {
		return nil
	}

	region := b.Raw[EncryptionOffset : EncryptionOffset+n]
	if err := pd.EncryptInPlace(level, region); err != nil {
		return err
	}

	switch level {
	case format.AccessLevel1:
		b.Header.BlockFlags |= format.BlockFlagLevel1Encryption
	case format.AccessLevel2:
		b.Header.BlockFlags |= format.BlockFlagLevel2Encryption
	}
	engine.PutUint32(b.Raw[offsetBlockFlags:], b.Header.BlockFlags)

	return nil
}

// encryptedByteCount computes the number of bytes starting at
// EncryptionOffset that per-block encryption covers: for MBE, as many
// whole 16-byte blocks as fit to total_block_bytes; for RED/PRED, enough
// blocks to cover the whole header (incl. model region) rounded up by one
// extra block, capped at the block size.
func encryptedByteCount(h FixedHeader, _ format.AccessLevel) int {
	avail := int(h.TotalBlockBytes) - EncryptionOffset

	enc := format.EncodingMask(h.BlockFlags)
	if enc == format.BlockFlagMbeEncoding {
		return (avail / format.AESBlockSize) * format.AESBlockSize
	}

	headerSpan := int(h.TotalHeaderBytes) - EncryptionOffset
	blocks := (headerSpan / format.AESBlockSize) + 1
	n := blocks * format.AESBlockSize
	if n > avail {
		n = (avail / format.AESBlockSize) * format.AESBlockSize
	}

	return n
}

// decryptBlockBody decrypts body's covered AES-block run in place. The
// run's extent depends on fields that are themselves encrypted, so the
// fixed header's covered blocks are decrypted first (ECB decrypts each
// 16-byte block independently) before the remainder of the run.
func decryptBlockBody(body []byte, total int, flags uint32, level format.AccessLevel, pd *password.Data) error {
	availFloor := (total - EncryptionOffset) / format.AESBlockSize * format.AESBlockSize
	if availFloor <= 0 {
		return nil
	}

	done := format.AESBlockSize
	if done > availFloor {
		done = availFloor
	}
	if err := pd.DecryptInPlace(level, body[EncryptionOffset:EncryptionOffset+done]); err != nil {
		return err
	}

	n := availFloor
	if format.EncodingMask(flags) != format.BlockFlagMbeEncoding {
		// RED/PRED bound the run by total_header_bytes, which sits in the
		// second covered block.
		if availFloor >= 2*format.AESBlockSize {
			if err := pd.DecryptInPlace(level, body[EncryptionOffset+done:EncryptionOffset+2*format.AESBlockSize]); err != nil {
				return err
			}
			done = 2 * format.AESBlockSize
		}
		headerSpan := int(engine.Uint16(body[offsetTotalHeader:])) - EncryptionOffset
		n = (headerSpan/format.AESBlockSize + 1) * format.AESBlockSize
		if n > availFloor {
			n = availFloor
		}
		if n < done {
			n = done
		}
	}

	if n > done {
		if err := pd.DecryptInPlace(level, body[EncryptionOffset+done:EncryptionOffset+n]); err != nil {
			return err
		}
	}

	return nil
}

// finalizeCRC computes block_CRC over [crcCoverageStart, total_block_bytes)
// (the now-encrypted bytes, if encryption ran) and writes it into both
// the Header value and Raw.
func finalizeCRC(b *Block) {
	crc := crc32med.Calculate(b.Raw[crcCoverageStart:])
	b.Header.BlockCRC = crc
	engine.PutUint32(b.Raw[offsetBlockCRC:], crc)
}

// encryptionLevelOf maps the encryption bits of block_flags to an access
// level (AccessNone when the block is stored plain).
func encryptionLevelOf(flags uint32) format.AccessLevel {
	switch format.EncryptionMask(flags) {
	case format.BlockFlagLevel1Encryption:
		return format.AccessLevel1
	case format.BlockFlagLevel2Encryption:
		return format.AccessLevel2
	default:
		return format.AccessNone
	}
}

// BlockTotalBytes returns a framed block's total_block_bytes without
// decoding it. Encryption covers the header bytes that follow start_time,
// total_block_bytes included, so for an encrypted block the first covered
// 16-byte AES block is decrypted on a scratch copy (ECB decrypts each
// block independently) to read the field; the input is never modified.
func BlockTotalBytes(raw []byte, pd *password.Data) (int, error) {
	if len(raw) < format.CMPFixedHeaderSize {
		return 0, errs.ErrTruncatedBlock
	}
	if engine.Uint64(raw[offsetBlockStartUID:]) != format.CMPBlockStartUID {
		return 0, errs.ErrInvalidBlockMagic
	}

	flags := engine.Uint32(raw[offsetBlockFlags:])
	if err := validateFlags(flags); err != nil {
		return 0, err
	}

	level := encryptionLevelOf(flags)
	if level == format.AccessNone {
		return int(engine.Uint32(raw[offsetTotalBlockBytes:])), nil
	}

	if pd == nil || !pd.CanDecrypt(level) {
		return 0, errs.ErrInsufficientAccess
	}

	var head [format.AESBlockSize]byte
	copy(head[:], raw[EncryptionOffset:EncryptionOffset+format.AESBlockSize])
	if err := pd.DecryptInPlace(level, head[:]); err != nil {
		return 0, err
	}

	return int(engine.Uint32(head[offsetTotalBlockBytes-EncryptionOffset:])), nil
}

// DecompressBlock reverses CompressBlock: validates block_CRC over the
// as-stored bytes, decrypts if requested and permitted, decodes the chosen
// encoding, then reverses amplitude scaling and detrending. raw is never
// modified; an insufficient access level is a soft failure that leaves the
// caller's bytes untouched.
func DecompressBlock(raw []byte, pd *password.Data) ([]int32, error) {
	total, err := BlockTotalBytes(raw, pd)
	if err != nil {
		return nil, err
	}
	if total < format.CMPFixedHeaderSize || total > len(raw) {
		return nil, errs.ErrTruncatedBlock
	}
	if total%8 != 0 {
		return nil, errs.ErrBlockNotByteAligned
	}

	body := append([]byte(nil), raw[:total]...)

	// block_CRC covers the as-stored bytes, so it is checked before any
	// decryption rewrites them.
	storedCRC := engine.Uint32(body[offsetBlockCRC:])
	if !crc32med.Validate(body[crcCoverageStart:], storedCRC) {
		return nil, errs.ErrBlockCRCMismatch
	}

	flags := engine.Uint32(body[offsetBlockFlags:])
	if level := encryptionLevelOf(flags); level != format.AccessNone {
		if err := decryptBlockBody(body, total, flags, level, pd); err != nil {
			return nil, err
		}
	}

	h, err := ParseFixedHeader(body[:format.CMPFixedHeaderSize])
	if err != nil {
		return nil, err
	}

	off := format.CMPFixedHeaderSize
	off += int(h.RecordRegionBytes)
	paramRegion := body[off : off+int(h.ParameterRegionBytes)]
	off += int(h.ParameterRegionBytes)
	off += int(h.ProtectedRegionBytes)
	off += int(h.DiscretionaryRegionBytes)
	modelRegion := body[off : off+int(h.ModelRegionBytes)]
	payload := body[h.TotalHeaderBytes:]

	params := ParseParameters(uint32(h.ParameterFlags), paramRegion)

	n := int(h.NumberOfSamples)
	var samples []int32

	switch format.EncodingMask(h.BlockFlags) {
	case format.BlockFlagRedEncoding:
		m := ParseREDModel(modelRegion)
		samples = DecodeRED(payload, m, n)
	case format.BlockFlagPredEncoding:
		m := ParsePREDModel(modelRegion)
		samples = DecodePRED(payload, m, n)
	case format.BlockFlagMbeEncoding:
		m := ParseMBEModel(modelRegion)
		samples = DecodeMBE(payload, m, n)
	default:
		return nil, errs.ErrUnknownEncoding
	}

	if params.HasAmplitudeScale {
		samples = UnscaleAmplitude(samples, params.AmplitudeScale)
	}
	if params.HasGradient || params.HasIntercept {
		samples = Restore(samples, params.Gradient, params.Intercept)
	}

	return samples, nil
}
