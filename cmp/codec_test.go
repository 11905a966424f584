package cmp

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/password"
	"github.com/stretchr/testify/require"
)

func TestMBERoundTrip(t *testing.T) {
	samples := []int32{100, 101, 102, 103, 104}

	payload, model := EncodeMBE(samples)
	require.Equal(t, int32(100), model.MinimumSampleValue)
	require.Equal(t, uint8(3), model.BitsPerSample)

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingMBE})
	require.NoError(t, err)
	require.Zero(t, len(blk.Raw)%8)

	got := DecodeMBE(payload, model, len(samples))
	require.Equal(t, samples, got)

	roundTrip, err := DecompressBlock(blk.Raw, nil)
	require.NoError(t, err)
	require.Equal(t, samples, roundTrip)
}

func TestREDKeysample(t *testing.T) {
	samples := []int32{0, 1, 2, 300, 301}

	diffs, release := redDifferences(samples)
	defer release()
	require.Equal(t, byte(keysampleMarker), diffs[2])
	require.Equal(t, int32(300), readInt32LE(diffs[3:7]))
	require.Equal(t, byte(1), diffs[7])

	payload, model := EncodeRED(samples)
	got := DecodeRED(payload, model, len(samples))
	require.Equal(t, samples, got)

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingRED})
	require.NoError(t, err)
	roundTrip, err := DecompressBlock(blk.Raw, nil)
	require.NoError(t, err)
	require.Equal(t, samples, roundTrip)
}

func TestPREDContexts(t *testing.T) {
	samples := []int32{0, 1, 0, 1, 0, 1, 0, 1}

	payload, model := EncodePRED(samples)
	got := DecodePRED(payload, model, len(samples))
	require.Equal(t, samples, got)

	// NIL holds only the first difference (+1); POS holds only -1; NEG
	// holds only +1.
	require.Len(t, model.Contexts[catNIL].Symbols, 1)
	require.Equal(t, int8(1), model.Contexts[catNIL].Symbols[0])
	require.Len(t, model.Contexts[catPOS].Symbols, 1)
	require.Equal(t, int8(-1), model.Contexts[catPOS].Symbols[0])
	require.Len(t, model.Contexts[catNEG].Symbols, 1)
	require.Equal(t, int8(1), model.Contexts[catNEG].Symbols[0])

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingPRED})
	require.NoError(t, err)
	roundTrip, err := DecompressBlock(blk.Raw, nil)
	require.NoError(t, err)
	require.Equal(t, samples, roundTrip)
}

func TestEncodeDecode_ZeroSamples(t *testing.T) {
	for _, enc := range []Encoding{EncodingRED, EncodingPRED, EncodingMBE} {
		blk, err := CompressBlock(nil, Directives{Encoding: enc})
		require.NoError(t, err)
		require.Zero(t, len(blk.Raw)%8)

		out, err := DecompressBlock(blk.Raw, nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestEncodeDecode_OneSample(t *testing.T) {
	for _, enc := range []Encoding{EncodingRED, EncodingPRED, EncodingMBE} {
		blk, err := CompressBlock([]int32{42}, Directives{Encoding: enc})
		require.NoError(t, err)

		out, err := DecompressBlock(blk.Raw, nil)
		require.NoError(t, err)
		require.Equal(t, []int32{42}, out)
	}
}

func TestEncodeDecode_AllEqual(t *testing.T) {
	samples := make([]int32, 50)
	for i := range samples {
		samples[i] = 7
	}

	for _, enc := range []Encoding{EncodingRED, EncodingPRED} {
		blk, err := CompressBlock(samples, Directives{Encoding: enc})
		require.NoError(t, err)
		out, err := DecompressBlock(blk.Raw, nil)
		require.NoError(t, err)
		require.Equal(t, samples, out)
	}
}

func TestCompressBlock_Detrend(t *testing.T) {
	samples := make([]int32, 64)
	for i := range samples {
		samples[i] = int32(i)*3 + 10
	}

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingMBE, Detrend: true})
	require.NoError(t, err)

	out, err := DecompressBlock(blk.Raw, nil)
	require.NoError(t, err)
	require.Equal(t, samples, out)
}

func TestCompressBlock_FallThroughToMBE(t *testing.T) {
	// Noise-like, roughly-uniform samples: RED's entropy coding will not
	// beat MBE's fixed-width packing, so fall_through_to_MBE should swap
	// the block to MBE.
	samples := make([]int32, 256)
	x := uint32(12345)
	for i := range samples {
		x = x*1664525 + 1013904223
		samples[i] = int32(x % 256)
	}

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingRED, FallThroughToMBE: true})
	require.NoError(t, err)

	out, err := DecompressBlock(blk.Raw, nil)
	require.NoError(t, err)
	require.Equal(t, samples, out)
}

func TestCompressBlock_EncryptionRoundTrip(t *testing.T) {
	samples := []int32{100, 101, 102, 103, 104}

	fields, writer, err := password.Derive("secret1", "secret2", "")
	require.NoError(t, err)

	blk, err := CompressBlock(samples, Directives{
		Encoding:     EncodingMBE,
		EncryptLevel: format.AccessLevel2,
		PasswordData: writer,
	})
	require.NoError(t, err)
	require.NotZero(t, blk.Header.BlockFlags&format.BlockFlagLevel2Encryption)

	// The level-2 password unlocks level-2 access and decodes the block.
	reader2, err := password.Unlock("secret2", fields)
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel2, reader2.AccessLevel)
	out, err := DecompressBlock(blk.Raw, reader2)
	require.NoError(t, err)
	require.Equal(t, samples, out)

	// The level-1 password only reaches level 1, so a level-2 block is
	// refused and the caller's bytes stay untouched.
	reader1, err := password.Unlock("secret1", fields)
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel1, reader1.AccessLevel)
	before := append([]byte(nil), blk.Raw...)
	_, err = DecompressBlock(blk.Raw, reader1)
	require.ErrorIs(t, err, errs.ErrInsufficientAccess)
	require.Equal(t, before, blk.Raw)

	// A wrong password never yields access at all.
	_, err = password.Unlock("wrong", fields)
	require.ErrorIs(t, err, errs.ErrInsufficientAccess)

	// Level-1 encryption is decodable by both passwords.
	blk1, err := CompressBlock(samples, Directives{
		Encoding:     EncodingRED,
		EncryptLevel: format.AccessLevel1,
		PasswordData: writer,
	})
	require.NoError(t, err)
	for _, rd := range []*password.Data{reader1, reader2} {
		out, err := DecompressBlock(blk1.Raw, rd)
		require.NoError(t, err)
		require.Equal(t, samples, out)
	}
}

func TestCompressBlock_FixedHeaderInvariants(t *testing.T) {
	samples := []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	blk, err := CompressBlock(samples, Directives{Encoding: EncodingRED})
	require.NoError(t, err)

	require.Zero(t, int(blk.Header.TotalBlockBytes)%8)
	require.Equal(t,
		int(format.CMPFixedHeaderSize)+int(blk.Header.RecordRegionBytes)+int(blk.Header.ParameterRegionBytes)+int(blk.Header.ProtectedRegionBytes)+int(blk.Header.DiscretionaryRegionBytes)+int(blk.Header.ModelRegionBytes),
		int(blk.Header.TotalHeaderBytes),
	)
}
