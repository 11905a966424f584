package med

import (
	"path/filepath"
	"testing"

	"github.com/MEDFormat/MEDC-sub001/cmp"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/collision"
	"github.com/MEDFormat/MEDC-sub001/medtree"
	"github.com/MEDFormat/MEDC-sub001/record"
	"github.com/MEDFormat/MEDC-sub001/uheader"
	"github.com/stretchr/testify/require"
)

func rampSamples(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i%50) * 3
	}
	return out
}

func TestWriteReadSegmentData_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg-000001.tisd", "data.tdat")
	samples := rampSamples(1000)

	hdr := uheader.New(format.TypeCodeTimeSeriesData, 1, GenerateUID())
	err := WriteSegmentData(path, hdr, samples, 256, cmp.Directives{
		Encoding: cmp.EncodingRED,
	}, 250)
	require.NoError(t, err)

	got, readHdr, err := ReadSegmentData(path, nil)
	require.NoError(t, err)
	require.Equal(t, samples, got)
	require.Equal(t, uint32(4), readHdr.NumberOfEntries) // ceil(1000/256)
	require.Equal(t, format.TypeCodeTimeSeriesData, readHdr.TypeCode)
}

func TestWriteReadSegmentData_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tdat")
	samples := rampSamples(300)

	fields, writer, err := DerivePasswords("secret1", "secret2", "")
	require.NoError(t, err)

	hdr := uheader.New(format.TypeCodeTimeSeriesData, 1, GenerateUID())
	hdr.PasswordLevel1 = fields.Level1
	hdr.PasswordLevel2 = fields.Level2
	hdr.PasswordLevel3 = fields.Level3

	err = WriteSegmentData(path, hdr, samples, 128, cmp.Directives{
		Encoding:     cmp.EncodingMBE,
		EncryptLevel: format.AccessLevel2,
		PasswordData: writer,
	}, 0)
	require.NoError(t, err)

	// The level-2 password decodes everything.
	reader, err := Unlock(*hdr, "secret2")
	require.NoError(t, err)
	got, _, err := ReadSegmentData(path, reader)
	require.NoError(t, err)
	require.Equal(t, samples, got)

	// The level-1 password cannot reach a level-2 block.
	reader1, err := Unlock(*hdr, "secret1")
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel1, reader1.AccessLevel)
	_, _, err = ReadSegmentData(path, reader1)
	require.ErrorIs(t, err, errs.ErrInsufficientAccess)

	// A wrong password yields no access at all.
	_, err = Unlock(*hdr, "nope")
	require.ErrorIs(t, err, errs.ErrInsufficientAccess)
}

func TestGenerateUID_AvoidsSentinels(t *testing.T) {
	for i := 0; i < 100; i++ {
		uid := GenerateUID()
		require.NotEqual(t, format.UIDNoEntry, uid)
		require.NotEqual(t, format.CMPBlockStartUID, uid)
	}
}

func TestGenerateSessionUID_AvoidsTrackedCollisions(t *testing.T) {
	sess := &medtree.Session{UIDs: collision.NewTracker()}
	existing := uint64(0xABCD)
	require.NoError(t, sess.UIDs.Reserve(existing))

	seen := map[uint64]bool{existing: true}
	for i := 0; i < 200; i++ {
		uid := GenerateSessionUID(sess)
		require.NotEqual(t, format.UIDNoEntry, uid)
		require.NotEqual(t, format.CMPBlockStartUID, uid)
		require.False(t, seen[uid], "UID reissued: %x", uid)
		seen[uid] = true
	}
}

func TestReadChannelSlice_UsesSgmtRecords(t *testing.T) {
	ch := medtree.Channel{
		Name: "chan1",
		Segments: []medtree.Segment{
			{Sgmt: &record.SgmtV10{StartTime: 0, EndTime: 999_999, AbsoluteStartSampleNumber: 0, AbsoluteEndSampleNumber: 99, SamplingFrequency: 100, SegmentNumber: 1}},
			{Sgmt: &record.SgmtV10{StartTime: 1_000_000, EndTime: 1_999_999, AbsoluteStartSampleNumber: 100, AbsoluteEndSampleNumber: 199, SamplingFrequency: 100, SegmentNumber: 2}},
		},
	}

	req := NewSlice()
	req.StartTime = 500_000
	req.EndTime = 1_500_000

	resp, err := ReadChannelSlice(ch, req)
	require.NoError(t, err)
	require.Equal(t, int32(1), resp.StartSegmentNumber)
	require.Equal(t, int32(2), resp.EndSegmentNumber)
}

func TestReadChannelSlice_NoLimits(t *testing.T) {
	_, err := ReadChannelSlice(medtree.Channel{}, NewSlice())
	require.ErrorIs(t, err, errs.ErrSliceLimitsMissing)
}

func TestRecoverPasswords_RoundTrip(t *testing.T) {
	fields, _, err := DerivePasswords("alpha", "beta", "rescue")
	require.NoError(t, err)

	var hdr uheader.Header
	hdr.PasswordLevel1 = fields.Level1
	hdr.PasswordLevel2 = fields.Level2
	hdr.PasswordLevel3 = fields.Level3

	l1, l2, err := RecoverPasswords("rescue", hdr, true)
	require.NoError(t, err)

	// The recovered level-1 and level-2 password bytes are non-empty.
	require.NotZero(t, l1)
	require.NotZero(t, l2)
}
