package medtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/index"
	"github.com/MEDFormat/MEDC-sub001/metadata"
	"github.com/MEDFormat/MEDC-sub001/uheader"
	"github.com/stretchr/testify/require"
)

// writeMetaFile writes a universal header followed by the three metadata
// sections to path, mimicking what a real MED writer produces for a
// session, channel, or segment-level .tmet file.
func writeMetaFile(t *testing.T, path string, h *uheader.Header, sec1 metadata.Section1, sec2 metadata.Section2, sec3 metadata.Section3) {
	t.Helper()

	var buf []byte
	buf = append(buf, h.Bytes()...)
	buf = append(buf, sec1.Bytes()...)
	buf = append(buf, sec2.Bytes()...)
	buf = append(buf, sec3.Bytes()...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func writeIndexFile(t *testing.T, path string, h *uheader.Header, entries []index.Entry) {
	t.Helper()

	var buf []byte
	buf = append(buf, h.Bytes()...)
	for _, e := range entries {
		buf = append(buf, e.Bytes()...)
	}

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

// buildSession lays out one session with one time-series channel and two
// segments on disk under t.TempDir(), and returns the root session path.
func buildSession(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "rec001.medd")
	require.NoError(t, os.MkdirAll(root, 0o755))

	sessHeader := uheader.New(format.TypeCodeTimeSeriesMetadata, format.SegmentNumberSessionLevel, 1001)
	sessHeader.SessionName = "rec001"
	sessHeader.SessionUID = 1001
	writeMetaFile(t, filepath.Join(root, "rec001.tmet"), sessHeader,
		metadata.Section1{}, metadata.Section2{Kind: metadata.KindTimeSeries}, metadata.Section3{})

	chanDir := filepath.Join(root, "chan001.ticd")
	require.NoError(t, os.MkdirAll(chanDir, 0o755))

	chanHeader := uheader.New(format.TypeCodeTimeSeriesMetadata, format.SegmentNumberChannelLevel, 1002)
	chanHeader.ChannelName = "EEG_Fp1"
	chanHeader.ChannelUID = 1002
	writeMetaFile(t, filepath.Join(chanDir, "chan001.tmet"), chanHeader,
		metadata.Section1{}, metadata.Section2{Kind: metadata.KindTimeSeries}, metadata.Section3{})

	for i, segNum := range []int32{1, 2} {
		segDir := filepath.Join(chanDir, "seg00"+string(rune('1'+i))+".tisd")
		require.NoError(t, os.MkdirAll(segDir, 0o755))

		segHeader := uheader.New(format.TypeCodeTimeSeriesMetadata, segNum, uint64(2000+i))
		segHeader.FileStartTime = int64(i) * 1_000_000
		segHeader.FileEndTime = int64(i)*1_000_000 + 999_999

		sec2 := metadata.Section2{
			Kind: metadata.KindTimeSeries,
			TimeSeries: metadata.TimeSeriesSection2{
				SamplingFrequency:         100,
				AbsoluteStartSampleNumber: int64(i) * 100,
			},
		}
		writeMetaFile(t, filepath.Join(segDir, "seg.tmet"), segHeader, metadata.Section1{}, sec2, metadata.Section3{})

		idxHeader := uheader.New(format.TypeCodeTimeSeriesIndices, segNum, uint64(2000+i))
		entries := []index.Entry{
			{FileOffset: 0, StartTime: segHeader.FileStartTime, Counter: 0},
			index.NewTerminalEntry(8192, segHeader.FileEndTime, 100),
		}
		writeIndexFile(t, filepath.Join(segDir, "seg.tidx"), idxHeader, entries)
	}

	return root
}

func TestOpen_ReadsSessionChannelSegmentTree(t *testing.T) {
	root := buildSession(t)

	sess, err := Open(root)
	require.NoError(t, err)
	require.Equal(t, "rec001", sess.Name)
	require.Len(t, sess.Channels, 1)

	ch, ok := sess.ChannelByName("EEG_Fp1")
	require.True(t, ok)
	require.Len(t, ch.Segments, 2)

	seg0, ok := ch.SegmentByNumber(1)
	require.True(t, ok)
	require.Equal(t, int64(100), seg0.NumberOfSamples())
	require.Equal(t, int64(0), seg0.AbsoluteStartSampleNumber())

	seg1, ok := ch.SegmentByNumber(2)
	require.True(t, ok)
	require.Equal(t, int64(100), seg1.AbsoluteStartSampleNumber())
}

func TestOpen_RejectsNonSessionDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.Error(t, err)
}

func TestOpen_SeedsUIDCollisionTracker(t *testing.T) {
	root := buildSession(t)

	sess, err := Open(root)
	require.NoError(t, err)
	require.True(t, sess.UIDs.Contains(1001))
	require.True(t, sess.UIDs.Contains(1002))
	require.True(t, sess.UIDs.Contains(2000))
	require.True(t, sess.UIDs.Contains(2001))
}
