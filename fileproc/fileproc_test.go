package fileproc_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MEDFormat/MEDC-sub001/fileproc"
	"github.com/MEDFormat/MEDC-sub001/format"
)

func TestProcessorWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg", "0001.rdat")

	writer := fileproc.Allocate(path, format.TypeCodeRecordData, 1, nil)
	require.NoError(t, writer.Open(fileproc.ModeCreate, fileproc.WithCreateDirs()))

	body := []byte("some record bytes, not 8-aligned even")
	_, err := writer.Write(body, 1, true, nil)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	writer.Release()

	reader := fileproc.Allocate(path, format.TypeCodeRecordData, 1, nil)
	require.NoError(t, reader.Open(fileproc.ModeRead))
	n, err := reader.Read(fileproc.FullFile, true)
	require.NoError(t, err)
	require.Equal(t, len(body), n)
	require.Equal(t, body, reader.Buffer()[len(reader.Buffer())-len(body):])
	require.NoError(t, reader.Close())
	reader.Release()
}

func TestProcessorReadBeforeOpenFails(t *testing.T) {
	p := fileproc.Allocate(filepath.Join(t.TempDir(), "x.rdat"), format.TypeCodeRecordData, 1, nil)
	_, err := p.Read(fileproc.FullFile, false)
	require.Error(t, err)
}
