package medarchive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
)

// manifestMagic identifies medarchive's own container framing. This is
// distinct from the MED on-disk format itself: every file the manifest
// carries is still a byte-identical MED file; only the wrapper around them
// belongs to medarchive.
var manifestMagic = [4]byte{'M', 'E', 'D', 'A'}

const manifestVersion = 1

// Export walks sessionDir (expected to be a MED session directory readable
// by medtree.Open) and writes every regular file beneath it, relative path
// and raw bytes, into one manifest compressed with codec and written to w.
func Export(sessionDir string, w io.Writer, codec format.ArchiveCodec) error {
	c, err := CreateCodec(codec)
	if err != nil {
		return err
	}

	var manifest bytes.Buffer

	err = filepath.Walk(sessionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sessionDir, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		return writeManifestEntry(&manifest, filepath.ToSlash(rel), data)
	})
	if err != nil {
		return fmt.Errorf("medarchive: export %s: %w", sessionDir, err)
	}

	compressed, err := c.Compress(manifest.Bytes())
	if err != nil {
		return fmt.Errorf("medarchive: compress manifest: %w", err)
	}

	if _, err := w.Write(manifestMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(manifestVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(codec)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(compressed))); err != nil {
		return err
	}

	_, err = w.Write(compressed)
	return err
}

// Import reads an archive written by Export, reconstructs its files under
// a freshly created temporary directory, and returns that directory's
// path. Callers that want a specific destination can os.Rename it
// afterward.
func Import(r io.Reader) (string, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return "", fmt.Errorf("medarchive: read magic: %w", err)
	}
	if magic != manifestMagic {
		return "", errs.ErrArchiveManifestCorrupt
	}

	var version, codecByte uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return "", err
	}
	if version != manifestVersion {
		return "", fmt.Errorf("medarchive: unsupported archive version %d", version)
	}
	if err := binary.Read(r, binary.BigEndian, &codecByte); err != nil {
		return "", err
	}

	var compressedLen uint64
	if err := binary.Read(r, binary.BigEndian, &compressedLen); err != nil {
		return "", err
	}

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return "", fmt.Errorf("medarchive: read compressed manifest: %w", err)
	}

	c, err := CreateCodec(format.ArchiveCodec(codecByte))
	if err != nil {
		return "", err
	}

	manifest, err := c.Decompress(compressed)
	if err != nil {
		return "", fmt.Errorf("medarchive: decompress manifest: %w", err)
	}

	dir, err := os.MkdirTemp("", "medarchive-*")
	if err != nil {
		return "", err
	}

	if err := extractManifest(dir, manifest); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	return dir, nil
}

func writeManifestEntry(buf *bytes.Buffer, relPath string, data []byte) error {
	pathBytes := []byte(relPath)

	if err := binary.Write(buf, binary.BigEndian, uint32(len(pathBytes))); err != nil {
		return err
	}
	buf.Write(pathBytes)

	if err := binary.Write(buf, binary.BigEndian, uint64(len(data))); err != nil {
		return err
	}
	buf.Write(data)

	return nil
}

func extractManifest(destRoot string, manifest []byte) error {
	r := bytes.NewReader(manifest)

	for r.Len() > 0 {
		var pathLen uint32
		if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrArchiveManifestCorrupt, err)
		}

		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrArchiveManifestCorrupt, err)
		}

		var dataLen uint64
		if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrArchiveManifestCorrupt, err)
		}

		data := make([]byte, dataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrArchiveManifestCorrupt, err)
		}

		destPath := filepath.Join(destRoot, filepath.FromSlash(string(pathBytes)))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(destPath, data, 0o644); err != nil {
			return err
		}
	}

	return nil
}
