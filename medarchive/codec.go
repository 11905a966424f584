// Package medarchive implements a session-export archival format:
// bundling a whole Session directory tree (as medtree reads it) into one
// portable, optionally compressed file for transport or backup. It is not
// a replacement for the on-disk MED format (every file it carries is
// still a byte-identical MED file), just a convenience layered on top.
//
// A Compressor/Decompressor pair combines into a Codec interface, with a
// factory keyed by a format-level enum; each codec compresses an entire
// serialized directory tree at once.
package medarchive

import (
	"fmt"
	"sync"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses a serialized archive manifest.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions, the same pairing compress.Codec uses.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec returns the Codec for the requested format.ArchiveCodec.
func CreateCodec(codec format.ArchiveCodec) (Codec, error) {
	switch codec {
	case format.ArchiveNone:
		return noopCodec{}, nil
	case format.ArchiveS2:
		return s2Codec{}, nil
	case format.ArchiveZstd:
		return zstdCodec{}, nil
	case format.ArchiveLZ4:
		return lz4Codec{}, nil
	default:
		return nil, errs.ErrUnknownArchiveCodec
	}
}

type noopCodec struct{}

func (noopCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noopCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

type s2Codec struct{}

func (s2Codec) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (s2Codec) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

type lz4Codec struct{}

// lz4CompressorPool pools lz4.Compressor instances, since lz4.Compressor
// keeps internal state worth reusing across calls.
var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 && len(data) > 0 {
		// Incompressible input: lz4 signals this by writing zero bytes.
		return nil, fmt.Errorf("medarchive: lz4 block did not compress")
	}

	return dst[:n], nil
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	bufSize := len(data) * 4
	const maxSize = 256 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err == nil {
			return buf[:n], nil
		}
		bufSize *= 2
	}

	return nil, fmt.Errorf("medarchive: lz4 decompressed size exceeds %d bytes", maxSize)
}

type zstdCodec struct{}

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(data, nil)
}
