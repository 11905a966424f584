// Package fileproc implements the file-processing lifecycle shared by
// every MED leaf file: allocate a raw buffer, open under an advisory lock,
// read or write the universal header plus body, and close while leaving
// the buffer live for the caller to keep parsing.
//
// No implicit goroutines, no cancellation; synchronous os.File calls are
// the only suspension points, and a whole-file advisory lock is acquired
// on Open. Writers rewrite the universal header last, after the body
// writes are in place, so a reader that validates header_CRC/body_CRC
// never observes a torn combination.
package fileproc

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
	"github.com/MEDFormat/MEDC-sub001/internal/options"
	"github.com/MEDFormat/MEDC-sub001/internal/pool"
	"github.com/MEDFormat/MEDC-sub001/uheader"
)

// LockMode selects the advisory lock Open acquires: read-lock on
// read-open, write-lock on write-open, or nothing.
type LockMode uint8

const (
	LockNone LockMode = iota
	LockRead
	LockWrite
)

// Mode selects how Open interprets path and what OS open flags it uses.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeCreate
)

// ReadSpan selects how much of the body Read consumes in one call: a byte
// count, the whole file, or just the universal header.
type ReadSpan int

const (
	UniversalHeaderOnly ReadSpan = -1
	FullFile            ReadSpan = -2
)

// Config configures Open, built from functional options rather than a
// bare struct literal.
type Config struct {
	LockMode       LockMode
	CreateDirs     bool
	LeaveDecrypted bool
	FailBehavior   errs.FailBehavior
}

// WithLockMode overrides the default lock mode implied by Mode.
func WithLockMode(m LockMode) options.Option[*Config] {
	return options.NoError(func(c *Config) { c.LockMode = m })
}

// WithCreateDirs makes Open recursively create path's parent directories
// and retry once on ENOENT.
func WithCreateDirs() options.Option[*Config] {
	return options.NoError(func(c *Config) { c.CreateDirs = true })
}

// WithLeaveDecrypted requests that, after an encrypting write, the
// in-memory buffer is re-decrypted so the caller's live view stays
// readable.
func WithLeaveDecrypted() options.Option[*Config] {
	return options.NoError(func(c *Config) { c.LeaveDecrypted = true })
}

// WithFailBehavior attaches behavior-on-fail flags to this Open call.
func WithFailBehavior(b errs.FailBehavior) options.Option[*Config] {
	return options.NoError(func(c *Config) { c.FailBehavior = b })
}

// Processor owns one MED file's raw byte buffer, its parsed universal
// header overlay, and the OS file handle while open. The buffer comes from
// internal/pool's file-sized tier so repeated open/close cycles over a
// session tree (medtree walks many small files) do not allocate on every
// file. Close releases the OS file handle but not the buffer.
type Processor struct {
	mu sync.Mutex

	path     string
	typeCode format.TypeCode

	file   *os.File
	buf    *pool.ByteBuffer
	header uheader.Header

	cfg    Config
	locked LockMode
}

// Allocate prepares a Processor for path without touching the filesystem.
// If proto is non-nil, its header is copied and given a fresh FileUID and
// matching ProvenanceUID, marking the new file as originating data.
func Allocate(path string, typeCode format.TypeCode, fileUID uint64, proto *uheader.Header) *Processor {
	p := &Processor{path: path, typeCode: typeCode}

	if proto != nil {
		h := *proto
		h.FileUID = fileUID
		h.ProvenanceUID = fileUID
		p.header = h
	} else {
		p.header = *uheader.New(typeCode, format.SegmentNumberChannelLevel, fileUID)
	}

	return p
}

// Header returns the processor's current universal header value.
func (p *Processor) Header() uheader.Header { return p.header }

// SetHeader replaces the processor's in-memory universal header, e.g. after
// the caller fills in session/channel names or start times.
func (p *Processor) SetHeader(h uheader.Header) { p.header = h }

// Buffer returns the raw file buffer backing the parsed overlay views
// (metadata/record/index/CMP-block pointers the caller builds on top of
// this). Valid from the first successful Read until Release.
func (p *Processor) Buffer() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

// Open opens path under mode, creating parent directories and retrying
// once on ENOENT when WithCreateDirs is set, and acquires the advisory
// lock mode implies unless overridden.
func (p *Processor) Open(mode Mode, opts ...options.Option[*Config]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file != nil {
		return errs.ErrFileAlreadyOpen
	}

	cfg := Config{}
	switch mode {
	case ModeRead:
		cfg.LockMode = LockRead
	case ModeWrite, ModeCreate:
		cfg.LockMode = LockWrite
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return err
	}
	p.cfg = cfg

	flag := os.O_RDONLY
	switch mode {
	case ModeWrite:
		flag = os.O_RDWR
	case ModeCreate:
		flag = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(p.path, flag, 0o644)
	if os.IsNotExist(err) && mode == ModeCreate && cfg.CreateDirs {
		if mkErr := os.MkdirAll(filepath.Dir(p.path), 0o755); mkErr != nil {
			return mkErr
		}
		f, err = os.OpenFile(p.path, flag, 0o644)
	}
	if err != nil {
		if cfg.FailBehavior.Has(errs.RetryOnce) {
			time.Sleep(time.Millisecond)
			f, err = os.OpenFile(p.path, flag, 0o644)
		}
		if err != nil {
			return err
		}
	}
	p.file = f

	if cfg.LockMode != LockNone {
		if err := lockFile(f, cfg.LockMode); err != nil {
			f.Close()
			p.file = nil
			return errs.ErrLockUnavailable
		}
		p.locked = cfg.LockMode
	}

	return nil
}

// Read loads span bytes of the body (after the universal header, which is
// always read first if not already present) into the processor's buffer,
// validates header_CRC/body_CRC if validateCRC is set, and returns the
// number of body bytes actually read.
//
// span of FullFile reads to EOF; UniversalHeaderOnly reads just the 1024
// byte header and returns 0.
func (p *Processor) Read(span ReadSpan, validateCRC bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return 0, errs.ErrFileNotOpen
	}

	info, err := p.file.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() < uheader.Size {
		return 0, errs.ErrTruncatedFile
	}

	if p.buf == nil {
		p.buf = pool.GetFileBuffer()
	}

	var want int64
	switch span {
	case UniversalHeaderOnly:
		want = uheader.Size
	case FullFile:
		want = info.Size()
	default:
		want = uheader.Size + int64(span)
		if want > info.Size() {
			want = info.Size()
		}
	}

	p.buf.Reset()
	p.buf.ExtendOrGrow(int(want))
	if _, err := p.file.ReadAt(p.buf.Bytes(), 0); err != nil && err != io.EOF {
		return 0, err
	}

	h, err := uheader.Parse(p.buf.Bytes()[:uheader.Size])
	if err != nil {
		return 0, err
	}
	p.header = h

	if validateCRC {
		if cErr := uheader.ValidateHeaderCRC(p.buf.Bytes()[:uheader.Size]); cErr != nil {
			return 0, cErr
		}
		if want > uheader.Size {
			if cErr := uheader.ValidateBodyCRC(p.buf.Bytes()[uheader.Size:], h.BodyCRC); cErr != nil {
				// CRC mismatch is reported, never fatal; the caller
				// decides whether to accept the payload.
				return int(want - uheader.Size), cErr
			}
		}
	}

	if span == UniversalHeaderOnly {
		return 0, nil
	}

	return int(want - uheader.Size), nil
}

// WriteResult is returned by Write with the freshly computed CRCs, for
// callers (e.g. medtree) that log or cross-check them.
type WriteResult struct {
	HeaderCRC uint32
	BodyCRC   uint32
}

// Write appends body to the file, maintains NumberOfEntries/MaxEntrySize,
// and, when final is true, computes body_CRC (directly over body, or via
// the caller-supplied combine chain for variable-length payloads such as
// records or CMP blocks) and header_CRC, then rewrites the universal
// header at offset 0 last.
func (p *Processor) Write(body []byte, entries int, final bool, combinedBodyCRC *uint32) (WriteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return WriteResult{}, errs.ErrFileNotOpen
	}

	offset, err := p.file.Seek(0, io.SeekEnd)
	if err != nil {
		return WriteResult{}, err
	}
	if offset < uheader.Size {
		offset = uheader.Size
		if _, err := p.file.Seek(offset, io.SeekStart); err != nil {
			return WriteResult{}, err
		}
	}
	if len(body) > 0 {
		if _, err := p.file.Write(body); err != nil {
			return WriteResult{}, err
		}
	}

	p.header.NumberOfEntries += uint32(entries)
	if len(body) > int(p.header.MaxEntrySize) {
		p.header.MaxEntrySize = uint32(len(body))
	}

	var res WriteResult
	if final {
		if combinedBodyCRC != nil {
			p.header.BodyCRC = *combinedBodyCRC
		} else {
			// Single-pass files re-read the body for a direct CRC; callers
			// writing incrementally (records, CMP blocks) pass
			// combinedBodyCRC instead, built via crc32med.Combine as each
			// item is written, so the body is never scanned twice.
			if _, err := p.file.Seek(uheader.Size, io.SeekStart); err != nil {
				return WriteResult{}, err
			}
			buf, err := io.ReadAll(p.file)
			if err != nil {
				return WriteResult{}, err
			}
			p.header.BodyCRC = crc32med.Calculate(buf)
		}

		headerBytes := p.header.Bytes()
		res.HeaderCRC = p.header.HeaderCRC
		res.BodyCRC = p.header.BodyCRC

		if _, err := p.file.WriteAt(headerBytes, 0); err != nil {
			return WriteResult{}, err
		}
		if err := p.file.Sync(); err != nil {
			return WriteResult{}, err
		}
	}

	return res, nil
}

// Close releases the OS file handle and the advisory lock. The in-memory
// buffer (if Read populated one) stays live until Release.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}

	if p.locked != LockNone {
		unlockFile(p.file)
		p.locked = LockNone
	}

	err := p.file.Close()
	p.file = nil

	return err
}

// Release returns the processor's buffer to the shared pool. Call once the
// caller is done with every typed overlay pointing into Buffer().
func (p *Processor) Release() {
	if p.buf != nil {
		pool.PutFileBuffer(p.buf)
		p.buf = nil
	}
}
