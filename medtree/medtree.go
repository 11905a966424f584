// Package medtree implements the Session/Channel/Segment readers:
// composing the universal header, metadata, record, and index layers to
// open and cross-validate a MED directory tree, merging per-segment
// universal headers and metadata into ephemeral channel- and
// session-level views.
//
// A session directory (*.medd) contains channel directories
// (*.ticd / *.vicd), each containing segment directories (*.tisd / *.visd)
// holding metadata (.tmet/.vmet), data (.tdat), indices (.tidx/.vidx),
// and optional record files (.rdat / *.rec). This package reads that tree
// into an in-memory arena of slices rather than a graph of interlinked
// pointers: every Channel and Segment is a value reachable by slice index
// or by hash-keyed name lookup, so cross-cutting results like segment
// numbers stay plain integers.
package medtree

import (
	crand "crypto/rand"
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/fileproc"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/index"
	"github.com/MEDFormat/MEDC-sub001/internal/collision"
	"github.com/MEDFormat/MEDC-sub001/internal/hash"
	"github.com/MEDFormat/MEDC-sub001/metadata"
	"github.com/MEDFormat/MEDC-sub001/record"
	"github.com/MEDFormat/MEDC-sub001/uheader"
)

// readWholeFile opens path read-locked through fileproc, loads the whole
// file into its pooled buffer, and returns an owned copy so the buffer
// can be released before this function returns; medtree parses the copy
// into owned Go values immediately, so nothing here needs the buffer to
// outlive the call.
func readWholeFile(path string, typeCode format.TypeCode) ([]byte, error) {
	p := fileproc.Allocate(path, typeCode, 0, nil)
	if err := p.Open(fileproc.ModeRead); err != nil {
		return nil, err
	}
	defer p.Close()
	defer p.Release()

	if _, err := p.Read(fileproc.FullFile, false); err != nil {
		return nil, err
	}

	return append([]byte(nil), p.Buffer()...), nil
}

// Segment is one segment directory's parsed view: the universal header and
// three metadata sections read from its .tmet/.vmet file, its time-series
// index entries (if any), and the Sgmt_v10 record describing its timing
// bounds, when a record file is present.
type Segment struct {
	Path string

	Header   uheader.Header
	Section1 metadata.Section1
	Section2 metadata.Section2
	Section3 metadata.Section3

	Indices []index.Entry
	Sgmt    *record.SgmtV10
}

// SegmentNumber, FileStartTime, FileEndTime, AbsoluteStartSampleNumber, and
// NumberOfSamples satisfy timeslice.SegmentTimeSource, so a slice of
// *Segment (or Segment) can be resolved directly by timeslice's generic
// segment-metadata fallback strategy without medtree importing timeslice.
func (s Segment) SegmentNumber() int32 { return s.Header.SegmentNumber }
func (s Segment) FileStartTime() int64 { return s.Header.FileStartTime }
func (s Segment) FileEndTime() int64   { return s.Header.FileEndTime }

func (s Segment) AbsoluteStartSampleNumber() int64 {
	if s.Section2.Kind == metadata.KindTimeSeries {
		return s.Section2.TimeSeries.AbsoluteStartSampleNumber
	}
	return format.SampleNumberNoEntry
}

func (s Segment) NumberOfSamples() int64 {
	if len(s.Indices) == 0 {
		return 0
	}
	// The terminal sentinel entry's Counter holds total_samples
	// (index.NewTerminalEntry), so the last entry is always the count.
	return s.Indices[len(s.Indices)-1].Counter
}

// Channel is one channel directory's parsed view: its own universal
// header/metadata (read from the channel directory's own .tmet/.vmet file,
// if the tree carries one) plus every segment beneath it, sorted by
// segment number.
type Channel struct {
	Path     string
	Name     string
	Kind     metadata.SectionKind
	Header   uheader.Header
	Segments []Segment
}

// SegmentByNumber returns the segment with the given segment number, or
// false if none matches.
func (c Channel) SegmentByNumber(n int32) (Segment, bool) {
	for _, s := range c.Segments {
		if s.SegmentNumber() == n {
			return s, true
		}
	}
	return Segment{}, false
}

// Session is a fully opened MED session: every channel beneath the
// session directory, reachable by position or by name via an
// xxhash-keyed lookup (internal/hash), plus the UID collision tracker
// seeded from every UID already present in the tree so a writer
// continuing this session never reissues one.
type Session struct {
	Path     string
	Name     string
	Header   uheader.Header
	Channels []Channel

	byName map[uint64]int
	UIDs   *collision.Tracker
}

// ChannelByName returns the channel named name, or false if no channel in
// the session has that name. Lookup is O(1) via an xxhash-keyed index
// built once in Open.
func (s Session) ChannelByName(name string) (Channel, bool) {
	i, ok := s.byName[hash.ID(name)]
	if !ok {
		return Channel{}, false
	}
	return s.Channels[i], true
}

// ChannelNames returns every channel name in the session, in the same
// order as Channels.
func (s Session) ChannelNames() []string {
	names := make([]string, len(s.Channels))
	for i, c := range s.Channels {
		names[i] = c.Name
	}
	return names
}

// GenerateUID mints a new 64-bit UID checked against every UID already
// reserved in this session's collision tracker (every session/channel/
// segment/file/provenance UID found when the tree was opened, plus every
// UID minted since), retrying on a sentinel value or a collision.
func (s *Session) GenerateUID() uint64 {
	return s.UIDs.Generate(randomUID64, isReservedUID)
}

// randomUID64 draws a candidate 64-bit UID from crypto/rand.
func randomUID64() uint64 {
	var b [8]byte
	for {
		if _, err := crand.Read(b[:]); err == nil {
			return binary.LittleEndian.Uint64(b[:])
		}
	}
}

// isReservedUID reports whether uid is one of the two values §6 reserves:
// the no-entry sentinel and the CMP block start magic.
func isReservedUID(uid uint64) bool {
	return uid == format.UIDNoEntry || uid == format.CMPBlockStartUID
}

// Open reads and cross-validates a MED session directory tree rooted at
// dir: the session directory itself, every channel directory beneath it,
// and every segment directory beneath each channel, in that order. It
// returns errs.ErrNotASessionDirectory if dir does not carry the session
// directory extension, and errs.ErrEmptySession if it contains no channel
// directories.
func Open(dir string) (*Session, error) {
	if !hasExtension(dir, format.TypeCodeSessionDir) {
		return nil, errs.ErrNotASessionDirectory
	}

	sessHeader, err := readDirectoryHeader(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	uids := collision.NewTracker()
	reserve := func(uid uint64) {
		if !isReservedUID(uid) {
			_ = uids.Reserve(uid)
		}
	}
	reserve(sessHeader.SessionUID)

	var channels []Channel
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childPath := filepath.Join(dir, e.Name())
		switch {
		case hasExtension(childPath, format.TypeCodeTimeSeriesChannelDir):
			ch, err := openChannel(childPath, format.TypeCodeTimeSeriesChannelDir, format.TypeCodeTimeSeriesSegmentDir, reserve)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case hasExtension(childPath, format.TypeCodeVideoChannelDir):
			ch, err := openChannel(childPath, format.TypeCodeVideoChannelDir, format.TypeCodeVideoSegmentDir, reserve)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		}
	}

	if len(channels) == 0 {
		return nil, errs.ErrEmptySession
	}

	slices.SortFunc(channels, func(a, b Channel) int {
		return strings.Compare(a.Name, b.Name)
	})

	byName := make(map[uint64]int, len(channels))
	for i, ch := range channels {
		byName[hash.ID(ch.Name)] = i
	}

	return &Session{
		Path:     dir,
		Name:     sessHeader.SessionName,
		Header:   sessHeader,
		Channels: channels,
		byName:   byName,
		UIDs:     uids,
	}, nil
}

func openChannel(dir string, channelDirType, segmentDirType format.TypeCode, reserve func(uint64)) (Channel, error) {
	header, err := readDirectoryHeader(dir)
	if err != nil {
		return Channel{}, err
	}
	reserve(header.ChannelUID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Channel{}, err
	}

	var segments []Segment
	for _, e := range entries {
		if !e.IsDir() || !hasExtension(filepath.Join(dir, e.Name()), segmentDirType) {
			continue
		}
		seg, err := openSegment(filepath.Join(dir, e.Name()))
		if err != nil {
			return Channel{}, err
		}
		reserve(seg.Header.SegmentUID)
		reserve(seg.Header.FileUID)
		reserve(seg.Header.ProvenanceUID)
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return Channel{}, errs.ErrEmptyChannel
	}

	slices.SortFunc(segments, func(a, b Segment) int {
		return int(a.SegmentNumber() - b.SegmentNumber())
	})

	kind := metadata.KindTimeSeries
	if channelDirType == format.TypeCodeVideoChannelDir {
		kind = metadata.KindVideo
	}

	return Channel{
		Path:     dir,
		Name:     header.ChannelName,
		Kind:     kind,
		Header:   header,
		Segments: segments,
	}, nil
}

func openSegment(dir string) (Segment, error) {
	metaPath, metaType, err := findFile(dir, format.TypeCodeTimeSeriesMetadata, format.TypeCodeVideoMetadata)
	if err != nil {
		return Segment{}, errs.ErrNotASegmentDirectory
	}

	raw, err := readWholeFile(metaPath, metaType)
	if err != nil {
		return Segment{}, err
	}
	if len(raw) < uheader.Size+3*metadata.SectionSize {
		return Segment{}, errs.ErrTruncatedFile
	}

	header, err := uheader.Parse(raw[:uheader.Size])
	if err != nil {
		return Segment{}, err
	}
	if err := uheader.ValidateTypeCode(header.TypeCode, metaType); err != nil {
		return Segment{}, err
	}

	body := raw[uheader.Size:]
	sec1, err := metadata.ParseSection1(body[0:metadata.SectionSize])
	if err != nil {
		return Segment{}, err
	}
	sec2, err := metadata.ParseSection2(body[metadata.SectionSize : 2*metadata.SectionSize])
	if err != nil {
		return Segment{}, err
	}
	sec3, err := metadata.ParseSection3(body[2*metadata.SectionSize : 3*metadata.SectionSize])
	if err != nil {
		return Segment{}, err
	}

	seg := Segment{
		Path:     dir,
		Header:   header,
		Section1: sec1,
		Section2: sec2,
		Section3: sec3,
	}

	if idxPath, idxType, err := findFile(dir, format.TypeCodeTimeSeriesIndices, format.TypeCodeVideoIndices); err == nil {
		entries, err := readIndexFile(idxPath, idxType)
		if err != nil {
			return Segment{}, err
		}
		seg.Indices = entries
	}

	if recPath, _, err := findFile(dir, format.TypeCodeRecordData); err == nil {
		sgmt, err := readSgmtRecord(recPath)
		if err == nil {
			seg.Sgmt = sgmt
		}
	}

	return seg, nil
}

func readIndexFile(path string, typeCode format.TypeCode) ([]index.Entry, error) {
	raw, err := readWholeFile(path, typeCode)
	if err != nil {
		return nil, err
	}
	if len(raw) < uheader.Size {
		return nil, errs.ErrTruncatedFile
	}

	body := raw[uheader.Size:]
	if len(body)%index.EntrySize != 0 {
		return nil, errs.ErrInvalidIndexEntrySize
	}

	entries := make([]index.Entry, 0, len(body)/index.EntrySize)
	for off := 0; off < len(body); off += index.EntrySize {
		e, err := index.ParseEntry(body[off : off+index.EntrySize])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := index.ValidateOrdering(entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func readSgmtRecord(path string) (*record.SgmtV10, error) {
	raw, err := readWholeFile(path, format.TypeCodeRecordData)
	if err != nil {
		return nil, err
	}
	if len(raw) < uheader.Size+format.RecordHeaderSize {
		return nil, errs.ErrTruncatedFile
	}

	body := raw[uheader.Size:]
	rh, err := record.ParseHeader(body[:format.RecordHeaderSize])
	if err != nil {
		return nil, err
	}
	if rh.TypeCode != record.TypeCodeSgmt {
		return nil, errs.ErrUnknownRecordType
	}
	if err := record.Validate(body[:rh.TotalRecordBytes]); err != nil {
		return nil, err
	}

	sgmt, err := record.ParseSgmtV10(body[format.RecordHeaderSize:rh.TotalRecordBytes])
	if err != nil {
		return nil, err
	}

	return &sgmt, nil
}

// readDirectoryHeader reads the universal header a directory-level entity
// (session or channel) carries at the front of its own metadata file;
// session/channel-level metadata has no segment body, just the header plus
// the description fields relevant at that level.
func readDirectoryHeader(dir string) (uheader.Header, error) {
	metaPath, _, err := findFile(dir, format.TypeCodeTimeSeriesMetadata, format.TypeCodeVideoMetadata)
	if err != nil {
		return uheader.Header{}, err
	}

	raw, err := readWholeFile(metaPath, format.TypeCodeTimeSeriesMetadata)
	if err != nil {
		return uheader.Header{}, err
	}
	if len(raw) < uheader.Size {
		return uheader.Header{}, errs.ErrTruncatedFile
	}

	return uheader.Parse(raw[:uheader.Size])
}

func findFile(dir string, candidates ...format.TypeCode) (string, format.TypeCode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		for _, want := range candidates {
			if format.PackTypeCode(ext) == want {
				return filepath.Join(dir, e.Name()), want, nil
			}
		}
	}

	return "", 0, os.ErrNotExist
}

func hasExtension(path string, want format.TypeCode) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return format.PackTypeCode(ext) == want
}
