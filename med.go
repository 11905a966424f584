// Package med provides convenient top-level wrappers over the MED 1.0
// format packages: opening and slicing a session tree, writing and reading
// time-series segment data, and managing the password material that gates
// encrypted payloads.
//
// # Basic Usage
//
// Opening a session and resolving a time window:
//
//	sess, err := med.OpenSession("/data/patient42.medd")
//	if err != nil { ... }
//
//	req := med.NewSlice()
//	req.StartTime = 1_500_000
//	req.EndTime = 2_500_000
//	resp, err := med.ReadSlice(sess, req)
//
// Writing a segment's data file, one CMP block per 256 samples:
//
//	hdr := uheader.New(format.TypeCodeTimeSeriesData, 1, med.GenerateUID())
//	err := med.WriteSegmentData(path, hdr, samples, 256, cmp.Directives{
//	    Encoding: cmp.EncodingRED,
//	}, 0)
//
// For fine-grained control (per-block directives, incremental writes,
// custom record regions), use the cmp, fileproc, and medtree packages
// directly; everything here is composed from their exported API.
package med

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/MEDFormat/MEDC-sub001/cmp"
	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/fileproc"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/MEDFormat/MEDC-sub001/internal/crc32med"
	"github.com/MEDFormat/MEDC-sub001/medtree"
	"github.com/MEDFormat/MEDC-sub001/password"
	"github.com/MEDFormat/MEDC-sub001/record"
	"github.com/MEDFormat/MEDC-sub001/timeslice"
	"github.com/MEDFormat/MEDC-sub001/uheader"
)

// OpenSession opens and cross-validates the MED session directory tree
// rooted at dir.
func OpenSession(dir string) (*medtree.Session, error) {
	return medtree.Open(dir)
}

// ValidationFields extracts the three password-validation fields from a
// universal header, ready to hand to Unlock or RecoverPasswords.
func ValidationFields(h uheader.Header) password.ValidationFields {
	return password.ValidationFields{
		Level1: h.PasswordLevel1,
		Level2: h.PasswordLevel2,
		Level3: h.PasswordLevel3,
	}
}

// Unlock derives access from a single password checked against the
// validation fields a session (or any of its files) carries. The returned
// Data decrypts every payload its access level permits.
func Unlock(h uheader.Header, pwd string) (*password.Data, error) {
	return password.Unlock(pwd, ValidationFields(h))
}

// DerivePasswords computes the validation fields and key material for a
// freshly written session. l2 and l3 are optional ("" to omit); l3 is a
// recovery password for the highest configured level.
func DerivePasswords(l1, l2, l3 string) (password.ValidationFields, *password.Data, error) {
	return password.Derive(l1, l2, l3)
}

// RecoverPasswords reverses the level-3 recovery chain, returning the
// level-1 (and, when configured, level-2) key bytes for display. Nothing
// is persisted.
func RecoverPasswords(l3 string, h uheader.Header, hasLevel2 bool) (l1Bytes, l2Bytes [format.PasswordByteFieldSize]byte, err error) {
	return password.Recover(l3, ValidationFields(h), hasLevel2)
}

// GenerateUID returns a random 64-bit UID, retrying until the value is
// neither zero nor the reserved CMP block start magic. It does not check
// for collisions against any session, because none exists yet — use this
// only to mint a session's own UID before OpenSession has anything to
// track. Once a session is open, use GenerateSessionUID so new channel,
// segment, and file UIDs are checked against every UID already in the
// tree.
func GenerateUID() uint64 {
	var b [8]byte
	for {
		if _, err := crand.Read(b[:]); err != nil {
			continue
		}
		uid := binary.LittleEndian.Uint64(b[:])
		if uid != format.UIDNoEntry && uid != format.CMPBlockStartUID {
			return uid
		}
	}
}

// GenerateSessionUID mints a new 64-bit UID checked against sess's
// collision tracker, retrying on a sentinel value or on a collision with
// any UID already reserved in the session (from the tree on disk, or from
// an earlier call to this function). This is the resolution to the
// UID-collision concern: every channel/segment/file/provenance UID minted
// for an open session should come from here, not from GenerateUID.
func GenerateSessionUID(sess *medtree.Session) uint64 {
	return sess.GenerateUID()
}

// NewSlice returns a slice request with every limit set to its no-entry
// sentinel; the caller fills in either the time pair or the index pair.
func NewSlice() timeslice.Slice {
	return timeslice.Slice{
		StartTime:  format.UUTCNoEntry,
		EndTime:    format.UUTCNoEntry,
		StartIndex: format.SampleNumberNoEntry,
		EndIndex:   format.SampleNumberNoEntry,
	}
}

// ReadSlice resolves a time-or-index window against a session: the
// reference channel named by the request (or the first channel) is
// resolved first, and the answer carries segment numbers and local sample
// bounds valid for every channel at the same sampling frequency. Channels
// at other rates re-resolve with ReadChannelSlice.
func ReadSlice(sess *medtree.Session, req timeslice.Slice) (timeslice.Slice, error) {
	if sess == nil || len(sess.Channels) == 0 {
		return req, errs.ErrEmptySession
	}

	refName, err := timeslice.ReferenceChannel(req.IndexReferenceChannelName, sess.ChannelNames())
	if err != nil {
		return req, err
	}
	ch, _ := sess.ChannelByName(refName)

	req.Condition(sess.Header.SessionStartTime, 0)
	resp, err := ReadChannelSlice(ch, req)
	if err != nil {
		return req, err
	}
	resp.IndexReferenceChannelName = refName
	resp.SessionStartTime = sess.Header.SessionStartTime

	return resp, nil
}

// ReadChannelSlice resolves a window against one channel, trying the
// channel's Sgmt records first and falling back to per-segment metadata
// when any segment lacks one.
func ReadChannelSlice(ch medtree.Channel, req timeslice.Slice) (timeslice.Slice, error) {
	if !req.HasTimeLimits() && !req.HasIndexLimits() {
		return req, errs.ErrSliceLimitsMissing
	}

	sgmts := make([]record.SgmtV10, 0, len(ch.Segments))
	for _, seg := range ch.Segments {
		if seg.Sgmt == nil {
			sgmts = nil
			break
		}
		sgmts = append(sgmts, *seg.Sgmt)
	}

	if len(sgmts) > 0 {
		if resp, ok := timeslice.ResolveFromSgmtRecords(sgmts, req); ok {
			return resp, nil
		}
	}

	return timeslice.ResolveFromSegmentMetadata(ch.Segments, req)
}

// WriteSegmentData writes a complete time-series data file at path: the
// universal header from hdr, then one framed CMP block per blockSamples
// samples (the final block takes the remainder), with the file-wide
// body_CRC assembled from per-block CRCs as each block is written. d
// applies to every block; StartTime advances per block when hdr carries a
// sampling frequency via fs (samples per second, 0 to leave each block at
// d.StartTime).
func WriteSegmentData(path string, hdr *uheader.Header, samples []int32, blockSamples int, d cmp.Directives, fs float64) error {
	if hdr == nil || blockSamples <= 0 {
		return errs.ErrInvalidArgument
	}

	p := fileproc.Allocate(path, format.TypeCodeTimeSeriesData, hdr.FileUID, hdr)
	if err := p.Open(fileproc.ModeCreate, fileproc.WithCreateDirs()); err != nil {
		return err
	}
	defer p.Close()

	bodyCRC := crc32med.Calculate(nil)
	blockStart := d.StartTime

	for off := 0; off < len(samples) || off == 0; off += blockSamples {
		end := off + blockSamples
		if end > len(samples) {
			end = len(samples)
		}

		bd := d
		bd.StartTime = blockStart
		blk, err := cmp.CompressBlock(samples[off:end], bd)
		if err != nil {
			return err
		}

		if _, err := p.Write(blk.Raw, 1, false, nil); err != nil {
			return err
		}
		bodyCRC = crc32med.Combine(bodyCRC, crc32med.Calculate(blk.Raw), int64(len(blk.Raw)))

		if fs > 0 {
			blockStart += int64(float64(end-off) * 1e6 / fs)
		}
		if end == len(samples) {
			break
		}
	}

	if _, err := p.Write(nil, 0, true, &bodyCRC); err != nil {
		return err
	}

	return p.Close()
}

// ReadSegmentData reads a complete time-series data file back into
// samples, validating the universal header and every block CRC, and
// decrypting blocks when pd permits. The header is returned alongside so
// callers can inspect entry counts and timing without a second pass.
func ReadSegmentData(path string, pd *password.Data) ([]int32, uheader.Header, error) {
	p := fileproc.Allocate(path, format.TypeCodeTimeSeriesData, 0, nil)
	if err := p.Open(fileproc.ModeRead); err != nil {
		return nil, uheader.Header{}, err
	}
	defer p.Close()
	defer p.Release()

	if _, err := p.Read(fileproc.FullFile, true); err != nil {
		return nil, p.Header(), err
	}

	body := p.Buffer()[uheader.Size:]
	var samples []int32

	for off := 0; off+format.CMPFixedHeaderSize <= len(body); {
		total, err := cmp.BlockTotalBytes(body[off:], pd)
		if err != nil {
			return samples, p.Header(), err
		}
		if total == 0 || off+total > len(body) {
			return samples, p.Header(), errs.ErrTruncatedBlock
		}

		out, err := cmp.DecompressBlock(body[off:off+total], pd)
		if err != nil {
			return samples, p.Header(), err
		}
		samples = append(samples, out...)
		off += total
	}

	return samples, p.Header(), nil
}
