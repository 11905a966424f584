// Package collision tracks 64-bit UIDs generated within one MED session
// so a writer never hands out two identical session/channel/segment/file/
// provenance UIDs. UIDs must never take the sentinel value 0 nor the
// reserved CMP block start magic, and a session that accumulates hundreds
// of files needs the full set of issued identifiers tracked so a retry on
// collision is possible at generation time.
package collision

import "github.com/MEDFormat/MEDC-sub001/errs"

// Tracker records every UID generated within one session and rejects
// re-issuing one already in use.
type Tracker struct {
	used map[uint64]struct{}
}

// NewTracker creates an empty UID tracker.
func NewTracker() *Tracker {
	return &Tracker{used: make(map[uint64]struct{})}
}

// Reserve records uid as in-use, returning errs.ErrUIDCollision if it was
// already reserved by this tracker.
func (t *Tracker) Reserve(uid uint64) error {
	if _, exists := t.used[uid]; exists {
		return errs.ErrUIDCollision
	}
	t.used[uid] = struct{}{}
	return nil
}

// Contains reports whether uid has already been reserved.
func (t *Tracker) Contains(uid uint64) bool {
	_, exists := t.used[uid]
	return exists
}

// Count returns the number of UIDs currently reserved.
func (t *Tracker) Count() int {
	return len(t.used)
}

// Generate calls next() until it produces a value that is neither a
// reserved sentinel (per isSentinel) nor already tracked, reserves it, and
// returns it.
func (t *Tracker) Generate(next func() uint64, isSentinel func(uint64) bool) uint64 {
	for {
		uid := next()
		if isSentinel(uid) || t.Contains(uid) {
			continue
		}
		_ = t.Reserve(uid)
		return uid
	}
}
