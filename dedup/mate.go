package dedup

import (
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fumitools/internal/readid"
)

// mateIndex implements the paired-mode bookkeeping from spec.md §3/§4.6:
// which survivors are still resident (currentReads), which read-2 records
// are waiting to be joined to a read-1 survivor (pairedReads), and which
// survivors have been flushed but have no mate yet (notYetPaired).
type mateIndex struct {
	currentReads map[readid.Identity]struct{}
	pairedReads  map[readid.Identity]*sam.Record
	notYetPaired map[readid.Identity]*sam.Record
}

func newMateIndex() *mateIndex {
	return &mateIndex{
		currentReads: make(map[readid.Identity]struct{}),
		pairedReads:  make(map[readid.Identity]*sam.Record),
		notYetPaired: make(map[readid.Identity]*sam.Record),
	}
}

func (m *mateIndex) markCurrent(r *sam.Record) {
	m.currentReads[readid.Of(r)] = struct{}{}
}

func (m *mateIndex) unmarkCurrent(r *sam.Record) {
	delete(m.currentReads, readid.Of(r))
}

func (m *mateIndex) isCurrent(id readid.Identity) bool {
	_, ok := m.currentReads[id]
	return ok
}

// evictDanglingMate removes any paired_read_map entry belonging to r's
// mate. Called when r is replaced as a bundle's survivor, since a stale
// entry would otherwise pair against a record that is no longer the
// bundle's representative, and when a chimeric r is discarded.
func (m *mateIndex) evictDanglingMate(r *sam.Record) {
	delete(m.pairedReads, readid.OfMate(r))
}

// onRead2 implements the read-2 arrival rule of spec.md §4.6. sink is
// called to emit a resolved (R1, R2) pair immediately (the late-pairing
// path).
func (m *mateIndex) onRead2(r2 *sam.Record, sink func(r1, r2 *sam.Record)) {
	mateAhead := r2.MatePos < r2.Pos && sameRef(r2.MateRef, r2.Ref)
	mateAhead = mateAhead || refBefore(r2.MateRef, r2.Ref)

	if mateAhead {
		mateID := readid.OfMate(r2)
		if m.isCurrent(mateID) {
			m.pairedReads[readid.Of(r2)] = cloneRecord(r2)
			return
		}
		if r1, ok := m.notYetPaired[mateID]; ok {
			sink(r1, cloneRecord(r2))
			delete(m.notYetPaired, mateID)
			return
		}
		// Discard: no live R1 survivor and no orphaned one waiting.
		return
	}

	// Read-1 may still be ahead within the window; resolve at flush time.
	m.pairedReads[readid.Of(r2)] = cloneRecord(r2)
}

// flushSurvivor applies the paired bundle-flush rule of spec.md §4.6 to a
// single emitted survivor. sink is called once per record that should be
// written to output, in emission order.
func (m *mateIndex) flushSurvivor(s *sam.Record, bamPos int, unpairedReadsUse bool, sink func(*sam.Record)) {
	m.unmarkCurrent(s)

	if s.Flags&sam.MateUnmapped != 0 {
		sink(s)
		return
	}

	if s.MatePos <= bamPos {
		mateID := readid.OfMate(s)
		if mate, ok := m.pairedReads[mateID]; ok {
			sink(s)
			sink(mate)
			delete(m.pairedReads, mateID)
			return
		}
		m.notYetPaired[readid.Of(s)] = s
		return
	}
	m.notYetPaired[readid.Of(s)] = s
}

// endOfStream flushes all remaining not-yet-paired survivors, honoring
// opts.UnpairedReads.
func (m *mateIndex) endOfStream(use bool, sink func(*sam.Record)) {
	if !use {
		return
	}
	for _, r := range m.notYetPaired {
		sink(r)
	}
}

func sameRef(a, b *sam.Reference) bool {
	return refIDOf(a) == refIDOf(b)
}

func refBefore(a, b *sam.Reference) bool {
	return refIDOf(a) < refIDOf(b)
}

func refIDOf(r *sam.Reference) int {
	if r == nil {
		return -1
	}
	return r.ID()
}

// discardChimeric reports whether r should be dropped under
// opts.ChimericPairs == "discard", and if so, evicts any stale
// paired_read_map entry keyed on r's own mate-dummy (spec.md §9: this is a
// deliberately asymmetric cleanup -- it only matches an entry if that mate
// had previously been paired through r).
func (m *mateIndex) discardChimeric(r *sam.Record, opts *Options) bool {
	if opts.ChimericPairs != "discard" {
		return false
	}
	if r.Ref == nil || r.MateRef == nil || r.Ref.ID() == r.MateRef.ID() {
		return false
	}
	log.Debug.Printf("dedup: discarding chimeric mate %s (identity %x)", r.Name, readid.Of(r).Hash())
	m.evictDanglingMate(r)
	return true
}
