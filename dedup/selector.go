package dedup

import (
	"math/rand"

	"github.com/biogo/hts/sam"
)

// selector implements the replace-policy described in spec.md §4.3: MAPQ
// dominance first, then uniform reservoir sampling among ties.
//
// The PRNG is seeded once, deterministically, at driver construction (see
// spec.md §9's "Global PRNG" note: a process-wide seeded generator is
// acceptable because the driver itself is single-threaded).
type selector struct {
	rng *rand.Rand
}

func newSelector(seed int64) *selector {
	return &selector{rng: rand.New(rand.NewSource(seed))}
}

// update applies the selector rule for a new candidate against an existing
// bundle entry, and reports whether the survivor changed (and, if so, the
// prior survivor, so the caller can clean up mate-index/current-reads
// bookkeeping for the displaced record).
func (s *selector) update(e *bundleEntry, candidate *sam.Record) (replaced bool, prior *sam.Record) {
	e.multiplicity++

	if candidate.MapQ < e.survivor.MapQ {
		return false, nil
	}
	if candidate.MapQ > e.survivor.MapQ {
		// No PRNG draw here: spec.md §4.3 prescribes none for an outright MAPQ
		// replacement. original_source/src/dedup.cpp:267-276 always advances
		// its generator on this branch, so the two PRNG streams diverge after
		// a replacement followed by a tie; output stays deterministic either
		// way, just not byte-for-byte comparable against the C++ reference.
		prior = e.survivor
		e.survivor = cloneRecord(candidate)
		e.reservoirN = 0
		return true, prior
	}

	e.reservoirN++
	// The candidate is the (reservoirN+1)-th record seen at this MAPQ,
	// counting the current survivor, so it replaces with probability
	// 1/(reservoirN+1).
	if s.rng.Float64() < 1.0/float64(e.reservoirN+1) {
		prior = e.survivor
		e.survivor = cloneRecord(candidate)
		return true, prior
	}
	return false, nil
}

// newEntry creates the first bundle entry for a (pos, key, umi) triple.
func newEntry(candidate *sam.Record) *bundleEntry {
	return &bundleEntry{
		survivor:     cloneRecord(candidate),
		multiplicity: 1,
		reservoirN:   0,
	}
}

// cloneRecord produces an independent owned record, per spec.md §3's
// "Cloning produces an independent owned record" requirement -- the input
// reader may reuse its underlying buffers for the next record.
func cloneRecord(r *sam.Record) *sam.Record {
	cp := *r
	if r.Cigar != nil {
		cp.Cigar = append(sam.Cigar(nil), r.Cigar...)
	}
	if r.Qual != nil {
		cp.Qual = append([]byte(nil), r.Qual...)
	}
	if r.AuxFields != nil {
		cp.AuxFields = append(sam.AuxFields(nil), r.AuxFields...)
	}
	return &cp
}
