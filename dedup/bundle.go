package dedup

import "github.com/biogo/hts/sam"

// bundleID names a single (pos, key, umi) triple. It doubles as the key of
// the flat entry map and, via pos, as the secondary eviction index -- the
// flat-map-plus-secondary-index layout spec.md §9 accepts as an alternative
// to nested pos -> key -> umi maps.
type bundleID struct {
	pos int
	key Key
	umi string
}

// bundleEntry is the survivor record plus its bookkeeping for a single
// (pos, key, umi) triple: the current best record, how many reads have
// mapped to this triple (multiplicity), and the reservoir-sampling draw
// counter.
type bundleEntry struct {
	survivor     *sam.Record
	multiplicity uint64
	reservoirN   uint64
}

// bundleIndex is the position-bundle map: entries keyed by (pos, key, umi),
// plus a secondary index from pos to the set of live bundleIDs at that
// position, used to find everything eligible for eviction once the stream
// cursor passes pos+horizon.
type bundleIndex struct {
	entries map[bundleID]*bundleEntry
	byPos   map[int]map[bundleID]struct{}
}

func newBundleIndex() *bundleIndex {
	return &bundleIndex{
		entries: make(map[bundleID]*bundleEntry),
		byPos:   make(map[int]map[bundleID]struct{}),
	}
}

func (b *bundleIndex) get(id bundleID) (*bundleEntry, bool) {
	e, ok := b.entries[id]
	return e, ok
}

func (b *bundleIndex) insert(id bundleID, e *bundleEntry) {
	b.entries[id] = e
	set, ok := b.byPos[id.pos]
	if !ok {
		set = make(map[bundleID]struct{})
		b.byPos[id.pos] = set
	}
	set[id] = struct{}{}
}

// evictablePositions returns the set of live positions, optionally restricted to
// those that are evictable given the stream's current cursor: p+horizon <
// cursor. A nil horizon cursor (end of stream) evicts everything.
func (b *bundleIndex) evictablePositions(cursor *int, horizon int) []int {
	var out []int
	for p := range b.byPos {
		if cursor == nil || p+horizon < *cursor {
			out = append(out, p)
		}
	}
	return out
}

// keysAt returns the keys present at pos.
func (b *bundleIndex) keysAt(pos int) []Key {
	seen := make(map[Key]struct{})
	var out []Key
	for id := range b.byPos[pos] {
		if _, ok := seen[id.key]; !ok {
			seen[id.key] = struct{}{}
			out = append(out, id.key)
		}
	}
	return out
}

// umisAt returns every umi -> entry pair for the given (pos, key).
func (b *bundleIndex) umisAt(pos int, key Key) map[string]*bundleEntry {
	out := make(map[string]*bundleEntry)
	for id := range b.byPos[pos] {
		if id.key == key {
			out[id.umi] = b.entries[id]
		}
	}
	return out
}

// evict removes every bundle entry at pos and returns nothing: flush has
// already emitted them before eviction, so evict is purely cleanup.
func (b *bundleIndex) evict(pos int) {
	for id := range b.byPos[pos] {
		delete(b.entries, id)
	}
	delete(b.byPos, pos)
}

