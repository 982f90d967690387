package flagrepair

import (
	"sort"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/fumitools/internal/readid"
)

// Options configures a repair pass.
type Options struct {
	// RSEMSort selects the rsem_sort final ordering (tid, min/max mate
	// position, strand pattern) instead of the default R1/R2-byte ordering.
	// Exposed on cmd/fix_flags as --sort-adjacent-pairs.
	RSEMSort bool
}

// role classifies a record within its read-name group for the purposes of
// primary selection and NH/HI/XS recomputation. Unpaired records (neither
// FREAD1 nor FREAD2 set) share a single "other" role.
type role int

const (
	roleOther role = iota
	roleR1
	roleR2
)

func roleOf(r *sam.Record) role {
	switch {
	case r.Flags&sam.Read1 != 0:
		return roleR1
	case r.Flags&sam.Read2 != 0:
		return roleR2
	default:
		return roleOther
	}
}

// CanonicalName truncates a query name at its first whitespace, per
// spec.md §4.7's grouping rule (some aligners append a comment field after
// a space).
func CanonicalName(name string) string {
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		return name[:i]
	}
	return name
}

// Group partitions records into canonical-qname groups, preserving the
// order in which each group's name first appears.
func Group(records []*sam.Record) [][]*sam.Record {
	order := make([]string, 0)
	byName := make(map[string][]*sam.Record)
	for _, r := range records {
		name := CanonicalName(r.Name)
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], r)
	}
	groups := make([][]*sam.Record, len(order))
	for i, name := range order {
		groups[i] = byName[name]
	}
	return groups
}

// Repair groups records by canonical qname and repairs each group
// independently, returning the concatenated, per-group-reordered result in
// group-of-first-appearance order.
func Repair(records []*sam.Record, opts *Options) []*sam.Record {
	groups := Group(records)
	out := make([]*sam.Record, 0, len(records))
	for _, g := range groups {
		out = append(out, RepairGroup(g, opts)...)
	}
	return out
}

// sortPos is the position used by the intra-group stable sort: a record's
// own position for R1 (and unpaired) records, or its mate's position (i.e.
// the R1's position) for R2 records, so that a mate pair sorts together by
// the R1 locus.
func sortPos(r *sam.Record) int {
	if roleOf(r) == roleR2 {
		return r.MatePos
	}
	return r.Pos
}

// RepairGroup reassigns primary/secondary flags and recomputes NH/HI/XS
// for a single canonical-qname group of alignment records, per spec.md
// §4.7. It does not mutate the input slice's order, but does mutate the
// Flags and AuxFields of the records it contains, and returns a new slice
// in the group's final output order.
func RepairGroup(group []*sam.Record, opts *Options) []*sam.Record {
	if len(group) == 0 {
		return group
	}

	sorted := make([]*sam.Record, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		aRole, bRole := roleOf(a), roleOf(b)
		if aRole != bRole {
			// ¬is_R1, ¬is_R2: R1 first, then R2, then other.
			return rolePriority(aRole) < rolePriority(bRole)
		}
		if at, bt := readid.RefID(a.Ref), readid.RefID(b.Ref); at != bt {
			return at < bt
		}
		if ap, bp := sortPos(a), sortPos(b); ap != bp {
			return ap < bp
		}
		if a.TempLen != b.TempLen {
			return a.TempLen < b.TempLen
		}
		return readid.HI(a) < readid.HI(b)
	})

	byRole := map[role][]int{}
	for i, r := range sorted {
		rl := roleOf(r)
		byRole[rl] = append(byRole[rl], i)
	}

	for _, idxs := range byRole {
		assignPrimary(sorted, idxs)
		recomputeTags(sorted, idxs)
	}

	finalSort(sorted, opts)
	return sorted
}

func rolePriority(r role) int {
	switch r {
	case roleR1:
		return 0
	case roleR2:
		return 1
	default:
		return 2
	}
}

// assignPrimary clears FSECONDARY on the best-MAPQ record among idxs and
// sets it on the rest.
func assignPrimary(records []*sam.Record, idxs []int) {
	best := idxs[0]
	for _, i := range idxs[1:] {
		if records[i].MapQ > records[best].MapQ {
			best = i
		}
	}
	for _, i := range idxs {
		if i == best {
			records[i].Flags &^= sam.Secondary
		} else {
			records[i].Flags |= sam.Secondary
		}
	}
}

// recomputeTags sets NH (role group size), HI (position within role, in
// the group's sorted order) and XS (second-best AS within the role) on
// every record in idxs.
func recomputeTags(records []*sam.Record, idxs []int) {
	nh := len(idxs)
	asValues := make([]int, 0, len(idxs))
	for i, idx := range idxs {
		setAux(records[idx], nhTag, nh)
		setAux(records[idx], hiTag, i)
		if v, ok := asValue(records[idx]); ok {
			asValues = append(asValues, v)
		}
	}
	if len(asValues) < 2 {
		return
	}
	sort.Sort(sort.Reverse(sort.IntSlice(asValues)))
	secondBest := asValues[1]
	for _, idx := range idxs {
		setAux(records[idx], xsTag, secondBest)
	}
}

// finalSort applies spec.md §4.7's last sentence: the rsem_sort ordering
// when requested, or the default ordering by the raw R1/R2 flag byte.
func finalSort(records []*sam.Record, opts *Options) {
	if opts != nil && opts.RSEMSort {
		sort.SliceStable(records, func(i, j int) bool {
			a, b := records[i], records[j]
			at, bt := readid.RefID(a.Ref), readid.RefID(b.Ref)
			if at != bt {
				return at < bt
			}
			aMin, aMax := minMax(a.Pos, a.MatePos)
			bMin, bMax := minMax(b.Pos, b.MatePos)
			if aMin != bMin {
				return aMin < bMin
			}
			if aMax != bMax {
				return aMax < bMax
			}
			return !patternCode(a) && patternCode(b)
		})
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		return int(records[i].Flags&(sam.Read1|sam.Read2)) < int(records[j].Flags&(sam.Read1|sam.Read2))
	})
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

// patternCode is spec.md §4.7's final tiebreak: true for an R1 record on
// the reverse strand, or a non-R1 record on the forward strand.
func patternCode(r *sam.Record) bool {
	reverse := r.Flags&sam.Reverse != 0
	if roleOf(r) == roleR1 {
		return reverse
	}
	return !reverse
}
