package flagrepair

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chr1, _ = sam.NewReference("chr1", "", "", 10000, nil, nil)
var chr2, _ = sam.NewReference("chr2", "", "", 10000, nil, nil)
var _, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2}) // assigns chr1.ID()=0, chr2.ID()=1

func rec(name string, flags sam.Flags, ref *sam.Reference, pos int, matePos, tempLen int, mapq byte, as int) *sam.Record {
	r := &sam.Record{Name: name, Flags: flags, Ref: ref, Pos: pos, MatePos: matePos, TempLen: tempLen, MapQ: mapq}
	if ref != nil {
		r.MateRef = ref
	}
	aux, err := sam.NewAux(sam.NewTag("AS"), as)
	if err != nil {
		panic(err)
	}
	r.AuxFields = append(r.AuxFields, aux)
	return r
}

func TestCanonicalNameTruncatesAtWhitespace(t *testing.T) {
	assert.Equal(t, "read1", CanonicalName("read1 comment field"))
	assert.Equal(t, "read1", CanonicalName("read1"))
}

func TestGroupPreservesFirstAppearanceOrder(t *testing.T) {
	a1 := rec("a", 0, chr1, 100, 0, 0, 30, 10)
	b1 := rec("b", 0, chr1, 200, 0, 0, 30, 10)
	a2 := rec("a", 0, chr1, 100, 0, 0, 20, 8)

	groups := Group([]*sam.Record{a1, b1, a2})
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, "a", groups[0][0].Name)
	assert.Len(t, groups[1], 1)
	assert.Equal(t, "b", groups[1][0].Name)
}

// A multi-hit paired group: two R1/R2 alignment pairs at different loci,
// with the second locus scoring higher. The best-scoring pair's R1 and R2
// become primary; the rest become secondary, and NH/HI/XS are recomputed.
func TestRepairGroupPairedMultiHit(t *testing.T) {
	r1a := rec("q", sam.Paired|sam.Read1|sam.Secondary, chr1, 100, 500, 450, 20, 80)
	r2a := rec("q", sam.Paired|sam.Read2|sam.Reverse, chr1, 500, 100, -450, 20, 80)
	r1b := rec("q", sam.Paired|sam.Read1, chr2, 300, 700, 450, 40, 95)
	r2b := rec("q", sam.Paired|sam.Read2|sam.Reverse|sam.Secondary, chr2, 700, 300, -450, 40, 95)

	out := RepairGroup([]*sam.Record{r1a, r2a, r1b, r2b}, &Options{})
	require.Len(t, out, 4)

	var r1s, r2s []*sam.Record
	for _, r := range out {
		switch roleOf(r) {
		case roleR1:
			r1s = append(r1s, r)
		case roleR2:
			r2s = append(r2s, r)
		}
	}
	require.Len(t, r1s, 2)
	require.Len(t, r2s, 2)

	for _, r := range r1s {
		if r.Ref == chr2 {
			assert.False(t, r.Flags&sam.Secondary != 0, "best R1 (chr2, mapq 40) must be primary")
		} else {
			assert.True(t, r.Flags&sam.Secondary != 0, "worse R1 (chr1, mapq 20) must be secondary")
		}
		nh := r.AuxFields.Get(nhTag)
		require.NotNil(t, nh)
		assert.EqualValues(t, 2, nh.Value())
	}
	for _, r := range r2s {
		if r.Ref == chr2 {
			assert.False(t, r.Flags&sam.Secondary != 0, "best R2 (chr2, mapq 40) must be primary")
		} else {
			assert.True(t, r.Flags&sam.Secondary != 0, "worse R2 (chr1, mapq 20) must be secondary")
		}
	}

	xs := out[0].AuxFields.Get(xsTag)
	require.NotNil(t, xs)
	assert.EqualValues(t, 80, xs.Value())
}

// When a group has no R1/R2 records (unpaired multi-mapper), the best
// "other"-role record becomes primary.
func TestRepairGroupUnpairedBestOther(t *testing.T) {
	a := rec("q", sam.Secondary, chr1, 100, 0, 0, 10, 50)
	b := rec("q", 0, chr1, 200, 0, 0, 40, 90)
	c := rec("q", sam.Secondary, chr1, 300, 0, 0, 20, 60)

	out := RepairGroup([]*sam.Record{a, b, c}, &Options{})
	require.Len(t, out, 3)

	var primaries int
	for _, r := range out {
		if r.Flags&sam.Secondary == 0 {
			primaries++
			assert.Equal(t, 200, r.Pos)
		}
		nh := r.AuxFields.Get(nhTag)
		require.NotNil(t, nh)
		assert.EqualValues(t, 3, nh.Value())
	}
	assert.Equal(t, 1, primaries)
}

// HI is reassigned to the record's 0-based position within its role, in
// the group's sorted order.
func TestRepairGroupHIPositionWithinRole(t *testing.T) {
	a := rec("q", 0, chr1, 300, 0, 0, 10, 10)
	b := rec("q", 0, chr1, 100, 0, 0, 10, 20)

	out := RepairGroup([]*sam.Record{a, b}, &Options{})
	require.Len(t, out, 2)
	assert.Equal(t, 100, out[0].Pos)
	hi0 := out[0].AuxFields.Get(hiTag)
	hi1 := out[1].AuxFields.Get(hiTag)
	require.NotNil(t, hi0)
	require.NotNil(t, hi1)
	assert.EqualValues(t, 0, hi0.Value())
	assert.EqualValues(t, 1, hi1.Value())
}

// Default final sort orders records by the raw R1/R2 flag byte: unpaired,
// then R1, then R2.
func TestFinalSortDefaultOrdersByReadFlagByte(t *testing.T) {
	r2 := rec("q", sam.Paired|sam.Read2, chr1, 500, 100, -400, 30, 10)
	r1 := rec("q", sam.Paired|sam.Read1, chr1, 100, 500, 400, 30, 10)

	out := RepairGroup([]*sam.Record{r2, r1}, &Options{})
	require.Len(t, out, 2)
	assert.Equal(t, roleR1, roleOf(out[0]))
	assert.Equal(t, roleR2, roleOf(out[1]))
}

// rsem_sort orders by (tid, min(pos,mpos), max(pos,mpos), pattern code):
// a multi-hit group's chr1 locus must sort before its chr2 locus.
func TestFinalSortRSEMOrdersByLocus(t *testing.T) {
	r1a := rec("q", sam.Paired|sam.Read1, chr2, 300, 700, 450, 40, 95)
	r2a := rec("q", sam.Paired|sam.Read2|sam.Reverse, chr2, 700, 300, -450, 40, 95)
	r1b := rec("q", sam.Paired|sam.Read1|sam.Secondary, chr1, 100, 500, 450, 20, 80)
	r2b := rec("q", sam.Paired|sam.Read2|sam.Reverse|sam.Secondary, chr1, 500, 100, -450, 20, 80)

	out := RepairGroup([]*sam.Record{r1a, r2a, r1b, r2b}, &Options{RSEMSort: true})
	require.Len(t, out, 4)
	for _, r := range out[:2] {
		assert.Equal(t, chr1, r.Ref)
	}
	for _, r := range out[2:] {
		assert.Equal(t, chr2, r.Ref)
	}
}

// Running Repair twice over its own output is a no-op (spec.md §8 property 8).
func TestRepairIsIdempotent(t *testing.T) {
	records := []*sam.Record{
		rec("q1", sam.Paired|sam.Read1|sam.Secondary, chr1, 100, 500, 450, 20, 80),
		rec("q1", sam.Paired|sam.Read2|sam.Reverse, chr1, 500, 100, -450, 20, 80),
		rec("q1", sam.Paired|sam.Read1, chr2, 300, 700, 450, 40, 95),
		rec("q1", sam.Paired|sam.Read2|sam.Reverse|sam.Secondary, chr2, 700, 300, -450, 40, 95),
	}
	opts := &Options{}
	once := Repair(records, opts)
	// Repair mutates the records in place, so capture the first pass's
	// results before the second pass runs over the same records.
	onceFlags := make([]sam.Flags, len(once))
	onceNH := make([]interface{}, len(once))
	onceHI := make([]interface{}, len(once))
	for i, r := range once {
		onceFlags[i] = r.Flags
		onceNH[i] = r.AuxFields.Get(nhTag).Value()
		onceHI[i] = r.AuxFields.Get(hiTag).Value()
	}
	twice := Repair(once, opts)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, onceFlags[i], twice[i].Flags)
		assert.Equal(t, onceNH[i], twice[i].AuxFields.Get(nhTag).Value())
		assert.Equal(t, onceHI[i], twice[i].AuxFields.Get(hiTag).Value())
	}
}
