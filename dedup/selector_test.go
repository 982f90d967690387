package dedup

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestSelectorMAPQDominance(t *testing.T) {
	sel := newSelector(1)
	entry := newEntry(newRecord("a_AAA", nil, 100, 0, 20, nil))

	replaced, _ := sel.update(entry, newRecord("b_AAA", nil, 100, 0, 30, nil))
	assert.True(t, replaced)
	assert.EqualValues(t, 30, entry.survivor.MapQ)

	replaced, _ = sel.update(entry, newRecord("c_AAA", nil, 100, 0, 10, nil))
	assert.False(t, replaced)
	assert.EqualValues(t, 30, entry.survivor.MapQ)
	assert.EqualValues(t, 3, entry.multiplicity)
}

// TestSelectorUniformReservoir checks that, across many seeds, each of N
// equal-MAPQ candidates survives with empirical probability close to 1/N
// (spec.md §8 property 3).
func TestSelectorUniformReservoir(t *testing.T) {
	const n = 4
	const trials = 20000
	counts := make([]int, n)

	for seed := int64(0); seed < trials; seed++ {
		sel := newSelector(seed)
		entry := newEntry(newRecord("r0_AAA", nil, 100, 0, 20, nil))
		survivorIdx := 0
		for i := 1; i < n; i++ {
			replaced, _ := sel.update(entry, newRecord("r_AAA", nil, 100, 0, 20, nil))
			if replaced {
				survivorIdx = i
			}
		}
		counts[survivorIdx]++
	}

	for i, c := range counts {
		frac := float64(c) / float64(trials)
		assert.InDeltaf(t, 1.0/float64(n), frac, 0.03, "candidate %d survived %.4f of trials", i, frac)
	}
}

func TestSelectorSeedDeterminism(t *testing.T) {
	run := func(seed int64) string {
		sel := newSelector(seed)
		entry := newEntry(newRecord("a_AAA", nil, 100, 0, 20, nil))
		sel.update(entry, newRecord("b_AAA", nil, 100, 0, 20, nil))
		sel.update(entry, newRecord("c_AAA", nil, 100, 0, 20, nil))
		return entry.survivor.Name
	}
	assert.Equal(t, run(42), run(42))
}
