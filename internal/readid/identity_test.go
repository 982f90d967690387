package readid

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfMateInvertsFields(t *testing.T) {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1000, nil, nil)
	require.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	r := &sam.Record{Name: "q1", Ref: chr1, Pos: 100, MateRef: chr2, MatePos: 500, TempLen: 400}

	mate := OfMate(r)
	assert.Equal(t, "q1", mate.QName)
	assert.Equal(t, RefID(chr2), mate.TID)
	assert.Equal(t, 500, mate.Pos)
	assert.Equal(t, RefID(chr1), mate.MateTID)
	assert.Equal(t, 100, mate.MatePos)
	assert.Equal(t, -400, mate.ISize)
}

func TestHashIsDeterministicAndDiscriminates(t *testing.T) {
	a := Identity{QName: "q1", TID: 0, Pos: 100, MateTID: 1, MatePos: 500, ISize: 400, HI: 0}
	b := a
	assert.Equal(t, a.Hash(), b.Hash())

	c := a
	c.Pos = 101
	assert.NotEqual(t, a.Hash(), c.Hash())
}
