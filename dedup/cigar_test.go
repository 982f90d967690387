package dedup

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzeCigarForward(t *testing.T) {
	r := &sam.Record{
		Pos: 100,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarSoftClipped, 5),
			sam.NewCigarOp(sam.CigarMatch, 50),
		},
	}
	start, pos, spliced := AnalyzeCigar(r, 10)
	assert.Equal(t, 95, start)
	assert.Equal(t, 95, pos)
	assert.False(t, spliced)
}

func TestAnalyzeCigarForwardSplicedByN(t *testing.T) {
	r := &sam.Record{
		Pos: 100,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarMatch, 20),
			sam.NewCigarOp(sam.CigarSkipped, 100),
			sam.NewCigarOp(sam.CigarMatch, 30),
		},
	}
	_, _, spliced := AnalyzeCigar(r, 10)
	assert.True(t, spliced)
}

func TestAnalyzeCigarForwardTrailingSoftClipAboveThreshold(t *testing.T) {
	r := &sam.Record{
		Pos: 100,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarMatch, 40),
			sam.NewCigarOp(sam.CigarSoftClipped, 20),
		},
	}
	_, _, spliced := AnalyzeCigar(r, 10)
	assert.True(t, spliced)

	_, _, notSpliced := AnalyzeCigar(r, 30)
	assert.False(t, notSpliced)
}

func TestAnalyzeCigarReverse(t *testing.T) {
	r := &sam.Record{
		Pos:   100,
		Flags: sam.Reverse,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarMatch, 50),
			sam.NewCigarOp(sam.CigarSoftClipped, 5),
		},
	}
	start, pos, spliced := AnalyzeCigar(r, 10)
	assert.Equal(t, 100, start)
	assert.Equal(t, 155, pos) // endpos (150) + trailing soft clip (5)
	assert.False(t, spliced)
}

func TestAnalyzeCigarReverseLeadingSoftClipAboveThreshold(t *testing.T) {
	r := &sam.Record{
		Pos:   100,
		Flags: sam.Reverse,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarSoftClipped, 20),
			sam.NewCigarOp(sam.CigarMatch, 50),
		},
	}
	_, _, spliced := AnalyzeCigar(r, 10)
	assert.True(t, spliced)
}
