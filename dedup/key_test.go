package dedup

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestBuildKeyUnpaired(t *testing.T) {
	opts := &Options{ReadLengthBinning: true, Spliced: true}
	r := &sam.Record{Flags: sam.Reverse, Seq: sam.NewSeq(make([]byte, 36))}
	k := BuildKey(r, opts, true)
	assert.Equal(t, Key{Reversed: true, Spliced: true, ReadLen: 36, TemplateLen: 0}, k)
}

func TestBuildKeyReadLenBinningDisabled(t *testing.T) {
	opts := &Options{ReadLengthBinning: false}
	r := &sam.Record{Seq: sam.NewSeq(make([]byte, 36))}
	k := BuildKey(r, opts, false)
	assert.Equal(t, uint16(0), k.ReadLen)
}

func TestBuildKeyTemplateLen(t *testing.T) {
	r := &sam.Record{TempLen: 350}

	paired := BuildKey(r, &Options{Paired: true}, false)
	assert.Equal(t, int32(350), paired.TemplateLen)

	ignoreTLen := BuildKey(r, &Options{Paired: true, IgnoreTLen: true}, false)
	assert.Equal(t, int32(0), ignoreTLen.TemplateLen)

	unpaired := BuildKey(r, &Options{Paired: false}, false)
	assert.Equal(t, int32(0), unpaired.TemplateLen)
}

func TestKeyLessOrdering(t *testing.T) {
	a := Key{Reversed: false, Spliced: false, ReadLen: 10}
	b := Key{Reversed: false, Spliced: true, ReadLen: 1}
	c := Key{Reversed: true}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}
