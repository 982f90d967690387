package dedup

import (
	"io"

	"github.com/biogo/hts/sam"
)

func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, mapq byte, cigar sam.Cigar) *sam.Record {
	return &sam.Record{
		Name:  name,
		Ref:   ref,
		Pos:   pos,
		MapQ:  mapq,
		Flags: flags,
		Cigar: cigar,
	}
}

func newPairedRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, mapq byte,
	mateRef *sam.Reference, matePos, tempLen int, cigar sam.Cigar) *sam.Record {
	r := newRecord(name, ref, pos, flags, mapq, cigar)
	r.MateRef = mateRef
	r.MatePos = matePos
	r.TempLen = tempLen
	return r
}

// fakeWriter records every record written to it, in order.
type fakeWriter struct {
	records []*sam.Record
}

func (w *fakeWriter) Write(r *sam.Record) error {
	w.records = append(w.records, r)
	return nil
}

// sliceReader implements RecordReader over a fixed slice of records.
type sliceReader struct {
	recs []*sam.Record
	i    int
}

func (r *sliceReader) Read() (*sam.Record, error) {
	if r.i >= len(r.recs) {
		return nil, io.EOF
	}
	rec := r.recs[r.i]
	r.i++
	return rec, nil
}
