package dedup

import "github.com/biogo/hts/sam"

// Key is the read-group bundling key: reads sharing a position collapse
// into distinct bundles by orientation, splicing, read length, and (in
// paired mode) template length.
//
// Key must remain comparable so it can be used directly as a map key, and
// orderable on the stated field order so bundle flush can sort
// deterministically.
type Key struct {
	Reversed    bool
	Spliced     bool
	ReadLen     uint16
	TemplateLen int32
}

// Less orders keys lexicographically on (Reversed, Spliced, ReadLen,
// TemplateLen), matching the flush-time sort spec.
func (k Key) Less(o Key) bool {
	if k.Reversed != o.Reversed {
		return !k.Reversed && o.Reversed
	}
	if k.Spliced != o.Spliced {
		return !k.Spliced && o.Spliced
	}
	if k.ReadLen != o.ReadLen {
		return k.ReadLen < o.ReadLen
	}
	return k.TemplateLen < o.TemplateLen
}

// Options configures read-group key construction and the survivor
// selector/driver built on top of it.
type Options struct {
	// ReadLengthBinning includes the read's query length in the bundling
	// key. When false, ReadLen is always 0.
	ReadLengthBinning bool
	// Spliced includes a computed splice flag in the bundling key.
	Spliced bool
	// Paired enables mate-aware dedup, including TemplateLen in the key
	// (unless IgnoreTLen is set) and driving the mate index.
	Paired bool
	// IgnoreTLen forces TemplateLen to 0 even in paired mode.
	IgnoreTLen bool
	// SoftClipThreshold is the soft-clip length (trailing for forward
	// reads, leading for reverse reads) above which a read is considered
	// spliced (see AnalyzeCigar).
	SoftClipThreshold int
	// Seed deterministically seeds the reservoir-sampling PRNG.
	Seed int64
	// ChimericPairs selects "use" or "discard" handling of cross-reference
	// mate pairs.
	ChimericPairs string
	// UnpairedReads selects "use" or "discard" handling of survivors whose
	// mate never arrives.
	UnpairedReads string
}

// BuildKey computes the bundling key for r given the analyzer's spliced
// flag and the configured options.
func BuildKey(r *sam.Record, opts *Options, analyzerSpliced bool) Key {
	var readLen uint16
	if opts.ReadLengthBinning {
		readLen = uint16(r.Seq.Length)
	}
	var tlen int32
	if opts.Paired && !opts.IgnoreTLen {
		tlen = int32(r.TempLen)
	}
	return Key{
		Reversed:    r.Flags&sam.Reverse != 0,
		Spliced:     opts.Spliced && analyzerSpliced,
		ReadLen:     readLen,
		TemplateLen: tlen,
	}
}
