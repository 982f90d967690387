// Package dedup implements streaming, position-bundled, UMI-aware
// duplicate collapse of a coordinate-sorted alignment stream, with
// mate-aware handling in paired mode.
//
// The design follows spec.md §4.4-§4.6: records are partitioned into
// per-position "bundles" keyed by orientation/splice/length (and, in
// paired mode, template length); within a bundle, reads sharing a UMI
// collapse to a single survivor via MAPQ-dominance-then-reservoir-sampling.
// Bundles are flushed once the stream cursor passes a 1000bp sliding
// horizon, keeping memory bounded without requiring the whole file to be
// sorted into RAM.
package dedup

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
)

// horizon is the sliding eviction window, in reference bases, past which a
// bundle position becomes eligible for flush.
const horizon = 1000

// RecordReader is satisfied by both biogo/hts/bam.Reader and
// biogo/hts/sam.Reader.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// RecordWriter is satisfied by both biogo/hts/bam.Writer and
// biogo/hts/sam.Writer.
type RecordWriter interface {
	Write(*sam.Record) error
}

// Driver runs the streaming deduplication pass described in spec.md §4.4.
type Driver struct {
	opts   *Options
	reader RecordReader
	writer RecordWriter
	sel    *selector

	bundles *bundleIndex
	mates   *mateIndex
	werr    errors.Once

	lastRef       int
	lastOutputPos int
	bamPos        int

	// Metrics, surfaced to the caller after Run for a log summary.
	RecordsSeen     uint64
	RecordsSkipped  uint64
	BundlesFlushed  uint64
	SurvivorsOutput uint64
}

// NewDriver constructs a Driver that reads alignment records from r and
// writes survivors to w.
func NewDriver(r RecordReader, w RecordWriter, opts *Options) *Driver {
	d := &Driver{
		opts:    opts,
		reader:  r,
		writer:  w,
		sel:     newSelector(opts.Seed),
		bundles: newBundleIndex(),
		lastRef: -1,
	}
	if opts.Paired {
		d.mates = newMateIndex()
	}
	return d
}

// Run drives the stream to completion, returning the first error
// encountered (either from the underlying reader/writer, or a "UMI not
// found" validation error per spec.md §4.4).
func (d *Driver) Run() error {
	for {
		rec, err := d.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		d.RecordsSeen++

		if rec.Flags&sam.Unmapped != 0 {
			d.RecordsSkipped++
			continue
		}

		if d.opts.Paired && rec.Flags&sam.Read2 != 0 {
			if d.mates.discardChimeric(rec, d.opts) {
				continue
			}
			d.mates.onRead2(rec, func(r1, r2 *sam.Record) {
				d.emit(r1)
				d.emit(r2)
			})
			continue
		}

		if d.opts.Paired && d.mates.discardChimeric(rec, d.opts) {
			continue
		}

		if err := d.process(rec); err != nil {
			return err
		}
	}

	d.flush(nil)
	if d.opts.Paired {
		d.mates.endOfStream(d.opts.UnpairedReads == "use", d.emit)
	}
	return d.werr.Err()
}

// process runs the sliding-horizon flush and bundle insertion for a single
// non-chimeric record. It is the shared step between Run's main loop and
// tests that need to interleave ingestion with bundle-index inspection.
func (d *Driver) process(rec *sam.Record) error {
	tid := refID(rec.Ref)
	start, pos, spliced := AnalyzeCigar(rec, d.opts.SoftClipThreshold)

	if tid != d.lastRef {
		d.flush(nil)
		d.lastOutputPos = 0
	} else if d.lastOutputPos+horizon < start {
		cursor := start
		d.flush(&cursor)
		d.lastOutputPos = start
	}
	if err := d.werr.Err(); err != nil {
		return err
	}
	d.lastRef = tid
	if pos > start {
		d.bamPos = pos
	} else {
		d.bamPos = start
	}

	umi, err := extractUMI(rec.Name)
	if err != nil {
		return err
	}
	key := BuildKey(rec, d.opts, spliced)
	d.insert(pos, key, umi, rec)
	return nil
}

func (d *Driver) insert(pos int, key Key, umi string, rec *sam.Record) {
	id := bundleID{pos: pos, key: key, umi: umi}
	entry, ok := d.bundles.get(id)
	if !ok {
		entry = newEntry(rec)
		d.bundles.insert(id, entry)
		if d.opts.Paired {
			d.mates.markCurrent(entry.survivor)
		}
		return
	}
	replaced, prior := d.sel.update(entry, rec)
	if replaced && d.opts.Paired {
		d.mates.unmarkCurrent(prior)
		d.mates.evictDanglingMate(prior)
		d.mates.markCurrent(entry.survivor)
	}
}

// flush emits every bundle position evictable relative to cursor (nil
// means end-of-stream: evict everything), in the globally monotone
// (pos, key) order spec.md §4.4 requires. Write errors are accumulated in
// d.werr and surfaced by the next Err() check in Run.
func (d *Driver) flush(cursor *int) {
	positions := d.bundles.evictablePositions(cursor, horizon)
	sort.Ints(positions)

	// A nil cursor means every resident position on the current reference
	// (or, at end of stream, on the whole file) is being evicted with no
	// residual -- every record that could ever update bam_pos has already
	// been seen, so the mate-index flush must not gate pairing on the last
	// read-1 position it happened to observe.
	flushBamPos := d.bamPos
	if cursor == nil {
		flushBamPos = math.MaxInt32
	}

	for _, p := range positions {
		keys := d.bundles.keysAt(p)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		for _, k := range keys {
			for _, entry := range d.bundles.umisAt(p, k) {
				d.BundlesFlushed++
				if d.opts.Paired {
					d.mates.flushSurvivor(entry.survivor, flushBamPos, d.opts.UnpairedReads == "use", d.emit)
				} else {
					d.emit(entry.survivor)
				}
			}
		}
	}
	for _, p := range positions {
		d.bundles.evict(p)
	}
}

func (d *Driver) emit(r *sam.Record) {
	d.SurvivorsOutput++
	if err := d.writer.Write(r); err != nil {
		d.werr.Set(errors.E(err, "dedup: write record"))
	}
}

func refID(ref *sam.Reference) int {
	if ref == nil {
		return -1
	}
	return ref.ID()
}

// extractUMI returns the substring of qname after the last '_', per
// spec.md §3/§6's UMI convention, or an error if no separator is present.
func extractUMI(qname string) (string, error) {
	idx := strings.LastIndexByte(qname, '_')
	if idx < 0 {
		return "", fmt.Errorf("dedup: UMI not found in read name %q", qname)
	}
	return qname[idx+1:], nil
}
