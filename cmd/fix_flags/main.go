/*
  fix_flags repairs secondary/primary flag assignments and recomputes
  NH/HI/XS auxiliary tags across each group of records sharing a read name.
  For more information, see github.com/grailbio/fumitools/flagrepair/doc.go
*/
package main

import (
	"flag"
	"io"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/fumitools/flagrepair"
	"github.com/grailbio/fumitools/internal/metrics"
	"github.com/grailbio/fumitools/internal/streamio"
)

var (
	inputPath        = flag.String("input", "", "Input SAM/BAM filename, or '-' for stdin SAM")
	outputPath       = flag.String("output", "", "Output SAM/BAM filename, or '-' for stdout SAM")
	sortAdjacentPairs = flag.Bool("sort-adjacent-pairs", false, "order each group's final output by (tid, locus, pattern code) instead of the default R1/R2 byte order")
	inputThreads     = flag.Int("input-threads", 1, "number of BAM decompression goroutines")
	outputThreads    = flag.Int("output-threads", 1, "number of BAM compression goroutines")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
	}
	if *inputPath == "" {
		log.Fatalf("--input is required")
	}
	if *outputPath == "" {
		log.Fatalf("--output is required")
	}

	ctx := vcontext.Background()

	reader, closeIn, err := streamio.OpenInput(ctx, *inputPath, *inputThreads)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeIn()

	writer, closeOut, err := streamio.OpenOutput(ctx, *outputPath, reader.Header(), *outputThreads, false)
	if err != nil {
		log.Fatalf("%v", err)
	}

	opts := &flagrepair.Options{RSEMSort: *sortAdjacentPairs}
	m := metrics.FlagRepair{}

	// fix_flags operates per read-name group, which requires looking ahead
	// across consecutive same-name records; groupReader buffers exactly one
	// group at a time so memory use stays proportional to group size, not
	// file size.
	gr := newGroupReader(reader)
	for {
		group, err := gr.next()
		if err != nil {
			log.Fatalf("fix_flags: %v", err)
		}
		if group == nil {
			break
		}
		m.RecordsSeen += uint64(len(group))
		m.GroupsSeen++
		for _, r := range flagrepair.RepairGroup(group, opts) {
			if err := writer.Write(r); err != nil {
				log.Fatalf("fix_flags: write record: %v", err)
			}
		}
	}

	if err := closeOut(); err != nil {
		log.Fatalf("fix_flags: %v", err)
	}
	log.Debug.Printf("fix_flags finished: %s", m)
}

// groupReader buffers consecutive records sharing a canonical qname,
// mirroring flagrepair.Group but over a stream instead of a fully
// materialized slice. It assumes the input is read-name-grouped (every
// hit of a given read is contiguous), which holds for aligner output
// ahead of coordinate sorting.
type groupReader struct {
	r       streamio.RecordReader
	pending *sam.Record
	done    bool
}

func newGroupReader(r streamio.RecordReader) *groupReader {
	return &groupReader{r: r}
}

func (g *groupReader) next() ([]*sam.Record, error) {
	if g.done {
		return nil, nil
	}
	var group []*sam.Record
	if g.pending != nil {
		group = append(group, g.pending)
		g.pending = nil
	}
	for {
		rec, err := g.r.Read()
		if err == io.EOF {
			g.done = true
			break
		}
		if err != nil {
			g.done = true
			return nil, err
		}
		if len(group) == 0 {
			group = append(group, rec)
			continue
		}
		if flagrepair.CanonicalName(rec.Name) == flagrepair.CanonicalName(group[0].Name) {
			group = append(group, rec)
			continue
		}
		g.pending = rec
		break
	}
	if len(group) == 0 {
		return nil, nil
	}
	return group, nil
}
