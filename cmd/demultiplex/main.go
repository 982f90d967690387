/*
  demultiplex routes FASTQ records into per-sample output files based on
  dual-index barcodes embedded in read headers, with mismatch-tolerant
  lookup. For more information, see github.com/grailbio/fumitools/demux/doc.go
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/fumitools/demux"
	"github.com/grailbio/fumitools/encoding/fastq"
	"github.com/grailbio/fumitools/internal/metrics"
)

// laneFlag accumulates repeated --lane N occurrences into a []int.
type laneFlag struct{ values []int }

func (l *laneFlag) String() string {
	if l == nil || len(l.values) == 0 {
		return ""
	}
	parts := make([]string, len(l.values))
	for i, v := range l.values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *laneFlag) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid --lane value %q: %w", s, err)
	}
	l.values = append(l.values, n)
	return nil
}

var (
	inputPath  = flag.String("input", "", "Input FASTQ filename (plain or gzip)")
	sheetPath  = flag.String("sample-sheet", "", "Illumina sample sheet filename")
	outputPath = flag.String("output", "", "Output filename pattern (%i Sample_ID, %s Sample_Name, %l zero-padded lane)")
	maxErrors  = flag.Int("max-errors", 1, "per-index mismatch tolerance")
	formatUMI  = flag.Bool("format-umi", false, "extract and append the UMI to each output read's header")
	tagUMI     = flag.Bool("tag-umi", false, "use the ':FUMI|<UMI>|' header tag instead of the default '_<UMI>' suffix (implies --format-umi)")
	threads    = flag.Int("threads", 1, "number of writer-pool worker goroutines")
	lanes      laneFlag
)

func init() {
	flag.Var(&lanes, "lane", "restrict the sample sheet to this lane (repeatable)")
}

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
	if *sheetPath == "" {
		log.Fatalf("--sample-sheet is required")
	}
	if *outputPath == "" {
		log.Fatalf("--output is required")
	}

	ctx := vcontext.Background()

	sheetFile, err := file.Open(ctx, *sheetPath)
	if err != nil {
		log.Fatalf("opening sample sheet: %v", err)
	}
	table, err := demux.ParseSampleSheet(sheetFile.Reader(ctx), demux.ParseOptions{
		OutputPattern: *outputPath,
		MaxErrors:     *maxErrors,
		Lanes:         lanes.values,
	})
	sheetFile.Close(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	inputFile, err := file.Open(ctx, *inputPath)
	if err != nil {
		log.Fatalf("opening input: %v", err)
	}
	defer inputFile.Close(ctx)

	fr, err := openFastqReader(inputFile.Reader(ctx))
	if err != nil {
		log.Fatalf("opening FASTQ stream: %v", err)
	}

	pool := demux.NewPool(ctx, *threads)
	routerOpts := demux.RouterOptions{FormatUMI: *formatUMI || *tagUMI, TagUMI: *tagUMI}

	m := metrics.Demux{}
	var r fastq.Read
	sc := fastq.NewScanner(fr, fastq.All)
	for sc.Scan(&r) {
		m.RecordsSeen++
		rec := r // the pool retains the serialized bytes, not r itself
		lane, pos, skipped, err := demux.Route(&rec, table, routerOpts)
		if err != nil {
			log.Fatalf("demultiplex: %v", err)
		}
		if skipped {
			m.Skipped++
			continue
		}
		if pos == table.UndeterminedPos(lane) {
			m.Undetermined++
		}
		m.RecordsRouted++
		pool.Enqueue(pos, table.OutputPath(lane, pos), demux.Serialize(&rec))
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("demultiplex: reading FASTQ: %v", err)
	}

	if err := pool.Close(); err != nil {
		log.Fatalf("demultiplex: %v", err)
	}
	log.Debug.Printf("demultiplex finished: %s", m)
}

// openFastqReader wraps r in a gzip reader when its first bytes carry the
// gzip magic number, else returns it unwrapped, so plain and gzip FASTQ
// inputs share one code path.
func openFastqReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}
