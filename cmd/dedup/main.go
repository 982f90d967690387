/*
  dedup performs streaming, UMI-aware deduplication of a coordinate-sorted
  alignment stream, with mate-aware handling in --paired mode. For more
  information, see github.com/grailbio/fumitools/dedup/doc.go
*/
package main

import (
	"flag"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/fumitools/dedup"
	"github.com/grailbio/fumitools/internal/metrics"
	"github.com/grailbio/fumitools/internal/streamio"
)

var (
	inputPath     = flag.String("input", "", "Input SAM/BAM filename, or '-' for stdin SAM")
	outputPath    = flag.String("output", "", "Output SAM/BAM filename, or '-' for stdout SAM")
	startOnly     = flag.Bool("start-only", false, "disable read-length binning in the bundling key")
	paired        = flag.Bool("paired", false, "enable mate-aware dedup")
	chimericPairs = flag.String("chimeric-pairs", "use", "handling of cross-reference mate pairs: 'use' or 'discard'")
	unpairedReads = flag.String("unpaired-reads", "use", "handling of survivors whose mate never arrives: 'use' or 'discard'")
	uncompressed  = flag.Bool("uncompressed", false, "write uncompressed BAM instead of the default compression level")
	seed          = flag.Int64("seed", 0, "PRNG seed for reservoir-sampling ties")
	inputThreads  = flag.Int("input-threads", 1, "number of BAM decompression goroutines")
	outputThreads = flag.Int("output-threads", 1, "number of BAM compression goroutines")
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
	if *chimericPairs != "use" && *chimericPairs != "discard" {
		log.Fatalf("--chimeric-pairs must be 'use' or 'discard', got %q", *chimericPairs)
	}
	if *unpairedReads != "use" && *unpairedReads != "discard" {
		log.Fatalf("--unpaired-reads must be 'use' or 'discard', got %q", *unpairedReads)
	}

	ctx := vcontext.Background()

	reader, closeIn, err := streamio.OpenInput(ctx, *inputPath, *inputThreads)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeIn()

	if err := streamio.RequireCoordinateSorted(reader.Header()); err != nil {
		log.Fatalf("%v", err)
	}

	writer, closeOut, err := streamio.OpenOutput(ctx, *outputPath, reader.Header(), *outputThreads, *uncompressed)
	if err != nil {
		log.Fatalf("%v", err)
	}

	opts := &dedup.Options{
		ReadLengthBinning: !*startOnly,
		Spliced:           true,
		Paired:            *paired,
		Seed:              *seed,
		ChimericPairs:     *chimericPairs,
		UnpairedReads:     *unpairedReads,
	}

	driver := dedup.NewDriver(reader, writer, opts)
	runErr := driver.Run()

	if err := closeOut(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		log.Fatalf("dedup: %v", runErr)
	}

	m := metrics.Dedup{
		RecordsSeen:     driver.RecordsSeen,
		RecordsSkipped:  driver.RecordsSkipped,
		BundlesFlushed:  driver.BundlesFlushed,
		SurvivorsOutput: driver.SurvivorsOutput,
	}
	log.Debug.Printf("dedup finished: %s", m)
}
