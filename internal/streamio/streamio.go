// Package streamio opens SAM/BAM alignment streams for the three
// command-line tools, dispatching on file extension the way
// encoding/bamprovider does, and wraps github.com/grailbio/base/file so "-"
// and remote paths work the same as local ones.
package streamio

import (
	"context"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// RecordReader is satisfied by both bam.Reader and sam.Reader.
type RecordReader interface {
	Read() (*sam.Record, error)
	Header() *sam.Header
}

// RecordWriter is satisfied by both bam.Writer and sam.Writer.
type RecordWriter interface {
	Write(*sam.Record) error
}

// OpenInput opens path (SAM or BAM, decided by extension; ".sam" or no
// recognized extension is read as SAM text) for reading, with threads
// decompression goroutines when the format is BAM.
func OpenInput(ctx context.Context, path string, threads int) (RecordReader, func() error, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "opening input", path)
	}
	r := f.Reader(ctx)
	closeFn := func() error { return f.Close(ctx) }

	if isBAM(path) {
		if threads < 1 {
			threads = 1
		}
		br, err := bam.NewReader(r, threads)
		if err != nil {
			closeFn()
			return nil, nil, errors.E(err, "reading BAM header", path)
		}
		return br, closeFn, nil
	}
	sr, err := sam.NewReader(r)
	if err != nil {
		closeFn()
		return nil, nil, errors.E(err, "reading SAM header", path)
	}
	return sr, closeFn, nil
}

// OpenOutput creates path for writing, carrying header h, with threads
// compression goroutines when the format is BAM. uncompressed requests BAM
// compression level 0, i.e. no compression (ignored for SAM, which is
// never compressed here).
func OpenOutput(ctx context.Context, path string, h *sam.Header, threads int, uncompressed bool) (RecordWriter, func() error, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "creating output", path)
	}
	w := f.Writer(ctx)
	closeFn := func() error { return f.Close(ctx) }

	if isBAM(path) {
		if threads < 1 {
			threads = 1
		}
		if uncompressed {
			bw, err := bam.NewWriterLevel(w, h, 0, threads)
			if err != nil {
				closeFn()
				return nil, nil, errors.E(err, "opening BAM writer", path)
			}
			return bw, closeFn, nil
		}
		bw, err := bam.NewWriter(w, h, threads)
		if err != nil {
			closeFn()
			return nil, nil, errors.E(err, "opening BAM writer", path)
		}
		return bw, closeFn, nil
	}
	sw, err := sam.NewWriter(w, h, sam.FlagDecimal)
	if err != nil {
		closeFn()
		return nil, nil, errors.E(err, "opening SAM writer", path)
	}
	return sw, closeFn, nil
}

// RequireCoordinateSorted returns an error unless h declares SO:coordinate,
// per spec.md §6's dedup input precondition.
func RequireCoordinateSorted(h *sam.Header) error {
	if h.SortOrder != sam.Coordinate {
		return errors.E("input is not coordinate-sorted (missing or wrong @HD SO: tag)")
	}
	return nil
}

func isBAM(path string) bool {
	if path == "-" {
		return false
	}
	return strings.HasSuffix(path, ".bam")
}
