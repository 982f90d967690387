// Package demux implements the sample-index table, FASTQ router, and
// backpressured writer pool for dual-index demultiplexing, per spec.md
// §4.8/§4.9: barcode extraction from FASTQ headers, Hamming
// nearest-neighbor lookup against a per-lane index table, and fan-out of
// matched records to per-sample gzip output files.
package demux
