// Package flagrepair reassigns primary/secondary flags and recomputes the
// NH/HI/XS auxiliary tags across groups of alignment records that share a
// canonical read name.
//
// This is the "external collaborator" pass from spec.md §4.7, elevated to a
// fully specified, linear-per-group operation: aligners that report multiple
// hits per read (STAR, bowtie2 -k, etc.) sometimes disagree on which hit is
// primary, or leave stale NH/HI/XS values after an upstream filter removed
// some alignments. Repair re-derives all three from the surviving records in
// each read-name group, without needing the original aligner's bookkeeping.
package flagrepair
