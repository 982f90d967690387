// Package dedup implements UMI-aware deduplication of coordinate-sorted
// alignment streams.
//
// # Pipeline
//
// A Driver reads records in arrival order from a RecordReader (normally a
// biogo/hts bam.Reader or sam.Reader). Unmapped records are skipped. In
// paired mode, read-2 records are routed to the mate index instead of the
// position-bundle map (mate.go); everything else is bundled by (pos, key)
// and deduplicated within each (pos, key, umi) triple (bundle.go,
// selector.go).
//
// The stream cursor slides forward as records arrive; once it passes a
// bundle position by more than 1000 reference bases, that position's
// bundles are flushed in (pos, key) order and evicted, bounding memory to
// the live window (driver.go).
//
// # Why flat maps with a secondary index
//
// The reference tool keeps nested maps (pos -> key -> umi -> entry). Go's
// map-of-maps requires an extra allocation and lookup at every level and
// doesn't support the partial iteration ("all umis at this (pos,key)")
// dedup needs without walking two map layers; a flat map keyed by the full
// (pos, key, umi) tuple plus a pos -> set(id) secondary index for eviction
// gives O(1) insert/lookup and an O(live positions) eviction scan, which is
// the same asymptotic behavior with less Go-specific overhead.
package dedup
