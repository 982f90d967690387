// Package metrics holds the run-end summary counters the three
// command-line tools log on exit, following the plain counter-struct style
// of markduplicates.Metrics.
package metrics

import "fmt"

// Dedup summarizes a dedup.Driver run.
type Dedup struct {
	RecordsSeen     uint64
	RecordsSkipped  uint64
	BundlesFlushed  uint64
	SurvivorsOutput uint64
}

func (m Dedup) String() string {
	return fmt.Sprintf("records_seen=%d records_skipped=%d bundles_flushed=%d survivors_output=%d",
		m.RecordsSeen, m.RecordsSkipped, m.BundlesFlushed, m.SurvivorsOutput)
}

// Demux summarizes a demultiplex run.
type Demux struct {
	RecordsSeen   uint64
	RecordsRouted uint64
	Skipped       uint64
	Undetermined  uint64
}

func (m Demux) String() string {
	return fmt.Sprintf("records_seen=%d records_routed=%d skipped_lane=%d undetermined=%d",
		m.RecordsSeen, m.RecordsRouted, m.Skipped, m.Undetermined)
}

// FlagRepair summarizes a fix_flags run.
type FlagRepair struct {
	RecordsSeen uint64
	GroupsSeen  uint64
}

func (m FlagRepair) String() string {
	return fmt.Sprintf("records_seen=%d groups_seen=%d", m.RecordsSeen, m.GroupsSeen)
}
