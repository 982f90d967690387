package demux

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// laneTable holds the parsed (i7, i5, output) triples for one lane. The
// "Undetermined" sink is not stored among these parallel slices -- it is an
// implicit position one past the end, resolved via undeterminedPath.
type laneTable struct {
	i7, i5               []string
	sampleID, sampleName []string
	outputPath           []string
	undeterminedPath     string
	i7Len, i5Len         int
}

// Table is a parsed, per-lane sample-index lookup table built from an
// Illumina sample sheet, per spec.md §4.8.
type Table struct {
	lanes     map[int]*laneTable
	maxErrors int
}

// ParseOptions controls how ParseSampleSheet resolves lane membership and
// output filenames.
type ParseOptions struct {
	// OutputPattern is the output filename pattern: %i (Sample_ID), %s
	// (Sample_Name), %l (zero-padded 3-digit lane). %l is mandatory; at
	// least one of %i/%s is required.
	OutputPattern string
	// MaxErrors is the per-index mismatch tolerance used both for the
	// ambiguity check (at 2*MaxErrors) and FindIndices (at MaxErrors).
	MaxErrors int
	// Lanes restricts (and takes precedence over) the sheet's own Lane
	// column: a row with no lane is replicated across every entry here; a
	// row with its own lane is kept only if that lane appears here. Empty
	// means every row must carry its own Lane value.
	Lanes []int
}

// ParseSampleSheet parses an Illumina-format sample sheet (CSV, optionally
// preceded by non-[Data] preamble lines) per spec.md §4.8's construction
// steps, including the per-lane ambiguity check.
func ParseSampleSheet(r io.Reader, opts ParseOptions) (*Table, error) {
	if !strings.Contains(opts.OutputPattern, "%l") {
		return nil, fmt.Errorf("demux: output pattern %q is missing mandatory %%l placeholder", opts.OutputPattern)
	}
	if !strings.Contains(opts.OutputPattern, "%i") && !strings.Contains(opts.OutputPattern, "%s") {
		return nil, fmt.Errorf("demux: output pattern %q needs at least one of %%i or %%s", opts.OutputPattern)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var lines []string
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("demux: reading sample sheet: %w", err)
	}

	// A sample sheet may carry an arbitrary [Header]/[Settings] preamble
	// ahead of the data table; when a [Data] marker is present, only the
	// lines after it are the CSV table. Its absence means the whole file
	// is the table, starting at line 1.
	start := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "[Data]") {
			start = i + 1
			break
		}
	}
	lines = lines[start:]
	if len(lines) == 0 {
		return nil, fmt.Errorf("demux: sample sheet has no header row")
	}

	header := splitCSV(lines[0])
	raw := map[int][]csvRow{}
	for _, line := range lines[1:] {
		fields := splitCSV(line)
		row, err := parseRow(header, fields)
		if err != nil {
			return nil, fmt.Errorf("demux: %w", err)
		}
		lanes, err := resolveLanes(row, opts.Lanes)
		if err != nil {
			return nil, fmt.Errorf("demux: %w", err)
		}
		for _, l := range lanes {
			raw[l] = append(raw[l], row)
		}
	}

	t := &Table{lanes: map[int]*laneTable{}, maxErrors: opts.MaxErrors}
	for lane, rows := range raw {
		lt := &laneTable{}
		for _, row := range rows {
			lt.i7 = append(lt.i7, row.i7)
			lt.i5 = append(lt.i5, row.i5)
			lt.sampleID = append(lt.sampleID, row.sampleID)
			lt.sampleName = append(lt.sampleName, row.sampleName)
		}
		if len(lt.i7) == 0 {
			continue
		}
		lt.i7Len = len(lt.i7[0])
		for _, s := range lt.i7 {
			if len(s) != lt.i7Len {
				return nil, fmt.Errorf("demux: lane %d: not all i7 indices have the same length", lane)
			}
		}
		lt.i5Len = len(lt.i5[0])
		for _, s := range lt.i5 {
			if len(s) != lt.i5Len {
				return nil, fmt.Errorf("demux: lane %d: not all i5 indices have the same length", lane)
			}
		}
		if err := checkAmbiguity(lane, "i7", lt.i7, 2*opts.MaxErrors); err != nil {
			return nil, err
		}
		if err := checkAmbiguity(lane, "i5", lt.i5, 2*opts.MaxErrors); err != nil {
			return nil, err
		}

		for i := range lt.i7 {
			lt.outputPath = append(lt.outputPath, resolvePattern(opts.OutputPattern, lt.sampleID[i], lt.sampleName[i], lane))
		}
		lt.undeterminedPath = resolvePattern(opts.OutputPattern, "0", "Undetermined", lane)

		t.lanes[lane] = lt
	}
	return t, nil
}

type csvRow struct {
	sampleID, sampleName, i7, i5 string
	lane                         string
	hasLane                      bool
}

func parseRow(header, fields []string) (csvRow, error) {
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(fields) {
			return "", false
		}
		return strings.TrimSpace(fields[i]), true
	}

	sampleID, ok := get("Sample_ID")
	if !ok {
		return csvRow{}, fmt.Errorf("sample sheet missing required column Sample_ID")
	}
	sampleName, ok := get("Sample_Name")
	if !ok {
		return csvRow{}, fmt.Errorf("sample sheet missing required column Sample_Name")
	}
	i7, ok := get("index")
	if !ok {
		return csvRow{}, fmt.Errorf("sample sheet missing required column index (i7)")
	}
	i5, ok := get("index2")
	if !ok {
		return csvRow{}, fmt.Errorf("sample sheet missing required column index2 (i5)")
	}
	lane, hasLane := get("Lane")
	return csvRow{sampleID: sampleID, sampleName: sampleName, i7: i7, i5: i5, lane: lane, hasLane: hasLane && lane != ""}, nil
}

func resolveLanes(row csvRow, callerLanes []int) ([]int, error) {
	if row.hasLane {
		rowLane, err := strconv.Atoi(row.lane)
		if err != nil {
			return nil, fmt.Errorf("invalid Lane value %q: %w", row.lane, err)
		}
		if len(callerLanes) > 0 && !containsInt(callerLanes, rowLane) {
			return nil, nil
		}
		return []int{rowLane}, nil
	}
	if len(callerLanes) > 0 {
		return callerLanes, nil
	}
	return nil, fmt.Errorf("row for sample %q has no Lane and no --lane was given", row.sampleID)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func splitCSV(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func checkAmbiguity(lane int, label string, indices []string, threshold int) error {
	for i := range indices {
		for j := range indices {
			if i == j || indices[i] == indices[j] {
				continue
			}
			if hammingDistance(indices[i], indices[j]) <= threshold {
				return fmt.Errorf("demux: lane %d: ambiguous %s indices %q and %q at <= %d mismatches", lane, label, indices[i], indices[j], threshold)
			}
		}
	}
	return nil
}

func hammingDistance(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	d += len(a) - n
	if len(b) > n {
		d += len(b) - n
	}
	return d
}

func resolvePattern(pattern, sampleID, sampleName string, lane int) string {
	out := strings.ReplaceAll(pattern, "%i", sampleID)
	out = strings.ReplaceAll(out, "%s", sampleName)
	out = strings.ReplaceAll(out, "%l", fmt.Sprintf("%03d", lane))
	return out
}

// HasLane reports whether the table has any configured samples for lane.
func (t *Table) HasLane(lane int) bool {
	_, ok := t.lanes[lane]
	return ok
}

// Lengths returns the lane's uniform i7/i5 index lengths.
func (t *Table) Lengths(lane int) (i7Len, i5Len int, ok bool) {
	lt, ok := t.lanes[lane]
	if !ok {
		return 0, 0, false
	}
	return lt.i7Len, lt.i5Len, true
}

// UndeterminedPos returns the sentinel position used for unmatched reads on
// lane: one past the last real sample index.
func (t *Table) UndeterminedPos(lane int) int {
	lt, ok := t.lanes[lane]
	if !ok {
		return 0
	}
	return len(lt.i7)
}

// FindIndices implements spec.md §4.8's lookup: exact i7 match, else
// nearest-neighbor within MaxErrors; then an i5 check at the matched
// position. Returns the lane's Undetermined position on any miss, or if
// the lane itself is not configured.
func (t *Table) FindIndices(lane int, i7, i5 string) int {
	lt, ok := t.lanes[lane]
	if !ok || len(lt.i7) == 0 {
		return t.UndeterminedPos(lane)
	}

	pos := -1
	for i, candidate := range lt.i7 {
		if candidate == i7 {
			pos = i
			break
		}
	}
	if pos < 0 {
		best, bestDist := -1, t.maxErrors+1
		for i, candidate := range lt.i7 {
			d := hammingDistance(candidate, i7)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		if bestDist <= t.maxErrors {
			pos = best
		}
	}
	if pos < 0 {
		return len(lt.i7)
	}
	if lt.i5[pos] == i5 || hammingDistance(lt.i5[pos], i5) <= t.maxErrors {
		return pos
	}
	return len(lt.i7)
}

// OutputPath returns the resolved output filename for (lane, pos), where
// pos may be the lane's Undetermined sentinel.
func (t *Table) OutputPath(lane, pos int) string {
	lt, ok := t.lanes[lane]
	if !ok {
		return ""
	}
	if pos < 0 || pos >= len(lt.outputPath) {
		return lt.undeterminedPath
	}
	return lt.outputPath[pos]
}
