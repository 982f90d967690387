package demux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/fumitools/encoding/fastq"
)

// RouterOptions configures header parsing beyond the sample-index table
// itself, per spec.md §6's demultiplex flags.
type RouterOptions struct {
	FormatUMI bool
	TagUMI    bool
}

// Route extracts the lane and dual-index barcodes from r's header, looks
// up the sample position in t, and -- when FormatUMI is set -- rewrites
// r.ID to carry the UMI, per spec.md §4.9's main-loop steps 1-6.
//
// skipped reports a lane absent from the table (the caller should count
// it and drop the record without further processing); pos is always a
// valid position for a configured lane, since an unmatched barcode pair
// still routes to that lane's Undetermined sink rather than being
// dropped.
func Route(r *fastq.Read, t *Table, opts RouterOptions) (lane, pos int, skipped bool, err error) {
	lane, err = extractLane(r.ID)
	if err != nil {
		return 0, 0, false, err
	}
	if !t.HasLane(lane) {
		return lane, 0, true, nil
	}

	i7Len, i5Len, _ := t.Lengths(lane)
	i7, i5, i7End, err := extractBarcodes(r.ID, i7Len, i5Len)
	if err != nil {
		return lane, 0, false, err
	}

	if opts.FormatUMI {
		umi := extractUMI(r.ID, i7End, i5Len)
		if opts.TagUMI {
			r.ID += fmt.Sprintf(":FUMI|%s|", umi)
		} else {
			r.ID += fmt.Sprintf("_%s", umi)
		}
	}

	pos = t.FindIndices(lane, i7, i5)
	return lane, pos, false, nil
}

// extractLane parses the fourth colon-delimited field of a FASTQ header as
// the (1-based) flow-cell lane, per spec.md §4.9 step 3.
func extractLane(header string) (int, error) {
	parts := strings.SplitN(header, ":", 5)
	if len(parts) < 4 {
		return 0, fmt.Errorf("demux: lane could not be extracted from header: %q", header)
	}
	lane, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || lane == 0 {
		return 0, fmt.Errorf("demux: lane could not be extracted from header: %q", header)
	}
	return lane, nil
}

// extractBarcodes returns the i7 candidate (the i7Len bytes right after
// the header's last ':'), the i5 candidate (the tail i5Len bytes of the
// header), and the offset one past the i7 candidate (needed to locate an
// embedded UMI).
func extractBarcodes(header string, i7Len, i5Len int) (i7, i5 string, i7End int, err error) {
	colon := strings.LastIndexByte(header, ':')
	if colon < 0 {
		return "", "", 0, fmt.Errorf("demux: could not find i7 index (no ':' in header %q)", header)
	}
	i7Start := colon + 1
	i7End = i7Start + i7Len
	if i7End > len(header) {
		return "", "", 0, fmt.Errorf("demux: header too short for i7 length %d: %q", i7Len, header)
	}
	if i5Len > len(header) {
		return "", "", 0, fmt.Errorf("demux: header too short for i5 length %d: %q", i5Len, header)
	}
	i7 = header[i7Start:i7End]
	i5 = header[len(header)-i5Len:]
	return i7, i5, i7End, nil
}

// extractUMI returns the header substring between the i7 candidate's end
// and the start of the i5 candidate, minus the single '+' separator byte,
// per spec.md §4.9 step 5.
func extractUMI(header string, i7End, i5Len int) string {
	umiEnd := len(header) - i5Len - 1
	if umiEnd <= i7End {
		return ""
	}
	return header[i7End:umiEnd]
}

// Serialize renders r in FASTQ's 4-line form, matching
// encoding/fastq.Writer's own output exactly, for enqueuing onto a
// writer-pool worker as a single buffer (spec.md §4.9 step 7).
func Serialize(r *fastq.Read) []byte {
	var buf strings.Builder
	buf.Grow(len(r.ID) + len(r.Seq) + len(r.Unk) + len(r.Qual) + 4)
	buf.WriteString(r.ID)
	buf.WriteByte('\n')
	buf.WriteString(r.Seq)
	buf.WriteByte('\n')
	buf.WriteString(r.Unk)
	buf.WriteByte('\n')
	buf.WriteString(r.Qual)
	buf.WriteByte('\n')
	return []byte(buf.String())
}
