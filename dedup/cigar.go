package dedup

import "github.com/biogo/hts/sam"

// AnalyzeCigar derives a read's leftmost reference coordinate (start), its
// effective 5' unclipped bundling coordinate (pos), and whether the read is
// spliced, from its CIGAR and the configured soft-clip threshold.
//
// Reverse-strand reads are walked from their 3' (rightmost, reference-order)
// end so that "pos" always names the 5' end of the original template,
// matching the forward-strand convention.
func AnalyzeCigar(r *sam.Record, softClipThreshold int) (start, pos int, spliced bool) {
	c := r.Cigar
	if len(c) == 0 {
		return r.Pos, r.Pos, false
	}
	if r.Flags&sam.Reverse != 0 {
		pos = bamEndPos(r)
		if c[len(c)-1].Type() == sam.CigarSoftClipped {
			pos += c[len(c)-1].Len()
		}
		start = r.Pos
		spliced = hasRefSkip(c) || (c[0].Type() == sam.CigarSoftClipped && c[0].Len() > softClipThreshold)
		return start, pos, spliced
	}

	pos = r.Pos
	if c[0].Type() == sam.CigarSoftClipped {
		pos -= c[0].Len()
	}
	start = pos
	spliced = hasRefSkip(c) || (c[len(c)-1].Type() == sam.CigarSoftClipped && c[len(c)-1].Len() > softClipThreshold)
	return start, pos, spliced
}

// bamEndPos returns the reference coordinate one past the last base
// consumed by the alignment (BAM's bam_endpos).
func bamEndPos(r *sam.Record) int {
	end := r.Pos
	for _, op := range r.Cigar {
		con := op.Type().Consumes()
		end += op.Len() * con.Reference
	}
	return end
}

func hasRefSkip(c sam.Cigar) bool {
	for _, op := range c {
		if op.Type() == sam.CigarSkipped {
			return true
		}
	}
	return false
}

// findSplice returns the distance, in reference bases, from the relevant end
// of the read to the first skip/splice (N) or the first non-leading
// soft-clip. Nothing calls it: AnalyzeCigar derives the read-group key's
// splice flag directly from the CIGAR, without this offset.
func findSplice(c sam.Cigar, reverse bool) int {
	n := len(c)
	start, end, step := 0, n, 1
	if reverse {
		start, end, step = n-1, -1, -1
	}

	offset := 0
	if c[start].Type() == sam.CigarSoftClipped {
		offset = c[start].Len()
		start += step
	}

	for i := start; i != end; i += step {
		switch c[i].Type() {
		case sam.CigarSkipped, sam.CigarSoftClipped:
			return offset
		case sam.CigarMatch, sam.CigarDeletion, sam.CigarEqual, sam.CigarMismatch:
			offset += c[i].Len()
		default:
			// Insertion/hard-clip/pad consume no reference bases; skip.
		}
	}
	return 0
}
