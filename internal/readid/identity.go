// Package readid defines the record-identity value type used by the
// deduplicator's mate index.
//
// The reference fumi_tools implementation builds a transient "mate-dummy"
// record whose tid/pos/mtid/mpos/isize are swapped from the real record, and
// uses it purely as a hash/equality probe into a set of real records. Go has
// no equivalent need for a borrowed, address-unstable probe object: Identity
// is a plain comparable value, and the mate's identity is computed directly
// from the real record's mate fields.
package readid

import (
	"encoding/binary"

	"blainsmith.com/go/seahash"
	"github.com/biogo/hts/sam"
)

// Identity is the tuple that uniquely identifies a mapped read for the
// purposes of mate tracking: (qname, tid, pos, mtid, mpos, isize, HI).
type Identity struct {
	QName   string
	TID     int
	Pos     int
	MateTID int
	MatePos int
	ISize   int
	HI      int
}

var hiTag = sam.Tag{'H', 'I'}

// HI returns r's HI auxiliary tag value, or 0 if absent.
func HI(r *sam.Record) int {
	aux := r.AuxFields.Get(hiTag)
	if aux == nil {
		return 0
	}
	switch v := aux.Value().(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	default:
		return 0
	}
}

func hiValue(r *sam.Record) int { return HI(r) }

// RefID returns ref.ID(), or -1 for a nil reference (an unmapped record's
// contig, or a record with no mate).
func RefID(ref *sam.Reference) int {
	if ref == nil {
		return -1
	}
	return ref.ID()
}

func refID(ref *sam.Reference) int { return RefID(ref) }

// Of returns the identity of r itself.
func Of(r *sam.Record) Identity {
	return Identity{
		QName:   r.Name,
		TID:     refID(r.Ref),
		Pos:     r.Pos,
		MateTID: refID(r.MateRef),
		MatePos: r.MatePos,
		ISize:   r.TempLen,
		HI:      hiValue(r),
	}
}

// Hash returns a stable 64-bit fingerprint of id, for callers that need a
// fixed-width identity outside of Go's own (unexported, per-process) map
// hashing -- log lines and metrics bucketing, not the mate index itself,
// which keys directly on the comparable Identity struct.
func (id Identity) Hash() uint64 {
	var buf [56]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(id.QName)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(id.TID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(id.Pos))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(id.MateTID))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(id.MatePos))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(id.ISize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(id.HI))
	h := seahash.New()
	h.Write(buf[:])
	h.Write([]byte(id.QName))
	return h.Sum64()
}

// OfMate returns the identity that r's mate would have, without
// constructing any synthetic record. This replaces the reference
// implementation's mate-dummy transform.
func OfMate(r *sam.Record) Identity {
	return Identity{
		QName:   r.Name,
		TID:     refID(r.MateRef),
		Pos:     r.MatePos,
		MateTID: refID(r.Ref),
		MatePos: r.Pos,
		ISize:   -r.TempLen,
		HI:      hiValue(r),
	}
}
