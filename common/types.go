package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// PageSize is the fixed size of every page moved by the buffer pool.
const PageSize = 8192

// AttrType is the physical type of a table attribute or index key.
type AttrType int8

const (
	Ints AttrType = iota
	Floats
	Chars
)

func (t AttrType) String() string {
	switch t {
	case Ints:
		return "INTS"
	case Floats:
		return "FLOATS"
	case Chars:
		return "CHARS"
	}
	return "UNKNOWN"
}

// TransactionID identifies a transaction. The zero value means "inactive"
// (txn.Transaction) or "committed" (the transaction-stamp field of a
// record) depending on context.
type TransactionID int32

// InvalidTransactionID is the sentinel used before a transaction has done
// its first write.
const InvalidTransactionID TransactionID = 0

// RID (record identifier) is a stable pointer to a tuple: the page it lives
// on and its slot within that page's bitmap. Files (record files, index
// files) are one-per-table/-index, so unlike a multi-file buffer pool key a
// RID does not need a file identifier of its own.
type RID struct {
	PageNum int32
	Slot    int32
}

// NilRID is the sentinel "no record" RID.
var NilRID = RID{PageNum: -1, Slot: -1}

func (r RID) IsNil() bool {
	return r.PageNum == -1 && r.Slot == -1
}

func (r RID) String() string {
	return fmt.Sprintf("rid(%d,%d)", r.PageNum, r.Slot)
}

// Less implements the composite (PageNum, Slot) tie-break order the B+-tree
// uses to keep duplicate-key entries uniquely ordered.
func (r RID) Less(other RID) bool {
	if r.PageNum != other.PageNum {
		return r.PageNum < other.PageNum
	}
	return r.Slot < other.Slot
}

func (r RID) Equal(other RID) bool {
	return r.PageNum == other.PageNum && r.Slot == other.Slot
}

const ridSize = 8

// WriteRID serializes a RID as two little-endian int32s.
func WriteRID(buf []byte, r RID) {
	binary.LittleEndian.PutUint32(buf, uint32(r.PageNum))
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.Slot))
}

// ReadRID deserializes a RID written by WriteRID.
func ReadRID(buf []byte) RID {
	return RID{
		PageNum: int32(binary.LittleEndian.Uint32(buf)),
		Slot:    int32(binary.LittleEndian.Uint32(buf[4:])),
	}
}

// RIDSize is the on-disk serialized size of a RID.
const RIDSize = ridSize

// CompareKeyBytes compares two raw key buffers of the given attribute type.
// INTS and FLOATS compare as native 8-byte little-endian numbers over the
// first 8 bytes (attrLength is not consulted for them); CHARS compares
// lexicographically over exactly attrLength bytes. Returns -1, 0 or 1.
func CompareKeyBytes(t AttrType, attrLength int, a, b []byte) int {
	switch t {
	case Ints:
		av := int64(binary.LittleEndian.Uint64(a[:8]))
		bv := int64(binary.LittleEndian.Uint64(b[:8]))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case Floats:
		av := math.Float64frombits(binary.LittleEndian.Uint64(a[:8]))
		bv := math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case Chars:
		return bytes.Compare(a[:attrLength], b[:attrLength])
	default:
		Assert(false, "unknown attribute type %v", t)
		return 0
	}
}

// AttrStorageLength is the fixed encoded width for attrType, given the
// schema-declared attrLength (meaningful only for Chars; Ints and Floats
// are always stored as 8-byte native values).
func AttrStorageLength(t AttrType, attrLength int) int {
	switch t {
	case Ints, Floats:
		return 8
	case Chars:
		return attrLength
	default:
		Assert(false, "unknown attribute type %v", t)
		return 0
	}
}

// CompareOp is a key comparator, shared by filter.Range (over a raw tuple's
// attribute bytes) and btree.Scanner (over index key bytes).
type CompareOp int

const (
	NoOp CompareOp = iota
	EQ
	GE
	GT
	LE
	LT
	NE
)

func (op CompareOp) String() string {
	switch op {
	case NoOp:
		return "NO_OP"
	case EQ:
		return "EQ"
	case GE:
		return "GE"
	case GT:
		return "GT"
	case LE:
		return "LE"
	case LT:
		return "LT"
	case NE:
		return "NE"
	}
	return "UNKNOWN"
}

// Satisfies reports whether cmp (the result of comparing a candidate key to
// the scan's bound value, candidate-minus-bound sign) satisfies op.
func (op CompareOp) Satisfies(cmp int) bool {
	switch op {
	case NoOp:
		return true
	case EQ:
		return cmp == 0
	case GE:
		return cmp >= 0
	case GT:
		return cmp > 0
	case LE:
		return cmp <= 0
	case LT:
		return cmp < 0
	case NE:
		return cmp != 0
	default:
		Assert(false, "unknown compare op %v", op)
		return false
	}
}
