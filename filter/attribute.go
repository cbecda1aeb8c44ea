package filter

import "coredb/common"

// Attribute locates a column's raw bytes within a fixed-layout tuple. Name
// is carried purely so a CompareFilter can be matched back against a
// table's declared indexes by FindIndexForScan; the page/record layer never
// looks at it.
type Attribute struct {
	Name   string
	Offset int
	Type   common.AttrType
	Length int
}

// bytesAt returns the raw encoded bytes of the attribute within rawTuple.
func (a Attribute) bytesAt(rawTuple []byte) []byte {
	n := common.AttrStorageLength(a.Type, a.Length)
	return rawTuple[a.Offset : a.Offset+n]
}

// CompareFilter matches tuples whose Attr satisfies Op against Value. It is
// a concrete, inspectable type (rather than a closure) so it doubles as an
// index-scan hint.
type CompareFilter struct {
	Attr  Attribute
	Op    common.CompareOp
	Value []byte
}

func (c CompareFilter) Matches(rawTuple []byte) bool {
	cmp := common.CompareKeyBytes(c.Attr.Type, c.Attr.Length, c.Attr.bytesAt(rawTuple), c.Value)
	return c.Op.Satisfies(cmp)
}

func (c CompareFilter) IndexHint() (attrName string, op common.CompareOp, value []byte, ok bool) {
	return c.Attr.Name, c.Op, c.Value, true
}

// Equals matches tuples whose attribute equals value (encoded the same way
// the attribute is stored: 8-byte native int/float, or exactly Length bytes
// for CHARS).
func Equals(attr Attribute, value []byte) Filter {
	return Compare(attr, common.EQ, value)
}

// Compare matches tuples whose attribute satisfies op against value, e.g.
// Compare(attr, common.GE, encoded(5)) for "a >= 5".
func Compare(attr Attribute, op common.CompareOp, value []byte) Filter {
	return CompareFilter{Attr: attr, Op: op, Value: value}
}

// Range matches tuples whose attribute lies within [low, high] (either
// bound may be nil to leave that side open).
func Range(attr Attribute, low, high []byte) Filter {
	var parts []Filter
	if low != nil {
		parts = append(parts, CompareFilter{Attr: attr, Op: common.GE, Value: low})
	}
	if high != nil {
		parts = append(parts, CompareFilter{Attr: attr, Op: common.LE, Value: high})
	}
	switch len(parts) {
	case 0:
		return All
	case 1:
		return parts[0]
	default:
		return And(parts...)
	}
}
