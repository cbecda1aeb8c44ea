package table

import (
	"encoding/binary"
	"math"

	"coredb/common"
	"coredb/meta"
)

// EncodeAttribute renders a Go value as attr's on-disk bytes: Ints take an
// int64 (or int), Floats a float64, Chars a string or []byte no longer
// than attr.Length, zero-padded.
func EncodeAttribute(attr meta.Attribute, v any) ([]byte, error) {
	switch attr.Type {
	case common.Ints:
		var iv int64
		switch n := v.(type) {
		case int64:
			iv = n
		case int:
			iv = int64(n)
		case int32:
			iv = int64(n)
		default:
			return nil, common.NewError(common.CodeInvalidArgument, "attribute %s expects an integer value, got %T", attr.Name, v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(iv))
		return buf, nil

	case common.Floats:
		fv, ok := v.(float64)
		if !ok {
			return nil, common.NewError(common.CodeInvalidArgument, "attribute %s expects a float64 value, got %T", attr.Name, v)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(fv))
		return buf, nil

	case common.Chars:
		var s string
		switch n := v.(type) {
		case string:
			s = n
		case []byte:
			s = string(n)
		default:
			return nil, common.NewError(common.CodeInvalidArgument, "attribute %s expects a string value, got %T", attr.Name, v)
		}
		n := int(attr.Length)
		if len(s) > n {
			return nil, common.NewError(common.CodeInvalidArgument, "value for %s exceeds declared length %d", attr.Name, n)
		}
		buf := make([]byte, n)
		copy(buf, s)
		return buf, nil

	default:
		common.Assert(false, "unknown attribute type %v", attr.Type)
		return nil, nil
	}
}

// DecodeAttribute is EncodeAttribute's inverse, returning an int64,
// float64 or string depending on attr.Type. Chars values are trimmed at
// the first zero byte.
func DecodeAttribute(attr meta.Attribute, raw []byte) any {
	switch attr.Type {
	case common.Ints:
		return int64(binary.LittleEndian.Uint64(raw[:8]))
	case common.Floats:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw[:8]))
	case common.Chars:
		end := 0
		for end < len(raw) && raw[end] != 0 {
			end++
		}
		return string(raw[:end])
	default:
		common.Assert(false, "unknown attribute type %v", attr.Type)
		return nil
	}
}
