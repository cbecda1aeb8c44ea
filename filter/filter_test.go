package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coredb/common"
)

func encodeInt(v int64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func rawTuple(id int64) []byte {
	return encodeInt(id)
}

func idAttr() Attribute {
	return Attribute{Name: "id", Offset: 0, Type: common.Ints, Length: 8}
}

func TestCompareFilter_Matches(t *testing.T) {
	f := Compare(idAttr(), common.GE, encodeInt(5))
	assert.True(t, f.Matches(rawTuple(5)))
	assert.True(t, f.Matches(rawTuple(9)))
	assert.False(t, f.Matches(rawTuple(4)))
}

func TestCompareFilter_IndexHint(t *testing.T) {
	f := Compare(idAttr(), common.EQ, encodeInt(5))
	name, op, value, ok := f.(IndexHint).IndexHint()
	assert.True(t, ok)
	assert.Equal(t, "id", name)
	assert.Equal(t, common.EQ, op)
	assert.Equal(t, encodeInt(5), value)
}

func TestAndFilter_RequiresEveryClause(t *testing.T) {
	f := And(
		Compare(idAttr(), common.GE, encodeInt(5)),
		Compare(idAttr(), common.LE, encodeInt(10)),
	)
	assert.True(t, f.Matches(rawTuple(7)))
	assert.False(t, f.Matches(rawTuple(11)))
}

func TestRange_BothBoundsOpen(t *testing.T) {
	f := Range(idAttr(), nil, nil)
	assert.True(t, f.Matches(rawTuple(0)))
	assert.True(t, f.Matches(rawTuple(-1)))
}

func TestRange_OneBoundProducesBareCompare(t *testing.T) {
	f := Range(idAttr(), encodeInt(5), nil)
	_, ok := f.(CompareFilter)
	assert.True(t, ok)
	assert.True(t, f.Matches(rawTuple(5)))
	assert.False(t, f.Matches(rawTuple(4)))
}

func TestRange_BothBoundsProducesAnd(t *testing.T) {
	f := Range(idAttr(), encodeInt(5), encodeInt(10))
	assert.True(t, f.Matches(rawTuple(5)))
	assert.True(t, f.Matches(rawTuple(10)))
	assert.False(t, f.Matches(rawTuple(11)))
	assert.False(t, f.Matches(rawTuple(4)))
}

func TestAll_MatchesEverything(t *testing.T) {
	assert.True(t, All.Matches(rawTuple(0)))
	assert.True(t, All.Matches(nil))
}
