package btree

import (
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/common"
	"coredb/storage"
)

func intKey(v int32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	return buf
}

func decodeIntKey(b []byte) int32 {
	return int32(int64(binary.LittleEndian.Uint64(b)))
}

func newOrderedIndex(t *testing.T, order int32) (*storage.BufferPool, *File) {
	pool := storage.NewBufferPool(64)
	f, err := NewForTest(pool, filepath.Join(t.TempDir(), "idx.data"), common.Ints, 8, order)
	require.NoError(t, err)
	return pool, f
}

// TestBTree_InsertLookupDeleteStress drives 1000 unique keys through a
// small-order (4) tree, forcing many leaf and internal splits, then
// deletes them all in a different random order, forcing merges and
// redistributions, validating the whole tree's invariants at every step.
func TestBTree_InsertLookupDeleteStress(t *testing.T) {
	_, f := newOrderedIndex(t, 4)

	r := rand.New(rand.NewSource(42))
	keys := r.Perm(1000)

	for i, k := range keys {
		rid := common.RID{PageNum: int32(k), Slot: 0}
		require.NoError(t, f.InsertEntry(intKey(int32(k)), rid))
		require.NoError(t, f.ValidateTree(int32(i+1)))
	}

	for _, k := range keys {
		rids, err := f.GetEntry(intKey(int32(k)))
		require.NoError(t, err)
		require.Len(t, rids, 1)
		assert.Equal(t, common.RID{PageNum: int32(k), Slot: 0}, rids[0])
	}

	deleteOrder := r.Perm(1000)
	for i, k := range deleteOrder {
		rid := common.RID{PageNum: int32(k), Slot: 0}
		require.NoError(t, f.DeleteEntry(intKey(int32(k)), rid))
		require.NoError(t, f.ValidateTree(int32(len(deleteOrder)-i-1)))

		_, err := f.GetEntry(intKey(int32(k)))
		assert.Equal(t, common.CodeInvalidKey, common.CodeOf(err))
	}
}

// TestBTree_DuplicateKeysSpanningLeaves inserts many entries sharing one
// key value across enough distinct RIDs to force the duplicates across a
// leaf boundary, and checks GetEntry still returns every one of them by
// following next_brother links.
func TestBTree_DuplicateKeysSpanningLeaves(t *testing.T) {
	_, f := newOrderedIndex(t, 4)

	const dupKey = int32(7)
	var expected []common.RID
	for i := int32(0); i < 40; i++ {
		rid := common.RID{PageNum: i, Slot: i % 3}
		require.NoError(t, f.InsertEntry(intKey(dupKey), rid))
		expected = append(expected, rid)
	}
	// a few distinct keys around the duplicate to exercise real branching.
	for _, k := range []int32{1, 3, 5, 9, 11, 13} {
		require.NoError(t, f.InsertEntry(intKey(k), common.RID{PageNum: k, Slot: 0}))
	}
	require.NoError(t, f.ValidateTree(int32(len(expected)+6)))

	got, err := f.GetEntry(intKey(dupKey))
	require.NoError(t, err)
	assert.ElementsMatch(t, expected, got)
}

// TestBTree_ScannerRanges checks every comparator against a populated tree.
func TestBTree_ScannerRanges(t *testing.T) {
	_, f := newOrderedIndex(t, 4)
	for i := int32(0); i < 50; i++ {
		require.NoError(t, f.InsertEntry(intKey(i), common.RID{PageNum: i, Slot: 0}))
	}

	cases := []struct {
		op       common.CompareOp
		value    int32
		expected []int32
	}{
		{common.EQ, 17, []int32{17}},
		{common.GE, 45, []int32{45, 46, 47, 48, 49}},
		{common.GT, 47, []int32{48, 49}},
		{common.LE, 2, []int32{0, 1, 2}},
		{common.LT, 2, []int32{0, 1}},
	}

	for _, c := range cases {
		s, err := f.NewScanner(c.op, intKey(c.value))
		require.NoError(t, err)
		var got []int32
		for {
			key, _, err := s.NextEntry()
			if common.CodeOf(err) == common.CodeRecordEOF {
				break
			}
			require.NoError(t, err)
			got = append(got, decodeIntKey(key))
		}
		s.Close()
		assert.Equal(t, c.expected, got, "op=%v value=%d", c.op, c.value)
	}

	s, err := f.NewScanner(common.NoOp, nil)
	require.NoError(t, err)
	defer s.Close()
	var all []int32
	for {
		key, _, err := s.NextEntry()
		if common.CodeOf(err) == common.CodeRecordEOF {
			break
		}
		require.NoError(t, err)
		all = append(all, decodeIntKey(key))
	}
	require.Len(t, all, 50)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1], all[i])
	}
}

func TestBTree_DeleteUnknownEntry(t *testing.T) {
	_, f := newOrderedIndex(t, 4)
	require.NoError(t, f.InsertEntry(intKey(1), common.RID{PageNum: 1, Slot: 0}))

	err := f.DeleteEntry(intKey(1), common.RID{PageNum: 99, Slot: 0})
	assert.Equal(t, common.CodeInvalidKey, common.CodeOf(err))

	err = f.DeleteEntry(intKey(2), common.RID{PageNum: 1, Slot: 0})
	assert.Equal(t, common.CodeInvalidKey, common.CodeOf(err))
}
