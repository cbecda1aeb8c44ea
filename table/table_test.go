package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/common"
	"coredb/filter"
	"coredb/meta"
	"coredb/storage"
	"coredb/txn"
)

type seqIDs struct{ next int32 }

func (s *seqIDs) NextTransactionID() common.TransactionID {
	s.next++
	return common.TransactionID(s.next)
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	dir := t.TempDir()
	pool := storage.NewBufferPool(64)
	attrs := []meta.Attribute{
		{Name: "id", Type: common.Ints, Length: 8},
		{Name: "name", Type: common.Chars, Length: 16},
	}
	tbl, err := Create(pool, dir, "people", attrs)
	require.NoError(t, err)
	return tbl
}

func idAttr(tbl *Table) filter.Attribute {
	attr, _ := tbl.desc.AttributeByName("id")
	return filter.Attribute{Name: attr.Name, Offset: int(attr.Offset), Type: attr.Type, Length: int(attr.Length)}
}

func encodeID(v int64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func collectAll(t *testing.T, tr *txn.Transaction, tbl *Table) []int64 {
	t.Helper()
	var ids []int64
	err := tbl.ScanRecord(tr, nil, -1, func(rid common.RID, data []byte) (bool, error) {
		attr, _ := tbl.desc.AttributeByName("id")
		ids = append(ids, DecodeAttribute(attr, data[attr.Offset:attr.Offset+attr.StorageLength()]).(int64))
		return true, nil
	})
	require.NoError(t, err)
	return ids
}

// scenario 1: insert several records under one transaction, commit, then a
// filter-less scan returns every record in physical insertion order.
func TestTable_InsertAndFullScanPreservesOrder(t *testing.T) {
	tbl := newTestTable(t)
	ids := &seqIDs{}
	tr := txn.New(ids)

	for i := int64(1); i <= 5; i++ {
		_, err := tbl.InsertRecord(tr, []any{i, "n"})
		require.NoError(t, err)
	}
	require.NoError(t, tr.Commit())

	got := collectAll(t, txn.New(ids), tbl)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

// scenario 2: build an index after records already exist, then run an
// index-assisted range scan.
func TestTable_CreateIndexAfterInsertsThenRangeScan(t *testing.T) {
	tbl := newTestTable(t)
	ids := &seqIDs{}
	tr := txn.New(ids)
	for i := int64(1); i <= 10; i++ {
		_, err := tbl.InsertRecord(tr, []any{i, "n"})
		require.NoError(t, err)
	}
	require.NoError(t, tr.Commit())

	require.NoError(t, tbl.CreateIndex("id_idx", "id"))

	plan, ok := tbl.FindIndexForScan(filter.Compare(idAttr(tbl), common.GE, encodeID(5)))
	require.True(t, ok)
	assert.Equal(t, "id", plan.attrName)

	reader := txn.New(ids)
	var got []int64
	err := tbl.ScanRecord(reader, filter.Compare(idAttr(tbl), common.GE, encodeID(5)), -1, func(rid common.RID, data []byte) (bool, error) {
		attr, _ := tbl.desc.AttributeByName("id")
		got = append(got, DecodeAttribute(attr, data[attr.Offset:attr.Offset+attr.StorageLength()]).(int64))
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7, 8, 9, 10}, got)
}

// scenario 5/6 at the table level: an uncommitted insert is invisible to
// another transaction, and an uncommitted delete stays visible to others
// until commit.
func TestTable_UncommittedWritesVisibility(t *testing.T) {
	tbl := newTestTable(t)
	ids := &seqIDs{}

	writer := txn.New(ids)
	_, err := tbl.InsertRecord(writer, []any{int64(1), "a"})
	require.NoError(t, err)

	reader := txn.New(ids)
	assert.Empty(t, collectAll(t, reader, tbl), "uncommitted insert must be invisible to other transactions")
	require.NoError(t, writer.Commit())
	assert.Equal(t, []int64{1}, collectAll(t, txn.New(ids), tbl))

	deleter := txn.New(ids)
	n, err := tbl.DeleteRecord(deleter, filter.Equals(idAttr(tbl), encodeID(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other := txn.New(ids)
	assert.Equal(t, []int64{1}, collectAll(t, other, tbl), "uncommitted delete must stay visible to other readers")

	require.NoError(t, deleter.Commit())
	assert.Empty(t, collectAll(t, txn.New(ids), tbl))
}

func TestTable_RollbackInsertRemovesRecordAndIndexEntry(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.CreateIndex("id_idx", "id"))
	ids := &seqIDs{}

	tr := txn.New(ids)
	_, err := tbl.InsertRecord(tr, []any{int64(42), "x"})
	require.NoError(t, err)
	require.NoError(t, tr.Rollback())

	assert.Empty(t, collectAll(t, txn.New(ids), tbl))

	_, err = tbl.indexes["id"].GetEntry(encodeID(42))
	assert.Equal(t, common.CodeInvalidKey, common.CodeOf(err))
}

func TestTable_RollbackDeleteRestoresVisibility(t *testing.T) {
	tbl := newTestTable(t)
	ids := &seqIDs{}

	setup := txn.New(ids)
	_, err := tbl.InsertRecord(setup, []any{int64(7), "y"})
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	deleter := txn.New(ids)
	_, err = tbl.DeleteRecord(deleter, filter.Equals(idAttr(tbl), encodeID(7)))
	require.NoError(t, err)
	require.NoError(t, deleter.Rollback())

	assert.Equal(t, []int64{7}, collectAll(t, txn.New(ids), tbl))
}

func TestTable_UpdateRecordRewritesAttributesAndIndex(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.CreateIndex("id_idx", "id"))
	ids := &seqIDs{}

	tr := txn.New(ids)
	_, err := tbl.InsertRecord(tr, []any{int64(1), "old"})
	require.NoError(t, err)
	require.NoError(t, tr.Commit())

	updater := txn.New(ids)
	n, err := tbl.UpdateRecord(updater, filter.Equals(idAttr(tbl), encodeID(1)), []any{int64(2), "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, updater.Commit())

	rids, err := tbl.indexes["id"].GetEntry(encodeID(2))
	require.NoError(t, err)
	require.Len(t, rids, 1)

	_, err = tbl.indexes["id"].GetEntry(encodeID(1))
	assert.Equal(t, common.CodeInvalidKey, common.CodeOf(err))
}

func TestTable_InsertWrongValueCountFails(t *testing.T) {
	tbl := newTestTable(t)
	tr := txn.New(&seqIDs{})
	_, err := tbl.InsertRecord(tr, []any{int64(1)})
	assert.Equal(t, common.CodeInvalidArgument, common.CodeOf(err))
}
