package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/common"
	"coredb/filter"
	"coredb/meta"
	"coredb/table"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := New(t.TempDir(), 32)
	require.NoError(t, err)
	require.NoError(t, h.Init())
	return h
}

func idAttr() meta.Attribute {
	return meta.Attribute{Name: "id", Type: common.Ints, Length: 8}
}

func encodeID(v int64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func TestHandler_CreateDBTwiceFails(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.CreateDB("db1"))
	err := h.CreateDB("db1")
	assert.Equal(t, common.CodeSchemaDBExist, common.CodeOf(err))
}

func TestHandler_OpenUnknownDBFails(t *testing.T) {
	h := newTestHandler(t)
	err := h.OpenDB("nope")
	assert.Equal(t, common.CodeSchemaDBNotExist, common.CodeOf(err))
}

func TestHandler_RoutingInsertAndScan(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.CreateDB("db1"))
	require.NoError(t, h.CreateTable("db1", "people", []meta.Attribute{idAttr()}))

	tr := h.NewTransaction()
	_, err := h.InsertRecord("db1", "people", tr, []any{int64(1)})
	require.NoError(t, err)
	_, err = h.InsertRecord("db1", "people", tr, []any{int64(2)})
	require.NoError(t, err)
	require.NoError(t, tr.Commit())

	tbl, err := h.Table("db1", "people")
	require.NoError(t, err)
	attr, _ := tbl.AttributeByName("id")

	reader := h.NewTransaction()
	var ids []int64
	err = h.ScanRecord("db1", "people", reader, nil, -1, func(rid common.RID, data []byte) (bool, error) {
		ids = append(ids, table.DecodeAttribute(attr, data[attr.Offset:attr.Offset+attr.StorageLength()]).(int64))
		return true, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

// Reopening a database picks its tables back up by reading their ".table"
// descriptors off disk, without the caller re-declaring the schema.
func TestHandler_OpenDBReopensExistingTables(t *testing.T) {
	base := t.TempDir()
	h1, err := New(base, 32)
	require.NoError(t, err)
	require.NoError(t, h1.Init())
	require.NoError(t, h1.CreateDB("db1"))
	require.NoError(t, h1.CreateTable("db1", "people", []meta.Attribute{idAttr()}))

	tr := h1.NewTransaction()
	_, err = h1.InsertRecord("db1", "people", tr, []any{int64(99)})
	require.NoError(t, err)
	require.NoError(t, tr.Commit())
	require.NoError(t, h1.Sync())

	h2, err := New(base, 32)
	require.NoError(t, err)
	require.NoError(t, h2.OpenDB("db1"))

	reader := h2.NewTransaction()
	matched := 0
	err = h2.ScanRecord("db1", "people", reader, nil, -1, func(rid common.RID, data []byte) (bool, error) {
		matched++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
}

func TestHandler_CreateIndexAndDeleteRecord(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.CreateDB("db1"))
	require.NoError(t, h.CreateTable("db1", "people", []meta.Attribute{idAttr()}))
	require.NoError(t, h.CreateIndex("db1", "people", "id_idx", "id"))

	tr := h.NewTransaction()
	_, err := h.InsertRecord("db1", "people", tr, []any{int64(5)})
	require.NoError(t, err)
	require.NoError(t, tr.Commit())

	tbl, err := h.Table("db1", "people")
	require.NoError(t, err)
	attr, _ := tbl.AttributeByName("id")

	deleter := h.NewTransaction()
	n, err := h.DeleteRecord("db1", "people", deleter, filter.Equals(filter.Attribute{Name: attr.Name, Offset: int(attr.Offset), Type: attr.Type, Length: int(attr.Length)}, encodeID(5)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, deleter.Commit())

	reader := h.NewTransaction()
	matched := 0
	err = h.ScanRecord("db1", "people", reader, nil, -1, func(rid common.RID, data []byte) (bool, error) {
		matched++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, matched)
}

func TestHandler_Describe(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.CreateDB("db1"))
	require.NoError(t, h.CreateTable("db1", "people", []meta.Attribute{idAttr()}))

	out := h.Describe()
	assert.Contains(t, out, "db1")
	assert.Contains(t, out, "people")
}
