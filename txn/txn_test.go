package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/common"
)

type counterIDSource struct{ next int32 }

func (c *counterIDSource) NextTransactionID() common.TransactionID {
	c.next++
	return common.TransactionID(c.next)
}

// fakeTable is a minimal TableHandle recording which commit/rollback
// methods were invoked, for assertions independent of the table package.
type fakeTable struct {
	committedInsert, committedDelete   []common.RID
	rolledBackInsert, rolledBackDelete []common.RID
}

func (f *fakeTable) CommitInsert(rid common.RID) error {
	f.committedInsert = append(f.committedInsert, rid)
	return nil
}
func (f *fakeTable) CommitDelete(rid common.RID) error {
	f.committedDelete = append(f.committedDelete, rid)
	return nil
}
func (f *fakeTable) RollbackInsert(rid common.RID) error {
	f.rolledBackInsert = append(f.rolledBackInsert, rid)
	return nil
}
func (f *fakeTable) RollbackDelete(rid common.RID) error {
	f.rolledBackDelete = append(f.rolledBackDelete, rid)
	return nil
}

func TestIsVisible_OwnAndCommittedAndOtherTransaction(t *testing.T) {
	record := make([]byte, 4)

	// Committed, not deleted (stamp 0): visible to everyone.
	assert.True(t, IsVisible(record, 0, 1))
	assert.True(t, IsVisible(record, 0, 2))

	// Inserted, uncommitted, by transaction 1: visible to 1, hidden from 2.
	InitTransactionInfo(record, 0, 1)
	assert.True(t, IsVisible(record, 0, 1))
	assert.False(t, IsVisible(record, 0, 2))

	// Deleted, uncommitted, by transaction 1: invisible to 1, visible to 2
	// (scenario 6 — an uncommitted delete is still visible to other readers).
	MarkDeleted(record, 0, 1)
	assert.False(t, IsVisible(record, 0, 1))
	assert.True(t, IsVisible(record, 0, 2))

	ClearStamp(record, 0)
	assert.True(t, IsVisible(record, 0, 1))
	assert.True(t, IsVisible(record, 0, 2))
}

func TestTransaction_InsertThenDeleteSameTxnDropsOperation(t *testing.T) {
	tr := New(&counterIDSource{})
	table := &fakeTable{}
	rid := common.RID{PageNum: 1, Slot: 0}

	require.NoError(t, tr.InsertRecord(table, rid))
	dropInsert, err := tr.DeleteRecord(table, rid)
	require.NoError(t, err)
	assert.True(t, dropInsert)

	require.NoError(t, tr.Commit())
	assert.Empty(t, table.committedInsert)
	assert.Empty(t, table.committedDelete)
}

func TestTransaction_DuplicateInsertFails(t *testing.T) {
	tr := New(&counterIDSource{})
	table := &fakeTable{}
	rid := common.RID{PageNum: 1, Slot: 0}

	require.NoError(t, tr.InsertRecord(table, rid))
	err := tr.InsertRecord(table, rid)
	assert.Equal(t, common.CodeInvalidArgument, common.CodeOf(err))
}

func TestTransaction_CommitDispatchesToTable(t *testing.T) {
	tr := New(&counterIDSource{})
	table := &fakeTable{}
	inserted := common.RID{PageNum: 1, Slot: 0}
	deleted := common.RID{PageNum: 2, Slot: 0}

	require.NoError(t, tr.InsertRecord(table, inserted))
	_, err := tr.DeleteRecord(table, deleted)
	require.NoError(t, err)

	require.NoError(t, tr.Commit())
	assert.Equal(t, []common.RID{inserted}, table.committedInsert)
	assert.Equal(t, []common.RID{deleted}, table.committedDelete)
	assert.Equal(t, common.InvalidTransactionID, tr.ID())
}

func TestTransaction_RollbackDispatchesToTable(t *testing.T) {
	tr := New(&counterIDSource{})
	table := &fakeTable{}
	inserted := common.RID{PageNum: 1, Slot: 0}
	deleted := common.RID{PageNum: 2, Slot: 0}

	require.NoError(t, tr.InsertRecord(table, inserted))
	_, err := tr.DeleteRecord(table, deleted)
	require.NoError(t, err)

	require.NoError(t, tr.Rollback())
	assert.Equal(t, []common.RID{inserted}, table.rolledBackInsert)
	assert.Equal(t, []common.RID{deleted}, table.rolledBackDelete)
	assert.Equal(t, common.InvalidTransactionID, tr.ID())
}
