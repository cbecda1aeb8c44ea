package txn

import "coredb/common"

// OpType is the kind of intent recorded for one (table, rid) pair within a
// transaction.
type OpType int

const (
	OpUndefined OpType = iota
	OpInsert
	OpDelete
)

// Operation is one recorded intent: what kind of write happened to rid
// within a table, over the life of a transaction. Identity for
// deduplication is (table, rid); a later write to the same pair overwrites
// the earlier one's Type.
type Operation struct {
	Type OpType
	RID  common.RID
}

// TableHandle is the surface a transaction needs from a table to commit or
// roll back its recorded operations. table.Table implements it; txn never
// imports the table package, which is what keeps table -> txn -> (nothing)
// from becoming a cycle.
type TableHandle interface {
	CommitInsert(rid common.RID) error
	CommitDelete(rid common.RID) error
	RollbackInsert(rid common.RID) error
	RollbackDelete(rid common.RID) error
}

// IDSource hands out transaction ids. handler.Handler implements it with a
// process-wide monotonic counter; Transaction calls it once each time it
// starts, on its first write after New, Commit or Rollback.
type IDSource interface {
	NextTransactionID() common.TransactionID
}

// Transaction tracks one transaction's insert/delete intents across
// however many tables it touches, for later commit or rollback. A
// Transaction from New is inactive (id 0); the first write starts it.
type Transaction struct {
	ids        IDSource
	id         common.TransactionID
	operations map[TableHandle]map[common.RID]Operation
}

// New creates an inactive transaction that will draw its id from ids on
// first use.
func New(ids IDSource) *Transaction {
	return &Transaction{ids: ids, operations: make(map[TableHandle]map[common.RID]Operation)}
}

// ID returns the transaction's id, or InvalidTransactionID if it has not
// written anything yet.
func (t *Transaction) ID() common.TransactionID {
	return t.id
}

func (t *Transaction) ensureStarted() {
	if t.id == common.InvalidTransactionID {
		t.id = t.ids.NextTransactionID()
	}
}

// EnsureStarted allocates the transaction's id if it has not written
// anything yet, and returns it. Callers that must stamp a record with a
// transaction id before registering the write (table.InsertRecord) call
// this directly instead of going through InsertRecord/DeleteRecord.
func (t *Transaction) EnsureStarted() common.TransactionID {
	t.ensureStarted()
	return t.id
}

func (t *Transaction) opsFor(table TableHandle) map[common.RID]Operation {
	ops := t.operations[table]
	if ops == nil {
		ops = make(map[common.RID]Operation)
		t.operations[table] = ops
	}
	return ops
}

// InsertRecord registers an INSERT intent for rid in table. The record's
// stamp must already have been written by the caller via
// InitTransactionInfo before this is called. Fails if an operation for
// this (table, rid) pair is already recorded.
func (t *Transaction) InsertRecord(table TableHandle, rid common.RID) error {
	ops := t.opsFor(table)
	if _, exists := ops[rid]; exists {
		return common.NewError(common.CodeInvalidArgument, "duplicate operation for rid %v in this transaction", rid)
	}
	t.ensureStarted()
	ops[rid] = Operation{Type: OpInsert, RID: rid}
	return nil
}

// DeleteRecord registers a delete intent for rid in table. If rid was
// inserted earlier within this same open transaction, that insert intent
// is dropped entirely (the record never becomes visible to anyone) and
// dropInsert is true: the caller must physically undo the insert itself,
// the same way RollbackInsert would. Otherwise a DELETE intent is recorded
// and dropInsert is false: the caller then stamps the record's delete flag
// with this transaction's id (MarkDeleted), which this call has started.
func (t *Transaction) DeleteRecord(table TableHandle, rid common.RID) (dropInsert bool, err error) {
	ops := t.opsFor(table)
	if prior, exists := ops[rid]; exists && prior.Type == OpInsert {
		delete(ops, rid)
		return true, nil
	}
	t.ensureStarted()
	ops[rid] = Operation{Type: OpDelete, RID: rid}
	return false, nil
}

// Commit dispatches every recorded operation to its table's commit path,
// then clears the transaction back to inactive.
func (t *Transaction) Commit() error {
	defer t.reset()
	for table, ops := range t.operations {
		for _, op := range ops {
			var err error
			switch op.Type {
			case OpInsert:
				err = table.CommitInsert(op.RID)
			case OpDelete:
				err = table.CommitDelete(op.RID)
			default:
				common.Assert(false, "unreachable operation type %v", op.Type)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback dispatches every recorded operation to its table's rollback
// path, then clears the transaction back to inactive.
func (t *Transaction) Rollback() error {
	defer t.reset()
	for table, ops := range t.operations {
		for _, op := range ops {
			var err error
			switch op.Type {
			case OpInsert:
				err = table.RollbackInsert(op.RID)
			case OpDelete:
				err = table.RollbackDelete(op.RID)
			default:
				common.Assert(false, "unreachable operation type %v", op.Type)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Transaction) reset() {
	t.operations = make(map[TableHandle]map[common.RID]Operation)
	t.id = common.InvalidTransactionID
}
