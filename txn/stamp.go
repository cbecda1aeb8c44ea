package txn

import (
	"encoding/binary"

	"coredb/common"
)

// Every record carries a 4-byte transaction stamp: the low 31 bits are the
// transaction id that last wrote it, bit 31 is a deletion-intent flag. A
// stamp of 0 means "committed, not deleted".
const deletedFlagMask = int32(-1) << 31
const idMask = int32(0x7FFFFFFF)

func packStamp(id common.TransactionID, deleted bool) int32 {
	v := int32(id) & idMask
	if deleted {
		v |= deletedFlagMask
	}
	return v
}

func unpackStamp(stamp int32) (id common.TransactionID, deleted bool) {
	return common.TransactionID(stamp & idMask), stamp&deletedFlagMask != 0
}

func readStamp(record []byte, offset int32) int32 {
	return int32(binary.LittleEndian.Uint32(record[offset : offset+4]))
}

func writeStamp(record []byte, offset int32, stamp int32) {
	binary.LittleEndian.PutUint32(record[offset:offset+4], uint32(stamp))
}

// InitTransactionInfo stamps record as freshly inserted and not yet
// committed by transactionID. Table.InsertRecord calls this before handing
// the record to the record file.
func InitTransactionInfo(record []byte, offset int32, transactionID common.TransactionID) {
	writeStamp(record, offset, packStamp(transactionID, false))
}

// MarkDeleted stamps record as deleted by transactionID but not yet
// committed. Table.DeleteRecord calls this for a record that was not
// itself inserted within the same, still-open transaction.
func MarkDeleted(record []byte, offset int32, transactionID common.TransactionID) {
	writeStamp(record, offset, packStamp(transactionID, true))
}

// ClearStamp resets record's stamp to 0 (committed, not deleted).
// Table.CommitInsert and Table.RollbackDelete call this.
func ClearStamp(record []byte, offset int32) {
	writeStamp(record, offset, 0)
}

// IsVisible implements the MVCC read rule exactly: a record committed (tid
// == 0) or written by the reading transaction is visible iff it is not
// under a delete intent; a record touched by any other transaction is
// visible iff it IS under that other transaction's delete intent — an
// uncommitted delete is still visible to other readers, an uncommitted
// insert is not.
func IsVisible(record []byte, offset int32, readerID common.TransactionID) bool {
	stamp := readStamp(record, offset)
	tid, deleted := unpackStamp(stamp)
	if tid == common.InvalidTransactionID || tid == readerID {
		return !deleted
	}
	return deleted
}
