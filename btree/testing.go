package btree

import (
	"coredb/common"
	"coredb/storage"
)

// NewForTest creates an index file with an explicit order override,
// bypassing the page-size-derived computeOrder. It exists so tests can
// exercise splits, merges and redistribution with small, easy-to-reason
// orders instead of whatever order a real attribute length produces. It
// must only be called before any entry is inserted.
func NewForTest(pool *storage.BufferPool, path string, attrType common.AttrType, attrLength, order int32) (*File, error) {
	return create(pool, path, attrType, attrLength, order)
}
