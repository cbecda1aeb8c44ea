package storage

import (
	"sync"

	"coredb/common"
)

// PageFrame is one in-memory buffer slot managed by the BufferPool. It holds
// the raw bytes of a page plus the bookkeeping the pool needs to decide
// whether the frame can be evicted.
type PageFrame struct {
	// Bytes holds the raw physical content of the page.
	Bytes [common.PageSize]byte

	sync.Mutex
	file     FileID
	pageNum  int32
	bound    bool
	pinCount int
	refBit   bool
	dirty    bool
}

func (frame *PageFrame) key() pageKey {
	return pageKey{file: frame.file, pageNum: frame.pageNum}
}

// PageHandle is a pinned reference to a PageFrame. Callers obtain one from
// BufferPool.GetPage/AllocatePage and must release it with UnpinPage on every
// exit path, including error paths.
type PageHandle struct {
	frame   *PageFrame
	file    FileID
	pageNum int32
}

// PageNum returns the page number this handle refers to within its file.
func (h *PageHandle) PageNum() int32 {
	return h.pageNum
}

// Data returns the raw page bytes. The slice is only valid while the handle
// remains pinned.
func (h *PageHandle) Data() []byte {
	return h.frame.Bytes[:]
}
