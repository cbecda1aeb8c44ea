package storage

import (
	"fmt"
	"os"
	"sync"

	"coredb/common"
)

// DBFile abstracts the physical file backing one table's record file or one
// index file. Implementations must be safe for concurrent ReadPage/WritePage
// to distinct pages; AllocatePage/DisposePage are serialized internally.
type DBFile interface {
	// AllocatePage returns the number of a page ready for use: either a page
	// number previously handed back via DisposePage, or a freshly grown one.
	// The caller is responsible for zeroing/initializing its content.
	AllocatePage() (int32, error)
	// DisposePage returns a page number to the free list for later reuse.
	// The caller must ensure the page is unpinned before calling this.
	DisposePage(pageNum int32) error
	// ReadPage reads page pageNum into frame, which must be exactly
	// common.PageSize bytes.
	ReadPage(pageNum int32, frame []byte) error
	// WritePage writes frame to page pageNum, which must be exactly
	// common.PageSize bytes.
	WritePage(pageNum int32, frame []byte) error
	// Sync forces buffered writes to stable storage.
	Sync() error
	// Close releases the underlying OS handle.
	Close() error
	// NumPages returns the number of pages ever allocated in the file
	// (including disposed ones still counted towards the file's extent).
	NumPages() (int32, error)
}

// DiskDBFile implements DBFile over a standard OS file.
type DiskDBFile struct {
	file *os.File

	mu       sync.Mutex
	numPages int32
	freeList []int32
	disposed map[int32]bool
}

// OpenDiskDBFile opens (creating if necessary) the file at path and wraps it
// as a DiskDBFile. Pages already present on disk are preserved; the free
// list starts empty since disposed-page bookkeeping is not itself persisted
// (a reopened file simply never reclaims pages disposed before the close).
func OpenDiskDBFile(path string) (*DiskDBFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &DiskDBFile{
		file:     f,
		numPages: int32(stat.Size() / int64(common.PageSize)),
		disposed: make(map[int32]bool),
	}, nil
}

// AllocatePage pops a disposed page number if one is available, otherwise
// grows the file by one page. A page popped off the free list is removed
// from the disposed set, making it readable/writable again.
func (f *DiskDBFile) AllocatePage() (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := len(f.freeList); n > 0 {
		pageNum := f.freeList[n-1]
		f.freeList = f.freeList[:n-1]
		delete(f.disposed, pageNum)
		return pageNum, nil
	}

	pageNum := f.numPages
	newSize := int64(pageNum+1) * int64(common.PageSize)
	if err := f.file.Truncate(newSize); err != nil {
		return 0, fmt.Errorf("allocate page: %w", err)
	}
	f.numPages = pageNum + 1
	return pageNum, nil
}

// DisposePage returns pageNum to the in-memory free list and marks it
// disposed, so a ReadPage/WritePage against it fails until it is reallocated
// rather than silently observing whatever bytes are still on disk.
func (f *DiskDBFile) DisposePage(pageNum int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	common.Assert(pageNum >= 0 && pageNum < f.numPages, "disposing page outside file extent")
	f.freeList = append(f.freeList, pageNum)
	f.disposed[pageNum] = true
	return nil
}

func (f *DiskDBFile) ReadPage(pageNum int32, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "frame size must equal PageSize")
	f.mu.Lock()
	valid := pageNum >= 0 && pageNum < f.numPages && !f.disposed[pageNum]
	f.mu.Unlock()
	if !valid {
		return common.NewError(common.CodeBufferPoolInvalidPageNum, "page %d does not exist", pageNum)
	}
	_, err := f.file.ReadAt(frame, int64(pageNum)*int64(common.PageSize))
	return err
}

func (f *DiskDBFile) WritePage(pageNum int32, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "frame size must equal PageSize")
	f.mu.Lock()
	valid := pageNum >= 0 && pageNum < f.numPages && !f.disposed[pageNum]
	f.mu.Unlock()
	if !valid {
		return common.NewError(common.CodeBufferPoolInvalidPageNum, "page %d does not exist", pageNum)
	}
	_, err := f.file.WriteAt(frame, int64(pageNum)*int64(common.PageSize))
	return err
}

func (f *DiskDBFile) Sync() error {
	return f.file.Sync()
}

func (f *DiskDBFile) Close() error {
	return f.file.Close()
}

func (f *DiskDBFile) NumPages() (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages, nil
}
