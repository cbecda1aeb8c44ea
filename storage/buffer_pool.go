package storage

import (
	"runtime"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"coredb/common"
)

// FileID names a file opened through a BufferPool. It is only meaningful
// relative to the pool that issued it.
type FileID int32

type pageKey struct {
	file    FileID
	pageNum int32
}

// maxScanSize bounds how many frames the clock sweep visits while still
// respecting the reference bit before giving up and taking whatever is next.
const maxScanSize = 64

// strideSize is how many frames we advance before yielding to the scheduler,
// to avoid spinning a tight busy loop under contention.
const strideSize = 64

// BufferPool is the paged-record-storage and B+-tree index layers' sole
// point of contact with disk: it maps (file, page_num) to a pinned frame,
// evicting via a clock-sweep policy when the pool is at capacity. Every
// method is safe for concurrent use, even though the core layered on top
// (record/btree/txn/table/handler) drives it from a single execution
// context per spec's concurrency model — the pool is a reusable external
// collaborator and keeping it thread-safe costs nothing.
type BufferPool struct {
	frames    []PageFrame
	clockHand uint64
	pageTable *xsync.MapOf[pageKey, *PageFrame]

	files      *xsync.MapOf[FileID, DBFile]
	pathToFile *xsync.MapOf[string, FileID]
	nextFileID atomic.Int32
}

// NewBufferPool creates a pool with a fixed capacity of numPages frames.
func NewBufferPool(numPages int) *BufferPool {
	common.Assert(numPages > 0, "buffer pool must have at least one frame")
	return &BufferPool{
		frames:     make([]PageFrame, numPages),
		pageTable:  xsync.NewMapOf[pageKey, *PageFrame](),
		files:      xsync.NewMapOf[FileID, DBFile](),
		pathToFile: xsync.NewMapOf[string, FileID](),
	}
}

// OpenFile opens (creating if necessary) the file at path and returns a
// FileID for subsequent page operations. Opening the same path twice returns
// the same FileID without reopening the underlying handle.
func (bp *BufferPool) OpenFile(path string) (FileID, error) {
	if id, ok := bp.pathToFile.Load(path); ok {
		return id, nil
	}

	f, err := OpenDiskDBFile(path)
	if err != nil {
		return 0, err
	}

	id := FileID(bp.nextFileID.Add(1))
	actualID, loaded := bp.pathToFile.LoadOrStore(path, id)
	if loaded {
		_ = f.Close()
		return actualID, nil
	}
	bp.files.Store(id, f)
	return id, nil
}

// CloseFile flushes and closes the file identified by id. The caller must
// ensure no pages of this file remain pinned.
func (bp *BufferPool) CloseFile(id FileID) error {
	file, ok := bp.files.LoadAndDelete(id)
	if !ok {
		return common.NewError(common.CodeInvalidArgument, "unknown file id %d", id)
	}

	bp.pageTable.Range(func(key pageKey, frame *PageFrame) bool {
		if key.file != id {
			return true
		}
		frame.Lock()
		if frame.dirty {
			_ = file.WritePage(frame.pageNum, frame.Bytes[:])
		}
		frame.bound = false
		frame.Unlock()
		bp.pageTable.Delete(key)
		return true
	})

	bp.pathToFile.Range(func(path string, storedID FileID) bool {
		if storedID == id {
			bp.pathToFile.Delete(path)
		}
		return true
	})

	return file.Close()
}

func (bp *BufferPool) fileFor(id FileID) (DBFile, error) {
	file, ok := bp.files.Load(id)
	if !ok {
		return nil, common.NewError(common.CodeInvalidArgument, "unknown file id %d", id)
	}
	return file, nil
}

func tryTouchPage(frame *PageFrame, key pageKey) bool {
	frame.Lock()
	defer frame.Unlock()
	if !frame.bound || frame.key() != key {
		return false
	}
	frame.pinCount++
	frame.refBit = true
	return true
}

func (bp *BufferPool) findVictim() *PageFrame {
	numFrames := uint64(len(bp.frames))
	numIters := 0
	for {
		for i := uint64(0); i < strideSize; i++ {
			idx := atomic.AddUint64(&bp.clockHand, 1) % numFrames
			frame := &bp.frames[idx]
			if !frame.TryLock() {
				continue
			}
			if frame.pinCount > 0 {
				frame.Unlock()
				continue
			}
			if numIters >= maxScanSize || !frame.refBit {
				return frame
			}
			frame.refBit = false
			frame.Unlock()
			numIters++
		}
		runtime.Gosched()
	}
}

// evict flushes victim if dirty and bound. victim must be locked; it is
// returned still locked.
func (bp *BufferPool) evict(victim *PageFrame) error {
	if !victim.bound {
		return nil
	}
	if victim.dirty {
		file, err := bp.fileFor(victim.file)
		if err != nil {
			return err
		}
		if err := file.WritePage(victim.pageNum, victim.Bytes[:]); err != nil {
			return err
		}
	}
	return nil
}

// GetPage pins and returns the frame holding (file, pageNum), loading it
// from disk if not already resident.
func (bp *BufferPool) GetPage(file FileID, pageNum int32) (*PageHandle, error) {
	key := pageKey{file: file, pageNum: pageNum}
	for {
		if frame, ok := bp.pageTable.Load(key); ok {
			if tryTouchPage(frame, key) {
				return &PageHandle{frame: frame, file: file, pageNum: pageNum}, nil
			}
			continue
		}

		f, err := bp.fileFor(file)
		if err != nil {
			return nil, err
		}

		victim := bp.findVictim()

		actual, loaded := bp.pageTable.LoadOrStore(key, victim)
		if loaded {
			victim.Unlock()
			if tryTouchPage(actual, key) {
				return &PageHandle{frame: actual, file: file, pageNum: pageNum}, nil
			}
			continue
		}

		if err := bp.evict(victim); err != nil {
			victim.Unlock()
			bp.pageTable.Delete(key)
			return nil, err
		}
		if victim.bound {
			bp.pageTable.Delete(victim.key())
		}

		if err := f.ReadPage(pageNum, victim.Bytes[:]); err != nil {
			victim.Unlock()
			bp.pageTable.Delete(key)
			return nil, err
		}

		victim.file = file
		victim.pageNum = pageNum
		victim.bound = true
		victim.pinCount = 1
		victim.refBit = false
		victim.dirty = false
		victim.Unlock()
		return &PageHandle{frame: victim, file: file, pageNum: pageNum}, nil
	}
}

// AllocatePage grows the file by (or reuses) one page and returns it pinned,
// zeroed and marked dirty.
func (bp *BufferPool) AllocatePage(file FileID) (*PageHandle, error) {
	f, err := bp.fileFor(file)
	if err != nil {
		return nil, err
	}
	pageNum, err := f.AllocatePage()
	if err != nil {
		return nil, err
	}

	key := pageKey{file: file, pageNum: pageNum}
	victim := bp.findVictim()

	actual, loaded := bp.pageTable.LoadOrStore(key, victim)
	if loaded {
		victim.Unlock()
		victim = actual
		victim.Lock()
	} else {
		if err := bp.evict(victim); err != nil {
			victim.Unlock()
			bp.pageTable.Delete(key)
			return nil, err
		}
		if victim.bound {
			bp.pageTable.Delete(victim.key())
		}
	}

	for i := range victim.Bytes {
		victim.Bytes[i] = 0
	}
	victim.file = file
	victim.pageNum = pageNum
	victim.bound = true
	victim.pinCount = 1
	victim.refBit = false
	victim.dirty = true
	victim.Unlock()
	return &PageHandle{frame: victim, file: file, pageNum: pageNum}, nil
}

// DisposePage returns a page to its file's free list for reuse. The page
// must not be pinned; if it is currently resident, it is dropped from the
// pool without flushing, since the underlying file marks the page number
// itself invalid until reallocated — any ReadPage/WritePage against it
// (GetPage included) fails with CodeBufferPoolInvalidPageNum rather than
// observing stale or zeroed bytes.
func (bp *BufferPool) DisposePage(file FileID, pageNum int32) error {
	f, err := bp.fileFor(file)
	if err != nil {
		return err
	}

	key := pageKey{file: file, pageNum: pageNum}
	if frame, ok := bp.pageTable.Load(key); ok {
		frame.Lock()
		common.Assert(frame.pinCount == 0, "disposing a pinned page")
		frame.bound = false
		frame.dirty = false
		frame.Unlock()
		bp.pageTable.Delete(key)
	}

	return f.DisposePage(pageNum)
}

// GetPageCount returns the number of pages ever allocated in file.
func (bp *BufferPool) GetPageCount(file FileID) (int32, error) {
	f, err := bp.fileFor(file)
	if err != nil {
		return 0, err
	}
	return f.NumPages()
}

// MarkDirty flags the page behind handle as modified, so it is written back
// before eviction or on the next flush.
func (bp *BufferPool) MarkDirty(handle *PageHandle) {
	frame := handle.frame
	frame.Lock()
	frame.dirty = true
	frame.Unlock()
}

// UnpinPage releases the pin taken by GetPage/AllocatePage. setDirty is
// shorthand for MarkDirty followed by Unpin.
func (bp *BufferPool) UnpinPage(handle *PageHandle, setDirty bool) {
	frame := handle.frame
	frame.Lock()
	defer frame.Unlock()
	common.Assert(frame.pinCount > 0, "unpinning a page that is not pinned")
	frame.pinCount--
	if setDirty {
		frame.dirty = true
	}
}

// PurgeAllPages evicts every resident page of file without flushing,
// discarding any unwritten modifications. Pinned pages are left in place and
// reported through the returned error.
func (bp *BufferPool) PurgeAllPages(file FileID) error {
	var first error
	bp.pageTable.Range(func(key pageKey, frame *PageFrame) bool {
		if key.file != file {
			return true
		}
		frame.Lock()
		if frame.pinCount > 0 {
			frame.Unlock()
			if first == nil {
				first = common.NewError(common.CodeGenericError, "cannot purge pinned page %d", key.pageNum)
			}
			return true
		}
		frame.bound = false
		frame.dirty = false
		frame.Unlock()
		bp.pageTable.Delete(key)
		return true
	})
	return first
}

// FlushAllPages writes every dirty page of file back to disk, regardless of
// pin state.
func (bp *BufferPool) FlushAllPages(file FileID) error {
	f, err := bp.fileFor(file)
	if err != nil {
		return err
	}

	var flushErr error
	bp.pageTable.Range(func(key pageKey, frame *PageFrame) bool {
		if key.file != file {
			return true
		}
		frame.Lock()
		if !frame.dirty {
			frame.Unlock()
			return true
		}
		pageNum := frame.pageNum
		bytesCopy := frame.Bytes
		frame.dirty = false
		frame.Unlock()

		if err := f.WritePage(pageNum, bytesCopy[:]); err != nil {
			flushErr = err
			return false
		}
		return true
	})
	if flushErr != nil {
		return flushErr
	}
	return f.Sync()
}
