package record

import (
	"coredb/common"
	"coredb/storage"
)

// File coordinates record pages inside one data file. Page 0 is reserved
// (metadata lives above this layer); pages 1.. hold record pages.
type File struct {
	pool           *storage.BufferPool
	file           storage.FileID
	recordRealSize int32

	cached *Page
}

// CreateFile opens (creating) the file at path and reserves page 0.
func CreateFile(pool *storage.BufferPool, path string, recordRealSize int32) (*File, error) {
	id, err := pool.OpenFile(path)
	if err != nil {
		return nil, err
	}
	count, err := pool.GetPageCount(id)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		h, err := pool.AllocatePage(id)
		if err != nil {
			return nil, err
		}
		pool.UnpinPage(h, true)
	}
	return &File{pool: pool, file: id, recordRealSize: recordRealSize}, nil
}

// OpenFile opens an already-created data file at path.
func OpenFile(pool *storage.BufferPool, path string, recordRealSize int32) (*File, error) {
	return CreateFile(pool, path, recordRealSize)
}

// FileID exposes the underlying buffer-pool file identity, for components
// (the B+-tree scanner's host table, the handler's flush path) that need it.
func (f *File) FileID() storage.FileID {
	return f.file
}

// Close releases the cached page, if any. It does not close the underlying
// buffer-pool file; the handler owns that lifecycle.
func (f *File) Close() {
	f.setCached(nil)
}

func (f *File) setCached(p *Page) {
	if f.cached != nil && f.cached != p {
		f.cached.Release(false)
	}
	f.cached = p
}

func (f *File) pageCount() (int32, error) {
	return f.pool.GetPageCount(f.file)
}

// InsertRecord probes pages starting from the cached page number (wrapping
// modulo the number of data pages, page 0 excluded) for the first one with
// free space, skipping disposed pages, and falls back to allocating a new
// page (which reuses a disposed page number when one is free).
func (f *File) InsertRecord(data []byte) (common.RID, error) {
	count, err := f.pageCount()
	if err != nil {
		return common.NilRID, err
	}
	numDataPages := count - 1

	if numDataPages > 0 {
		start := int32(1)
		if f.cached != nil {
			start = f.cached.PageNum()
		}
		for i := int32(0); i < numDataPages; i++ {
			pageNum := 1 + (start-1+i)%numDataPages

			var p *Page
			if f.cached != nil && f.cached.PageNum() == pageNum {
				p = f.cached
			} else {
				p, err = OpenPage(f.pool, f.file, pageNum)
				if err != nil {
					if common.CodeOf(err) == common.CodeBufferPoolInvalidPageNum {
						continue
					}
					return common.NilRID, err
				}
			}

			if !p.IsFull() {
				rid, err := p.InsertRecord(data)
				f.setCached(p)
				return rid, err
			}
			if p != f.cached {
				p.Release(false)
			}
		}
	}

	h, err := f.pool.AllocatePage(f.file)
	if err != nil {
		return common.NilRID, err
	}
	newPage := InitEmptyPage(f.pool, f.file, h, f.recordRealSize)
	rid, err := newPage.InsertRecord(data)
	if err != nil {
		newPage.Release(true)
		return common.NilRID, err
	}
	f.setCached(newPage)
	return rid, nil
}

// pageFor returns the Page for rid, reusing the cached page when possible,
// along with a release function the caller must invoke exactly once.
func (f *File) pageFor(rid common.RID) (*Page, func(), error) {
	if f.cached != nil && f.cached.PageNum() == rid.PageNum {
		return f.cached, func() {}, nil
	}
	p, err := OpenPage(f.pool, f.file, rid.PageNum)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Release(false) }, nil
}

// UpdateRecord overwrites the bytes at rid.
func (f *File) UpdateRecord(rid common.RID, data []byte) error {
	p, release, err := f.pageFor(rid)
	if err != nil {
		return err
	}
	defer release()
	return p.UpdateRecord(rid, data)
}

// DeleteRecord removes the record at rid, disposing its page through the
// buffer pool if that empties it. If the disposed page was the cached page,
// the cache is invalidated.
func (f *File) DeleteRecord(rid common.RID) error {
	if f.cached != nil && f.cached.PageNum() == rid.PageNum {
		err := f.cached.DeleteRecord(rid)
		if f.cached.IsDisposed() {
			f.cached = nil
		}
		return err
	}

	p, err := OpenPage(f.pool, f.file, rid.PageNum)
	if err != nil {
		return err
	}
	err = p.DeleteRecord(rid)
	if !p.IsDisposed() {
		p.Release(true)
	}
	return err
}

// GetRecord returns a copy of the record at rid. Unlike Page.GetRecord
// (which hands out a zero-copy borrow for as long as the caller holds the
// page), File.GetRecord copies out immediately and releases any transient
// page it opened, so callers never need to manage page-pin lifetime.
func (f *File) GetRecord(rid common.RID) ([]byte, error) {
	p, release, err := f.pageFor(rid)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := p.GetRecord(rid)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}
