// Package record implements the paged tuple store: fixed-slot pages with a
// header and occupancy bitmap (this file), a file-level coordinator that
// locates free space across pages (file.go), and a sequential scanner
// (scanner.go).
package record

import (
	"encoding/binary"

	"coredb/common"
	"coredb/storage"
)

// Page header layout (all fields little-endian int32):
//
//	record_num | record_capacity | record_real_size | record_size | first_record_offset
//
// padded to headerFixedSize bytes, followed by the occupancy bitmap, followed
// by the packed record slots starting at first_record_offset.
const (
	offRecordNum         = 0
	offRecordCapacity    = 4
	offRecordRealSize    = 8
	offRecordSize        = 12
	offFirstRecordOffset = 16
	headerFixedSize      = 24
)

// Page is a bound view over one pinned page frame, imposing the slot layout
// described above. A Page becomes unusable once DeleteRecord empties it and
// disposes the underlying frame; IsDisposed reports that state.
type Page struct {
	pool   *storage.BufferPool
	file   storage.FileID
	handle *storage.PageHandle

	recordNum          int32
	recordCapacity     int32
	recordRealSize     int32
	recordSize         int32
	firstRecordOffset  int32

	bitmap   storage.Bitmap
	disposed bool
}

// capacityFor returns the maximum slot count and the 8-byte-aligned slot
// size for a tuple of recordRealSize bytes, per the invariant that
// c*record_size + bitmap_bytes + header_fixed_size must not exceed the page
// size. bitmap_bytes is rounded up to a whole number of 64-bit words (the
// same rounding storage.Bitmap itself requires), matching how the teacher's
// heap page sizes its own allocation bitmap.
func capacityFor(recordRealSize int32) (capacity int32, recordSize int32) {
	recordSize = int32(common.Align8(int(recordRealSize)))
	common.Assert(recordSize > 0, "record size must be positive")

	upperBound := (common.PageSize - headerFixedSize) / int(recordSize)
	for c := int32(upperBound); c >= 0; c-- {
		bitmapBytes := common.Align8((int(c) + 7) / 8)
		if int(c)*int(recordSize)+bitmapBytes+headerFixedSize <= common.PageSize {
			return c, recordSize
		}
	}
	return 0, recordSize
}

func (p *Page) readHeader() {
	data := p.handle.Data()
	p.recordNum = int32(binary.LittleEndian.Uint32(data[offRecordNum:]))
	p.recordCapacity = int32(binary.LittleEndian.Uint32(data[offRecordCapacity:]))
	p.recordRealSize = int32(binary.LittleEndian.Uint32(data[offRecordRealSize:]))
	p.recordSize = int32(binary.LittleEndian.Uint32(data[offRecordSize:]))
	p.firstRecordOffset = int32(binary.LittleEndian.Uint32(data[offFirstRecordOffset:]))
}

func (p *Page) writeHeader() {
	data := p.handle.Data()
	binary.LittleEndian.PutUint32(data[offRecordNum:], uint32(p.recordNum))
	binary.LittleEndian.PutUint32(data[offRecordCapacity:], uint32(p.recordCapacity))
	binary.LittleEndian.PutUint32(data[offRecordRealSize:], uint32(p.recordRealSize))
	binary.LittleEndian.PutUint32(data[offRecordSize:], uint32(p.recordSize))
	binary.LittleEndian.PutUint32(data[offFirstRecordOffset:], uint32(p.firstRecordOffset))
}

func (p *Page) bindBitmap() {
	bitmapBytes := common.Align8((int(p.recordCapacity) + 7) / 8)
	p.bitmap = storage.AsBitmap(p.handle.Data()[headerFixedSize:headerFixedSize+bitmapBytes], int(p.recordCapacity))
}

// OpenPage pins pageNum of file and interprets its existing header and
// bitmap. The page must already have been initialized by InitEmptyPage.
func OpenPage(pool *storage.BufferPool, file storage.FileID, pageNum int32) (*Page, error) {
	handle, err := pool.GetPage(file, pageNum)
	if err != nil {
		return nil, err
	}
	p := &Page{pool: pool, file: file, handle: handle}
	p.readHeader()
	common.Assert(p.recordCapacity > 0 && p.recordSize > 0, "page %d is not an initialized record page", pageNum)
	p.bindBitmap()
	return p, nil
}

// InitEmptyPage lays out a brand-new record page over an already-pinned,
// freshly allocated handle (handle.Data() must be all zero, as
// BufferPool.AllocatePage guarantees). The caller retains ownership of
// handle; InitEmptyPage only writes the header and binds the bitmap.
func InitEmptyPage(pool *storage.BufferPool, file storage.FileID, handle *storage.PageHandle, recordRealSize int32) *Page {
	capacity, recordSize := capacityFor(recordRealSize)
	common.Assert(capacity > 0, "record of size %d does not fit on a page", recordRealSize)

	p := &Page{
		pool:           pool,
		file:           file,
		handle:         handle,
		recordNum:      0,
		recordCapacity: capacity,
		recordRealSize: recordRealSize,
		recordSize:     recordSize,
	}
	bitmapBytes := common.Align8((int(capacity) + 7) / 8)
	p.firstRecordOffset = int32(common.Align8(headerFixedSize + bitmapBytes))
	p.writeHeader()
	p.bindBitmap()
	pool.MarkDirty(handle)
	return p
}

// PageNum returns the page number backing this handle.
func (p *Page) PageNum() int32 {
	common.Assert(!p.disposed, "operating on a disposed record page")
	return p.handle.PageNum()
}

// IsDisposed reports whether DeleteRecord has already emptied and disposed
// this page. No further operations may be performed on it.
func (p *Page) IsDisposed() bool {
	return p.disposed
}

// IsFull reports whether the page has no free slot for another record.
func (p *Page) IsFull() bool {
	common.Assert(!p.disposed, "operating on a disposed record page")
	return p.recordNum == p.recordCapacity
}

// Release unpins the page, marking it dirty if setDirty is true. A disposed
// page has already been unpinned by DeleteRecord and Release is a no-op.
func (p *Page) Release(setDirty bool) {
	if p.disposed {
		return
	}
	p.pool.UnpinPage(p.handle, setDirty)
}

func (p *Page) slotOffset(slot int32) int {
	return int(p.firstRecordOffset) + int(slot)*int(p.recordSize)
}

// InsertRecord finds the lowest clear bit in the bitmap, copies data into
// that slot and returns its RID. Fails with CodeRecordNoMem if the page is
// full.
func (p *Page) InsertRecord(data []byte) (common.RID, error) {
	common.Assert(!p.disposed, "operating on a disposed record page")
	common.Assert(len(data) == int(p.recordRealSize), "record size mismatch")

	if p.recordNum == p.recordCapacity {
		return common.NilRID, common.NewError(common.CodeRecordNoMem, "page %d is full", p.PageNum())
	}

	slot := p.bitmap.FindFirstZero(0)
	common.Assert(slot != -1, "bitmap reports free slot count but has none")

	p.bitmap.SetBit(slot, true)
	offset := p.slotOffset(int32(slot))
	copy(p.handle.Data()[offset:offset+int(p.recordRealSize)], data)

	p.recordNum++
	p.writeHeader()
	p.pool.MarkDirty(p.handle)

	return common.RID{PageNum: p.PageNum(), Slot: int32(slot)}, nil
}

func (p *Page) validateSlot(rid common.RID) error {
	if rid.PageNum != p.PageNum() || rid.Slot < 0 || rid.Slot >= p.recordCapacity {
		return common.NewError(common.CodeInvalidRID, "rid %v does not belong to page %d", rid, p.PageNum())
	}
	return nil
}

// UpdateRecord overwrites the bytes stored at rid's slot.
func (p *Page) UpdateRecord(rid common.RID, data []byte) error {
	common.Assert(!p.disposed, "operating on a disposed record page")
	common.Assert(len(data) == int(p.recordRealSize), "record size mismatch")

	if err := p.validateSlot(rid); err != nil {
		return err
	}
	if !p.bitmap.LoadBit(int(rid.Slot)) {
		return common.NewError(common.CodeRecordNotExist, "rid %v is not occupied", rid)
	}

	offset := p.slotOffset(rid.Slot)
	copy(p.handle.Data()[offset:offset+int(p.recordRealSize)], data)
	p.pool.MarkDirty(p.handle)
	return nil
}

// DeleteRecord clears the slot's bit and decrements record_num. When the
// page becomes empty it unpins and disposes itself through the buffer pool;
// the caller must discard this Page afterwards (IsDisposed reports true).
func (p *Page) DeleteRecord(rid common.RID) error {
	common.Assert(!p.disposed, "operating on a disposed record page")
	if err := p.validateSlot(rid); err != nil {
		return err
	}
	if !p.bitmap.LoadBit(int(rid.Slot)) {
		return common.NewError(common.CodeRecordNotExist, "rid %v is not occupied", rid)
	}

	p.bitmap.SetBit(int(rid.Slot), false)
	p.recordNum--
	p.writeHeader()

	if p.recordNum == 0 {
		pageNum := p.PageNum()
		p.pool.UnpinPage(p.handle, false)
		p.disposed = true
		return p.pool.DisposePage(p.file, pageNum)
	}

	p.pool.MarkDirty(p.handle)
	return nil
}

// GetRecord borrows a slice into the pinned frame for rid. The slice is only
// valid while this Page handle remains unreleased.
func (p *Page) GetRecord(rid common.RID) ([]byte, error) {
	common.Assert(!p.disposed, "operating on a disposed record page")
	if err := p.validateSlot(rid); err != nil {
		return nil, err
	}
	if !p.bitmap.LoadBit(int(rid.Slot)) {
		return nil, common.NewError(common.CodeRecordNotExist, "rid %v is not occupied", rid)
	}
	offset := p.slotOffset(rid.Slot)
	return p.handle.Data()[offset : offset+int(p.recordRealSize)], nil
}

// GetFirstRecord returns the record at the lowest occupied slot, or
// CodeRecordEOF if the page has none.
func (p *Page) GetFirstRecord() ([]byte, common.RID, error) {
	return p.GetNextRecord(-1)
}

// GetNextRecord returns the record at the lowest occupied slot strictly
// after afterSlot, or CodeRecordEOF once no more slots remain.
func (p *Page) GetNextRecord(afterSlot int32) ([]byte, common.RID, error) {
	common.Assert(!p.disposed, "operating on a disposed record page")
	for slot := afterSlot + 1; slot < p.recordCapacity; slot++ {
		if p.bitmap.LoadBit(int(slot)) {
			rid := common.RID{PageNum: p.PageNum(), Slot: slot}
			rec, err := p.GetRecord(rid)
			return rec, rid, err
		}
	}
	return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "no more records on page %d", p.PageNum())
}
