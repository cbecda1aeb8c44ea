// Package btree implements a disk-resident, variable-order B+-tree index:
// one node per page, leaves linked for range iteration, with split, merge
// and redistribution rebalancing. Key comparison dispatches on an attribute
// type exactly like record filters do; duplicate attribute values are
// admitted by breaking ties on the associated RID.
package btree

import (
	"encoding/binary"

	"coredb/common"
	"coredb/storage"
)

// headerOffsets into page 0 of an index file.
const (
	offAttrLength = 0
	offKeyLength  = 4
	offAttrType   = 8
	offRootPage   = 12
	offOrder      = 16
)

// File is one B+-tree index, backed by a single buffer-pool file.
type File struct {
	pool   *storage.BufferPool
	fileID storage.FileID

	attrType   common.AttrType
	attrLength int32
	keyLength  int32
	order      int32
	maxSlots   int32
	keysOffset int32
	ridsOffset int32

	rootPage int32
}

func layoutFor(keyLength, order int32) (maxSlots, keysOffset, ridsOffset int32) {
	maxSlots = order + 2
	keysOffset = nodeHeaderSize
	ridsOffset = keysOffset + maxSlots*keyLength
	return
}

// computeOrder picks the largest even order >= 2 such that
// 2*(order+2)*(key_length+sizeof(RID)) + node_fixed_size <= page_size.
func computeOrder(keyLength int32) int32 {
	best := int32(2)
	for order := int32(2); ; order += 2 {
		size := 2*(order+2)*(keyLength+common.RIDSize) + nodeHeaderSize
		if size > common.PageSize {
			break
		}
		best = order
	}
	return best
}

func (f *File) writeFileHeader(data []byte) {
	binary.LittleEndian.PutUint32(data[offAttrLength:], uint32(f.attrLength))
	binary.LittleEndian.PutUint32(data[offKeyLength:], uint32(f.keyLength))
	binary.LittleEndian.PutUint32(data[offAttrType:], uint32(f.attrType))
	binary.LittleEndian.PutUint32(data[offRootPage:], uint32(f.rootPage))
	binary.LittleEndian.PutUint32(data[offOrder:], uint32(f.order))
}

func (f *File) readFileHeader(data []byte) {
	f.attrLength = int32(binary.LittleEndian.Uint32(data[offAttrLength:]))
	f.keyLength = int32(binary.LittleEndian.Uint32(data[offKeyLength:]))
	f.attrType = common.AttrType(binary.LittleEndian.Uint32(data[offAttrType:]))
	f.rootPage = int32(binary.LittleEndian.Uint32(data[offRootPage:]))
	f.order = int32(binary.LittleEndian.Uint32(data[offOrder:]))
}

// Create initializes a brand-new index file at path: page 0 is the file
// header, page 1 is an empty leaf that becomes the initial root.
func Create(pool *storage.BufferPool, path string, attrType common.AttrType, attrLength int32) (*File, error) {
	keyLength := int32(common.AttrStorageLength(attrType, int(attrLength)))
	return create(pool, path, attrType, attrLength, computeOrder(keyLength))
}

func create(pool *storage.BufferPool, path string, attrType common.AttrType, attrLength, order int32) (*File, error) {
	id, err := pool.OpenFile(path)
	if err != nil {
		return nil, err
	}
	count, err := pool.GetPageCount(id)
	if err != nil {
		return nil, err
	}
	common.Assert(count == 0, "index file %s already initialized", path)
	common.Assert(order >= 2 && order%2 == 0, "order must be even and >= 2, got %d", order)

	keyLength := int32(common.AttrStorageLength(attrType, int(attrLength)))
	maxSlots, keysOffset, ridsOffset := layoutFor(keyLength, order)
	common.Assert(int(ridsOffset+maxSlots*common.RIDSize) <= common.PageSize, "order %d does not fit in a page", order)

	f := &File{
		pool:       pool,
		fileID:     id,
		attrType:   attrType,
		attrLength: attrLength,
		keyLength:  keyLength,
		order:      order,
		maxSlots:   maxSlots,
		keysOffset: keysOffset,
		ridsOffset: ridsOffset,
		rootPage:   1,
	}

	headerHandle, err := pool.AllocatePage(id)
	if err != nil {
		return nil, err
	}
	common.Assert(headerHandle.PageNum() == 0, "index file header must be page 0")
	f.writeFileHeader(headerHandle.Data())
	pool.UnpinPage(headerHandle, true)

	rootHandle, err := pool.AllocatePage(id)
	if err != nil {
		return nil, err
	}
	common.Assert(rootHandle.PageNum() == 1, "index initial root must be page 1")
	n := initNode(f, rootHandle, true, -1, -1, -1)
	n.release(true)

	return f, nil
}

// Open reads the header of an already-created index file at path.
func Open(pool *storage.BufferPool, path string) (*File, error) {
	id, err := pool.OpenFile(path)
	if err != nil {
		return nil, err
	}
	h, err := pool.GetPage(id, 0)
	if err != nil {
		return nil, err
	}
	f := &File{pool: pool, fileID: id}
	f.readFileHeader(h.Data())
	f.maxSlots, f.keysOffset, f.ridsOffset = layoutFor(f.keyLength, f.order)
	pool.UnpinPage(h, false)
	return f, nil
}

// FileID exposes the underlying buffer-pool file identity.
func (f *File) FileID() storage.FileID {
	return f.fileID
}

// AttrType returns the attribute type keys are compared as.
func (f *File) AttrType() common.AttrType {
	return f.attrType
}

func (f *File) setRootPage(page int32) {
	f.rootPage = page
	h, err := f.pool.GetPage(f.fileID, 0)
	common.Assert(err == nil, "index header page must always be resident: %v", err)
	f.writeFileHeader(h.Data())
	f.pool.UnpinPage(h, true)
}

func (f *File) compareKeys(a, b []byte) int {
	return common.CompareKeyBytes(f.attrType, int(f.attrLength), a, b)
}

// compareEntries implements the composite (key, rid) total order ties are
// broken by.
func (f *File) compareEntries(keyA []byte, ridA common.RID, keyB []byte, ridB common.RID) int {
	if c := f.compareKeys(keyA, keyB); c != 0 {
		return c
	}
	switch {
	case ridA.Less(ridB):
		return -1
	case ridB.Less(ridA):
		return 1
	default:
		return 0
	}
}
