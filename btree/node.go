package btree

import (
	"encoding/binary"

	"coredb/common"
	"coredb/storage"
)

// Node header layout (all fields little-endian int32):
//
//	is_leaf | key_num | parent | prev_brother | next_brother
//
// padded to nodeHeaderSize, followed by maxSlots packed keys, followed by
// maxSlots packed RIDs (for a leaf, rids[i] is the tuple RID for keys[i];
// for an internal node, rids[i].PageNum is the i-th child page number and
// rids[0..key_num] holds key_num+1 live child pointers).
const (
	offIsLeaf      = 0
	offKeyNum      = 4
	offParent      = 8
	offPrevBrother = 12
	offNextBrother = 16
	nodeHeaderSize = 24

	noPage = -1
)

type node struct {
	f      *File
	handle *storage.PageHandle

	isLeaf      bool
	keyNum      int32
	parent      int32
	prevBrother int32
	nextBrother int32
}

func bindNode(f *File, pageNum int32) (*node, error) {
	h, err := f.pool.GetPage(f.fileID, pageNum)
	if err != nil {
		return nil, err
	}
	n := &node{f: f, handle: h}
	n.readHeader()
	return n, nil
}

func initNode(f *File, handle *storage.PageHandle, isLeaf bool, parent, prev, next int32) *node {
	n := &node{
		f:           f,
		handle:      handle,
		isLeaf:      isLeaf,
		keyNum:      0,
		parent:      parent,
		prevBrother: prev,
		nextBrother: next,
	}
	n.writeHeader()
	return n
}

func allocateNode(f *File, isLeaf bool, parent, prev, next int32) (*node, error) {
	h, err := f.pool.AllocatePage(f.fileID)
	if err != nil {
		return nil, err
	}
	return initNode(f, h, isLeaf, parent, prev, next), nil
}

func (n *node) pageNum() int32 {
	return n.handle.PageNum()
}

func (n *node) release(dirty bool) {
	n.f.pool.UnpinPage(n.handle, dirty)
}

func (n *node) readHeader() {
	data := n.handle.Data()
	n.isLeaf = binary.LittleEndian.Uint32(data[offIsLeaf:]) != 0
	n.keyNum = int32(binary.LittleEndian.Uint32(data[offKeyNum:]))
	n.parent = int32(binary.LittleEndian.Uint32(data[offParent:]))
	n.prevBrother = int32(binary.LittleEndian.Uint32(data[offPrevBrother:]))
	n.nextBrother = int32(binary.LittleEndian.Uint32(data[offNextBrother:]))
}

func (n *node) writeHeader() {
	data := n.handle.Data()
	leafVal := uint32(0)
	if n.isLeaf {
		leafVal = 1
	}
	binary.LittleEndian.PutUint32(data[offIsLeaf:], leafVal)
	binary.LittleEndian.PutUint32(data[offKeyNum:], uint32(n.keyNum))
	binary.LittleEndian.PutUint32(data[offParent:], uint32(n.parent))
	binary.LittleEndian.PutUint32(data[offPrevBrother:], uint32(n.prevBrother))
	binary.LittleEndian.PutUint32(data[offNextBrother:], uint32(n.nextBrother))
}

func (n *node) markDirty() {
	n.writeHeader()
	n.f.pool.MarkDirty(n.handle)
}

func (n *node) keyAt(i int32) []byte {
	off := n.f.keysOffset + i*n.f.keyLength
	return n.handle.Data()[off : off+n.f.keyLength]
}

func (n *node) setKeyAt(i int32, key []byte) {
	copy(n.keyAt(i), key)
}

func (n *node) ridAt(i int32) common.RID {
	off := n.f.ridsOffset + i*common.RIDSize
	return common.ReadRID(n.handle.Data()[off:])
}

func (n *node) setRIDAt(i int32, rid common.RID) {
	off := n.f.ridsOffset + i*common.RIDSize
	common.WriteRID(n.handle.Data()[off:], rid)
}

func (n *node) childAt(i int32) int32 {
	common.Assert(!n.isLeaf, "childAt called on a leaf node")
	return n.ridAt(i).PageNum
}

func (n *node) setChildAt(i int32, pageNum int32) {
	common.Assert(!n.isLeaf, "setChildAt called on a leaf node")
	n.setRIDAt(i, common.RID{PageNum: pageNum, Slot: -1})
}

// insertLeafEntry inserts (key, rid) at position i, shifting keys/rids
// [i, keyNum) one slot to the right.
func (n *node) insertLeafEntry(i int32, key []byte, rid common.RID) {
	common.Assert(n.isLeaf, "insertLeafEntry called on an internal node")
	for j := n.keyNum; j > i; j-- {
		n.setKeyAt(j, n.keyAt(j-1))
		n.setRIDAt(j, n.ridAt(j-1))
	}
	n.setKeyAt(i, key)
	n.setRIDAt(i, rid)
	n.keyNum++
}

// removeLeafEntry removes the entry at position i, shifting keys/rids
// (i, keyNum) one slot to the left.
func (n *node) removeLeafEntry(i int32) {
	common.Assert(n.isLeaf, "removeLeafEntry called on an internal node")
	for j := i; j < n.keyNum-1; j++ {
		n.setKeyAt(j, n.keyAt(j+1))
		n.setRIDAt(j, n.ridAt(j+1))
	}
	n.keyNum--
}

// insertChildAfterSplit inserts key at keys[idx] and newChildPage at
// children[idx+1] (the standard "insert into parent after a child split"
// shape: the new key separates the old child at idx from the new sibling).
func (n *node) insertChildAfterSplit(idx int32, key []byte, newChildPage int32) {
	common.Assert(!n.isLeaf, "insertChildAfterSplit called on a leaf")
	for j := n.keyNum; j > idx; j-- {
		n.setKeyAt(j, n.keyAt(j-1))
	}
	n.setKeyAt(idx, key)
	for j := n.keyNum + 1; j > idx+1; j-- {
		n.setRIDAt(j, n.ridAt(j-1))
	}
	n.setChildAt(idx+1, newChildPage)
	n.keyNum++
}

// removeInternalEntry removes the key at keyIdx and the child pointer at
// childIdx, shifting each array left past the removed slot.
func (n *node) removeInternalEntry(keyIdx, childIdx int32) {
	common.Assert(!n.isLeaf, "removeInternalEntry called on a leaf")
	for j := keyIdx; j < n.keyNum-1; j++ {
		n.setKeyAt(j, n.keyAt(j+1))
	}
	for j := childIdx; j < n.keyNum; j++ {
		n.setRIDAt(j, n.ridAt(j+1))
	}
	n.keyNum--
}

// minKeyNum is the lower bound spec invariants require of a non-root node:
// ceil(order/2) keys for a leaf, or ceil(order/2) child pointers (i.e.
// ceil(order/2)-1 keys) for an internal node.
func (f *File) minKeyNum(isLeaf bool) int32 {
	half := (f.order + 1) / 2
	if isLeaf {
		return half
	}
	return half - 1
}
