package btree

import "coredb/common"

// InsertEntry adds (key, rid) to the tree. Duplicate keys are permitted;
// entries with an equal key are ordered by rid.
func (f *File) InsertEntry(key []byte, rid common.RID) error {
	leaf, err := f.findLeaf(key)
	if err != nil {
		return err
	}

	idx := int32(0)
	for idx < leaf.keyNum && f.compareEntries(leaf.keyAt(idx), leaf.ridAt(idx), key, rid) < 0 {
		idx++
	}
	leaf.insertLeafEntry(idx, key, rid)
	leaf.markDirty()

	if idx == 0 {
		if err := f.propagateMinKeyChange(leaf.pageNum(), leaf.parent, key); err != nil {
			leaf.release(true)
			return err
		}
	}

	if leaf.keyNum <= f.order {
		leaf.release(true)
		return nil
	}
	return f.splitLeaf(leaf)
}

// propagateMinKeyChange fixes up ancestor separator keys after childPage's
// minimum key changed, walking upward only while childPage is the leftmost
// child at each level (a separator key equals the minimum key of its right
// subtree, so it only needs correcting at the first level where the
// changed subtree is not the leftmost one).
func (f *File) propagateMinKeyChange(childPage, parentPage int32, newMinKey []byte) error {
	current := childPage
	parent := parentPage
	for parent != noPage {
		p, err := bindNode(f, parent)
		if err != nil {
			return err
		}
		idx := int32(-1)
		for i := int32(0); i <= p.keyNum; i++ {
			if p.childAt(i) == current {
				idx = i
				break
			}
		}
		common.Assert(idx != -1, "child page %d not found under claimed parent %d", current, parent)
		if idx > 0 {
			p.setKeyAt(idx-1, newMinKey)
			p.markDirty()
			p.release(true)
			return nil
		}
		next := p.parent
		p.release(false)
		current = parent
		parent = next
	}
	return nil
}

func (f *File) setNodeParent(page, parent int32) error {
	n, err := bindNode(f, page)
	if err != nil {
		return err
	}
	n.parent = parent
	n.writeHeader()
	n.release(true)
	return nil
}

// splitLeaf splits an overflowed leaf (pinned, keyNum == order+1) into two
// leaves linked by sibling pointers, then propagates the new right leaf's
// minimum key into the parent.
func (f *File) splitLeaf(leaf *node) error {
	mid := leaf.keyNum / 2
	rightCount := leaf.keyNum - mid

	newRight, err := allocateNode(f, true, leaf.parent, leaf.pageNum(), leaf.nextBrother)
	if err != nil {
		leaf.release(true)
		return err
	}
	for i := int32(0); i < rightCount; i++ {
		newRight.setKeyAt(i, leaf.keyAt(mid+i))
		newRight.setRIDAt(i, leaf.ridAt(mid+i))
	}
	newRight.keyNum = rightCount
	newRight.writeHeader()

	oldNext := leaf.nextBrother
	leaf.keyNum = mid
	leaf.nextBrother = newRight.pageNum()
	leaf.writeHeader()

	if oldNext != noPage {
		nn, err := bindNode(f, oldNext)
		if err != nil {
			leaf.release(true)
			newRight.release(true)
			return err
		}
		nn.prevBrother = newRight.pageNum()
		nn.writeHeader()
		nn.release(true)
	}

	parentPage := leaf.parent
	oldPage := leaf.pageNum()
	newPage := newRight.pageNum()
	promotedKey := append([]byte{}, newRight.keyAt(0)...)

	leaf.release(true)
	newRight.release(true)
	return f.insertIntoParent(parentPage, oldPage, promotedKey, newPage)
}

// insertIntoParent inserts a new separator key and child page into
// oldChildPage's parent after oldChildPage split into (oldChildPage,
// newChildPage). If oldChildPage has no parent (it was the root), a new
// root is allocated above both.
func (f *File) insertIntoParent(parentPage, oldChildPage int32, key []byte, newChildPage int32) error {
	if parentPage == noPage {
		newRoot, err := allocateNode(f, false, noPage, noPage, noPage)
		if err != nil {
			return err
		}
		newRoot.setChildAt(0, oldChildPage)
		newRoot.insertChildAfterSplit(0, key, newChildPage)
		newRoot.markDirty()
		newRootPage := newRoot.pageNum()
		newRoot.release(true)

		f.setRootPage(newRootPage)
		if err := f.setNodeParent(oldChildPage, newRootPage); err != nil {
			return err
		}
		return f.setNodeParent(newChildPage, newRootPage)
	}

	parent, err := bindNode(f, parentPage)
	if err != nil {
		return err
	}
	idx := int32(-1)
	for i := int32(0); i <= parent.keyNum; i++ {
		if parent.childAt(i) == oldChildPage {
			idx = i
			break
		}
	}
	common.Assert(idx != -1, "split child %d not found in parent %d", oldChildPage, parentPage)

	parent.insertChildAfterSplit(idx, key, newChildPage)
	overflow := parent.keyNum > f.order
	parent.markDirty()

	if err := f.setNodeParent(newChildPage, parentPage); err != nil {
		parent.release(true)
		return err
	}
	if overflow {
		return f.splitInternal(parent)
	}
	parent.release(true)
	return nil
}

// splitInternal splits an overflowed internal node (pinned, keyNum ==
// order+1), promoting the median key to the parent rather than keeping it
// on either side.
func (f *File) splitInternal(n *node) error {
	mid := n.keyNum / 2
	rightKeyCount := n.keyNum - mid - 1
	promotedKey := append([]byte{}, n.keyAt(mid)...)

	newRight, err := allocateNode(f, false, n.parent, noPage, noPage)
	if err != nil {
		n.release(true)
		return err
	}
	for i := int32(0); i < rightKeyCount; i++ {
		newRight.setKeyAt(i, n.keyAt(mid+1+i))
	}
	for i := int32(0); i <= rightKeyCount; i++ {
		newRight.setChildAt(i, n.childAt(mid+1+i))
	}
	newRight.keyNum = rightKeyCount
	newRight.writeHeader()

	n.keyNum = mid
	n.writeHeader()

	newRightPage := newRight.pageNum()
	for i := int32(0); i <= rightKeyCount; i++ {
		if err := f.setNodeParent(newRight.childAt(i), newRightPage); err != nil {
			n.release(true)
			newRight.release(true)
			return err
		}
	}

	parentPage := n.parent
	oldPage := n.pageNum()
	n.release(true)
	newRight.release(true)
	return f.insertIntoParent(parentPage, oldPage, promotedKey, newRightPage)
}
