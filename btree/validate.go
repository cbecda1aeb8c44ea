package btree

import "coredb/common"

// ValidateTree walks the whole tree checking sortedness within each node,
// the minimum fill factor on every non-root node, parent back-pointers,
// separator keys against child subtree minimums, and the leaf sibling
// chain's ordering and back-links. It is a diagnostic/testing aid, not
// something the read/write paths call. If expectedKeyCount is given, the
// leaf chain's total key count must match it, catching a lost or duplicated
// entry that sortedness checks alone would miss.
func (f *File) ValidateTree(expectedKeyCount ...int32) error {
	if err := f.validateSubtree(f.rootPage, noPage, true); err != nil {
		return err
	}
	count, err := f.validateLeafChain()
	if err != nil {
		return err
	}
	if len(expectedKeyCount) > 0 && count != expectedKeyCount[0] {
		return common.NewError(common.CodeGenericError, "leaf chain holds %d keys, expected %d", count, expectedKeyCount[0])
	}
	return nil
}

func (f *File) validateSubtree(pageNum, expectedParent int32, isRoot bool) error {
	n, err := bindNode(f, pageNum)
	if err != nil {
		return err
	}
	defer n.release(false)

	if n.parent != expectedParent {
		return common.NewError(common.CodeGenericError, "node %d has parent %d, expected %d", pageNum, n.parent, expectedParent)
	}
	if !isRoot && n.keyNum < f.minKeyNum(n.isLeaf) {
		return common.NewError(common.CodeGenericError, "node %d has %d keys, below minimum %d", pageNum, n.keyNum, f.minKeyNum(n.isLeaf))
	}
	if n.keyNum > f.order {
		return common.NewError(common.CodeGenericError, "node %d has %d keys, exceeds order %d", pageNum, n.keyNum, f.order)
	}
	for i := int32(1); i < n.keyNum; i++ {
		if f.compareKeys(n.keyAt(i-1), n.keyAt(i)) > 0 {
			return common.NewError(common.CodeGenericError, "node %d keys out of order at index %d", pageNum, i)
		}
	}

	if n.isLeaf {
		return nil
	}
	for i := int32(0); i <= n.keyNum; i++ {
		child := n.childAt(i)
		if err := f.validateSubtree(child, pageNum, false); err != nil {
			return err
		}
		if i > 0 {
			minKey, err := f.minKeyOf(child)
			if err != nil {
				return err
			}
			if minKey != nil && f.compareKeys(n.keyAt(i-1), minKey) != 0 {
				return common.NewError(common.CodeGenericError, "separator %d at node %d does not match child %d's minimum key", i-1, pageNum, child)
			}
		}
	}
	return nil
}

func (f *File) minKeyOf(pageNum int32) ([]byte, error) {
	n, err := bindNode(f, pageNum)
	if err != nil {
		return nil, err
	}
	defer n.release(false)
	if n.isLeaf {
		if n.keyNum == 0 {
			return nil, nil
		}
		return append([]byte{}, n.keyAt(0)...), nil
	}
	return f.minKeyOf(n.childAt(0))
}

// validateLeafChain walks the leaf sibling chain front to back, checking
// prevBrother back-links and cross-leaf sortedness, and returns the total
// number of keys visited so the caller can confirm it matches the expected
// population.
func (f *File) validateLeafChain() (int32, error) {
	pageNum, err := f.firstLeafPage()
	if err != nil {
		return 0, err
	}
	prev := int32(noPage)
	var lastKey []byte
	var count int32
	for pageNum != noPage {
		n, err := bindNode(f, pageNum)
		if err != nil {
			return 0, err
		}
		if n.prevBrother != prev {
			n.release(false)
			return 0, common.NewError(common.CodeGenericError, "leaf %d prevBrother %d does not match actual predecessor %d", pageNum, n.prevBrother, prev)
		}
		for i := int32(0); i < n.keyNum; i++ {
			if lastKey != nil && f.compareKeys(lastKey, n.keyAt(i)) > 0 {
				n.release(false)
				return 0, common.NewError(common.CodeGenericError, "leaf chain not sorted across boundary at page %d", pageNum)
			}
			lastKey = append([]byte{}, n.keyAt(i)...)
			count++
		}
		prev = pageNum
		next := n.nextBrother
		n.release(false)
		pageNum = next
	}
	return count, nil
}
