package btree

import "coredb/common"

// findLeaf descends from the root, at each internal node choosing the child
// covering key, and returns the bound (pinned) leaf node.
func (f *File) findLeaf(key []byte) (*node, error) {
	n, err := bindNode(f, f.rootPage)
	if err != nil {
		return nil, err
	}
	for !n.isLeaf {
		idx := int32(-1)
		for i := int32(0); i < n.keyNum; i++ {
			if f.compareKeys(n.keyAt(i), key) <= 0 {
				idx = i
			} else {
				break
			}
		}
		var childPage int32
		if idx == -1 {
			childPage = n.childAt(0)
		} else {
			childPage = n.childAt(idx + 1)
		}
		next, err := bindNode(f, childPage)
		n.release(false)
		if err != nil {
			return nil, err
		}
		n = next
	}
	return n, nil
}

// firstLeafPage returns the page number of the leftmost leaf.
func (f *File) firstLeafPage() (int32, error) {
	pageNum := f.rootPage
	for {
		n, err := bindNode(f, pageNum)
		if err != nil {
			return 0, err
		}
		if n.isLeaf {
			n.release(false)
			return pageNum, nil
		}
		pageNum = n.childAt(0)
		n.release(false)
	}
}

// GetEntry returns every RID stored under key, following leaf sibling
// links when matching entries span a leaf boundary (duplicate keys).
func (f *File) GetEntry(key []byte) ([]common.RID, error) {
	leaf, err := f.findLeaf(key)
	if err != nil {
		return nil, err
	}
	// findLeaf lands on the last leaf whose range starts at or below key;
	// duplicates of key may begin in earlier leaves, so step back to them.
	for leaf.keyNum > 0 && leaf.prevBrother != noPage && f.compareKeys(leaf.keyAt(0), key) == 0 {
		prevPage := leaf.prevBrother
		leaf.release(false)
		if leaf, err = bindNode(f, prevPage); err != nil {
			return nil, err
		}
	}

	idx := int32(0)
	for idx < leaf.keyNum && f.compareKeys(leaf.keyAt(idx), key) < 0 {
		idx++
	}

	var result []common.RID
	cur := leaf
	for {
		for idx < cur.keyNum && f.compareKeys(cur.keyAt(idx), key) == 0 {
			result = append(result, cur.ridAt(idx))
			idx++
		}
		if idx < cur.keyNum {
			cur.release(false)
			break
		}
		next := cur.nextBrother
		cur.release(false)
		if next == noPage {
			break
		}
		cur, err = bindNode(f, next)
		if err != nil {
			return nil, err
		}
		idx = 0
	}
	if len(result) == 0 {
		return nil, common.NewError(common.CodeInvalidKey, "key not found in index")
	}
	return result, nil
}
