package btree

import "coredb/common"

// Scanner iterates matching (key, rid) entries in key order. EQ/GE/GT scans
// seek directly to the first candidate leaf; LE/LT/NE/NoOp scans walk from
// the leftmost leaf, since there is no lower bound to seek to. At most one
// leaf is pinned at any time.
type Scanner struct {
	f     *File
	op    common.CompareOp
	value []byte

	cur *node
	idx int32
}

// NewScanner opens a scan over entries whose key satisfies op relative to
// value. op == NoOp scans every entry in key order.
func (f *File) NewScanner(op common.CompareOp, value []byte) (*Scanner, error) {
	var leafPage int32
	var err error

	switch op {
	case common.EQ, common.GE, common.GT:
		leaf, ferr := f.findLeaf(value)
		if ferr != nil {
			return nil, ferr
		}
		leafPage = leaf.pageNum()
		leaf.release(false)
	default:
		leafPage, err = f.firstLeafPage()
		if err != nil {
			return nil, err
		}
	}

	cur, err := bindNode(f, leafPage)
	if err != nil {
		return nil, err
	}
	if op == common.EQ || op == common.GE {
		// Entries equal to value may begin in leaves before the one findLeaf
		// lands on; step back to the first of them.
		for cur.keyNum > 0 && cur.prevBrother != noPage && f.compareKeys(cur.keyAt(0), value) == 0 {
			prevPage := cur.prevBrother
			cur.release(false)
			if cur, err = bindNode(f, prevPage); err != nil {
				return nil, err
			}
		}
	}

	idx := int32(0)
	switch op {
	case common.EQ, common.GE, common.GT:
		for idx < cur.keyNum && f.compareKeys(cur.keyAt(idx), value) < 0 {
			idx++
		}
		if op == common.GT {
			for idx < cur.keyNum && f.compareKeys(cur.keyAt(idx), value) == 0 {
				idx++
			}
		}
	}

	return &Scanner{f: f, op: op, value: value, cur: cur, idx: idx}, nil
}

// Close releases the scan's currently pinned leaf, if any.
func (s *Scanner) Close() {
	if s.cur != nil {
		s.cur.release(false)
		s.cur = nil
	}
}

// NextEntry returns the next matching (key, rid) pair, or a CodeRecordEOF
// error once the scan's bound is exceeded or the tree is exhausted.
func (s *Scanner) NextEntry() ([]byte, common.RID, error) {
	for {
		if s.cur == nil {
			return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "index scan exhausted")
		}
		if s.idx >= s.cur.keyNum {
			next := s.cur.nextBrother
			s.cur.release(false)
			if next == noPage {
				s.cur = nil
				continue
			}
			nn, err := bindNode(s.f, next)
			if err != nil {
				s.cur = nil
				return nil, common.NilRID, err
			}
			s.cur = nn
			s.idx = 0
			continue
		}

		key := s.cur.keyAt(s.idx)
		var cmp int
		if s.op != common.NoOp {
			cmp = s.f.compareKeys(key, s.value)
		}
		switch s.op {
		case common.EQ:
			if cmp != 0 {
				s.cur.release(false)
				s.cur = nil
				return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "index scan exhausted")
			}
		case common.LT:
			if cmp >= 0 {
				s.cur.release(false)
				s.cur = nil
				return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "index scan exhausted")
			}
		case common.LE:
			if cmp > 0 {
				s.cur.release(false)
				s.cur = nil
				return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "index scan exhausted")
			}
		case common.NE:
			if cmp == 0 {
				s.idx++
				continue
			}
		}

		keyCopy := append([]byte{}, key...)
		rid := s.cur.ridAt(s.idx)
		s.idx++
		return keyCopy, rid, nil
	}
}
