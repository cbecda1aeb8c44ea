package record

import (
	"coredb/common"
	"coredb/filter"
	"coredb/storage"
)

// Scanner performs a full sequential scan of a record file, applying an
// optional predicate. It pins at most one page at a time.
type Scanner struct {
	pool           *storage.BufferPool
	file           storage.FileID
	recordRealSize int32
	filter         filter.Filter

	pageNum int32
	slot    int32
	page    *Page
}

// NewScanner starts a scan of f. A nil flt matches every record.
func NewScanner(f *File, flt filter.Filter) *Scanner {
	if flt == nil {
		flt = filter.All
	}
	return &Scanner{
		pool:           f.pool,
		file:           f.file,
		recordRealSize: f.recordRealSize,
		filter:         flt,
		pageNum:        1,
		slot:           -1,
	}
}

// Close releases any page the scanner still has pinned. Safe to call more
// than once.
func (s *Scanner) Close() {
	if s.page != nil {
		s.page.Release(false)
		s.page = nil
	}
}

// Next returns the next record matching the predicate, or a CodeRecordEOF
// error once the file is exhausted.
func (s *Scanner) Next() ([]byte, common.RID, error) {
	count, err := s.pool.GetPageCount(s.file)
	if err != nil {
		return nil, common.NilRID, err
	}

	for {
		if s.pageNum >= count {
			s.Close()
			return nil, common.NilRID, common.NewError(common.CodeRecordEOF, "scan complete")
		}

		if s.page == nil {
			p, err := OpenPage(s.pool, s.file, s.pageNum)
			if err != nil {
				if common.CodeOf(err) == common.CodeBufferPoolInvalidPageNum {
					// A disposed-but-not-yet-reallocated page: skip over it
					// exactly as if it had yielded RECORD_EOF.
					s.pageNum++
					s.slot = -1
					continue
				}
				return nil, common.NilRID, err
			}
			s.page = p
		}

		rec, rid, err := s.page.GetNextRecord(s.slot)
		if err != nil {
			if common.CodeOf(err) != common.CodeRecordEOF {
				return nil, common.NilRID, err
			}
			s.page.Release(false)
			s.page = nil
			s.pageNum++
			s.slot = -1
			continue
		}

		s.slot = rid.Slot
		if s.filter.Matches(rec) {
			out := make([]byte, len(rec))
			copy(out, rec)
			return out, rid, nil
		}
	}
}
