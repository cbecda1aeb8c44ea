package table

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"coredb/common"
	"coredb/record"
	"coredb/storage"
)

// Stats is a snapshot of one table's size, for Handler.Describe.
type Stats struct {
	Name        string
	RecordCount int64
	DataPages   int32
	IndexCount  int
}

// Stats walks the data file once, counting live records (both committed
// and any transaction's own uncommitted writes look like "present" here;
// visibility is a reader concern, not a sizing one) and reports the
// current page count alongside it.
func (t *Table) Stats(pool *storage.BufferPool) (Stats, error) {
	pageCount, err := pool.GetPageCount(t.dataFile.FileID())
	if err != nil {
		return Stats{}, err
	}

	var count int64
	sc := record.NewScanner(t.dataFile, nil)
	defer sc.Close()
	for {
		_, _, err := sc.Next()
		if common.CodeOf(err) == common.CodeRecordEOF {
			break
		}
		if err != nil {
			return Stats{}, err
		}
		count++
	}

	return Stats{Name: t.desc.TableName, RecordCount: count, DataPages: pageCount, IndexCount: len(t.indexes)}, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %s records across %s pages, %d index(es)",
		s.Name, humanize.Comma(s.RecordCount), humanize.Comma(int64(s.DataPages)), s.IndexCount)
}
