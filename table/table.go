// Package table binds a record file and its secondary indexes under one
// schema, routing insert/update/delete/scan through both and keeping index
// entries consistent with the data they shadow.
package table

import (
	"path/filepath"

	"coredb/btree"
	"coredb/common"
	"coredb/filter"
	"coredb/meta"
	"coredb/record"
	"coredb/storage"
	"coredb/txn"
)

// Table is one table's data file plus whichever secondary indexes have
// been built over it, keyed by the indexed attribute's name (a table may
// have at most one index per attribute).
type Table struct {
	pool *storage.BufferPool
	dir  string
	desc *meta.Descriptor

	dataFile *record.File
	indexes  map[string]*btree.File
}

func dataPath(dir, name string) string {
	return filepath.Join(dir, name+".data")
}

func indexPath(dir, tableName, indexName string) string {
	return filepath.Join(dir, tableName+"-"+indexName+".index")
}

// Create persists a new table's metadata and data file under dir. No
// indexes exist yet.
func Create(pool *storage.BufferPool, dir, name string, attrs []meta.Attribute) (*Table, error) {
	desc := meta.BuildDescriptor(name, attrs)
	if err := desc.Save(dir); err != nil {
		return nil, err
	}
	dataFile, err := record.CreateFile(pool, dataPath(dir, name), desc.RecordSize)
	if err != nil {
		return nil, err
	}
	return &Table{pool: pool, dir: dir, desc: desc, dataFile: dataFile, indexes: make(map[string]*btree.File)}, nil
}

// Open reads an existing table's metadata, data file, and every index
// named in that metadata.
func Open(pool *storage.BufferPool, dir, name string) (*Table, error) {
	desc, err := meta.Load(dir, name)
	if err != nil {
		return nil, err
	}
	dataFile, err := record.OpenFile(pool, dataPath(dir, name), desc.RecordSize)
	if err != nil {
		return nil, err
	}
	t := &Table{pool: pool, dir: dir, desc: desc, dataFile: dataFile, indexes: make(map[string]*btree.File)}
	for _, idx := range desc.Indexes {
		bf, err := btree.Open(pool, indexPath(dir, name, idx.Name))
		if err != nil {
			return nil, err
		}
		t.indexes[idx.Attribute] = bf
	}
	return t, nil
}

// Name returns the table's name.
func (t *Table) Name() string {
	return t.desc.TableName
}

// AttributeByName looks up one of the table's declared attributes by name,
// for callers (the handler, a future SQL layer) that need to build a
// filter.Attribute without reaching into table internals.
func (t *Table) AttributeByName(name string) (meta.Attribute, bool) {
	return t.desc.AttributeByName(name)
}

// FileID exposes the data file's buffer-pool identity, for Handler.Sync.
func (t *Table) FileID() storage.FileID {
	return t.dataFile.FileID()
}

// IndexFileIDs exposes every index file's buffer-pool identity, for
// Handler.Sync.
func (t *Table) IndexFileIDs() []storage.FileID {
	ids := make([]storage.FileID, 0, len(t.indexes))
	for _, bf := range t.indexes {
		ids = append(ids, bf.FileID())
	}
	return ids
}

func (t *Table) attrKey(attrName string, record []byte) []byte {
	attr, ok := t.desc.AttributeByName(attrName)
	common.Assert(ok, "index refers to unknown attribute %s", attrName)
	return record[attr.Offset : attr.Offset+attr.StorageLength()]
}

// CreateIndex builds a new B+-tree index over attrName, backfilling it
// from every record currently in the table.
func (t *Table) CreateIndex(indexName, attrName string) error {
	attr, ok := t.desc.AttributeByName(attrName)
	if !ok {
		return common.NewError(common.CodeInvalidArgument, "table %s has no attribute %s", t.desc.TableName, attrName)
	}
	if _, exists := t.indexes[attrName]; exists {
		return common.NewError(common.CodeInvalidArgument, "table %s already has an index on %s", t.desc.TableName, attrName)
	}

	bf, err := btree.Create(t.pool, indexPath(t.dir, t.desc.TableName, indexName), attr.Type, attr.StorageLength())
	if err != nil {
		return err
	}

	s := record.NewScanner(t.dataFile, nil)
	defer s.Close()
	for {
		data, rid, err := s.Next()
		if common.CodeOf(err) == common.CodeRecordEOF {
			break
		}
		if err != nil {
			return err
		}
		key := append([]byte{}, t.attrKey(attrName, data)...)
		if err := bf.InsertEntry(key, rid); err != nil {
			return err
		}
	}

	t.indexes[attrName] = bf
	return t.desc.AddIndex(t.dir, meta.IndexDescriptor{Name: indexName, Attribute: attrName})
}

// InsertRecord encodes values positionally against the table's attribute
// list, stamps the record with tr's transaction id, inserts it, updates
// every index, and registers the insert with tr. On any index failure, it
// rolls back the record and whatever index entries it had already added.
func (t *Table) InsertRecord(tr *txn.Transaction, values []any) (common.RID, error) {
	if len(values) != len(t.desc.Attributes) {
		return common.NilRID, common.NewError(common.CodeInvalidArgument, "table %s expects %d values, got %d", t.desc.TableName, len(t.desc.Attributes), len(values))
	}

	buf := make([]byte, t.desc.RecordSize)
	for i, attr := range t.desc.Attributes {
		raw, err := EncodeAttribute(attr, values[i])
		if err != nil {
			return common.NilRID, err
		}
		copy(buf[attr.Offset:], raw)
	}
	txn.InitTransactionInfo(buf, t.desc.StampOffset, tr.EnsureStarted())

	rid, err := t.dataFile.InsertRecord(buf)
	if err != nil {
		return common.NilRID, err
	}

	var indexed []string
	for attrName, bf := range t.indexes {
		key := append([]byte{}, t.attrKey(attrName, buf)...)
		if err := bf.InsertEntry(key, rid); err != nil {
			for _, done := range indexed {
				_ = t.indexes[done].DeleteEntry(t.attrKey(done, buf), rid)
			}
			_ = t.dataFile.DeleteRecord(rid)
			return common.NilRID, err
		}
		indexed = append(indexed, attrName)
	}

	if err := tr.InsertRecord(t, rid); err != nil {
		for _, done := range indexed {
			_ = t.indexes[done].DeleteEntry(t.attrKey(done, buf), rid)
		}
		_ = t.dataFile.DeleteRecord(rid)
		return common.NilRID, err
	}
	return rid, nil
}

// UpdateRecord rewrites every record visible to tr and matching filt with
// newValues, keeping index entries in sync. It returns the number of
// records updated.
func (t *Table) UpdateRecord(tr *txn.Transaction, filt filter.Filter, newValues []any) (int, error) {
	if len(newValues) != len(t.desc.Attributes) {
		return 0, common.NewError(common.CodeInvalidArgument, "table %s expects %d values, got %d", t.desc.TableName, len(t.desc.Attributes), len(newValues))
	}

	matches, err := t.collectMatches(tr, filt)
	if err != nil {
		return 0, err
	}

	for _, rid := range matches {
		data, err := t.dataFile.GetRecord(rid)
		if err != nil {
			return 0, err
		}

		oldKeys := make(map[string][]byte, len(t.indexes))
		for attrName := range t.indexes {
			oldKeys[attrName] = append([]byte{}, t.attrKey(attrName, data)...)
		}

		for i, attr := range t.desc.Attributes {
			raw, err := EncodeAttribute(attr, newValues[i])
			if err != nil {
				return 0, err
			}
			copy(data[attr.Offset:], raw)
		}
		if err := t.dataFile.UpdateRecord(rid, data); err != nil {
			return 0, err
		}

		for attrName, bf := range t.indexes {
			newKey := append([]byte{}, t.attrKey(attrName, data)...)
			if err := bf.DeleteEntry(oldKeys[attrName], rid); err != nil {
				return 0, err
			}
			if err := bf.InsertEntry(newKey, rid); err != nil {
				return 0, err
			}
		}
	}
	return len(matches), nil
}

// DeleteRecord removes every record visible to tr and matching filt. A
// record tr itself inserted earlier in this same open transaction is
// physically removed immediately (it never became visible to anyone
// else); any other record is stamped with tr's delete intent and
// physically removed only when tr commits.
func (t *Table) DeleteRecord(tr *txn.Transaction, filt filter.Filter) (int, error) {
	matches, err := t.collectMatches(tr, filt)
	if err != nil {
		return 0, err
	}

	for _, rid := range matches {
		dropInsert, err := tr.DeleteRecord(t, rid)
		if err != nil {
			return 0, err
		}
		if dropInsert {
			if err := t.physicallyRemove(rid); err != nil {
				return 0, err
			}
			continue
		}
		data, err := t.dataFile.GetRecord(rid)
		if err != nil {
			return 0, err
		}
		txn.MarkDeleted(data, t.desc.StampOffset, tr.ID())
		if err := t.dataFile.UpdateRecord(rid, data); err != nil {
			return 0, err
		}
	}
	return len(matches), nil
}

func (t *Table) collectMatches(tr *txn.Transaction, filt filter.Filter) ([]common.RID, error) {
	if filt == nil {
		filt = filter.All
	}
	var matches []common.RID
	s := record.NewScanner(t.dataFile, filt)
	defer s.Close()
	for {
		data, rid, err := s.Next()
		if common.CodeOf(err) == common.CodeRecordEOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !txn.IsVisible(data, t.desc.StampOffset, tr.ID()) {
			continue
		}
		matches = append(matches, rid)
	}
	return matches, nil
}

// RecordHandler is called with each matching record during ScanRecord. It
// returns whether the scan should keep going.
type RecordHandler func(rid common.RID, data []byte) (bool, error)

// ScanRecord visits every record visible to tr and matching filt, in scan
// order, stopping after limit matches (limit < 0 means unlimited) or when
// handler returns false. It uses an index-assisted scan when filt (or one
// conjunct of it) is a single-attribute comparison against an existing
// index; otherwise it falls back to a full file scan.
func (t *Table) ScanRecord(tr *txn.Transaction, filt filter.Filter, limit int, handler RecordHandler) error {
	if filt == nil {
		filt = filter.All
	}

	if plan, ok := t.FindIndexForScan(filt); ok {
		return t.scanViaIndex(tr, plan, filt, limit, handler)
	}

	matched := 0
	s := record.NewScanner(t.dataFile, filt)
	defer s.Close()
	for {
		data, rid, err := s.Next()
		if common.CodeOf(err) == common.CodeRecordEOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !txn.IsVisible(data, t.desc.StampOffset, tr.ID()) {
			continue
		}
		cont, err := handler(rid, data)
		if err != nil {
			return err
		}
		matched++
		if !cont || (limit >= 0 && matched >= limit) {
			return nil
		}
	}
}

func (t *Table) scanViaIndex(tr *txn.Transaction, plan scanPlan, filt filter.Filter, limit int, handler RecordHandler) error {
	bf := t.indexes[plan.attrName]
	sc, err := bf.NewScanner(plan.op, plan.value)
	if err != nil {
		return err
	}
	defer sc.Close()

	matched := 0
	for {
		_, rid, err := sc.NextEntry()
		if common.CodeOf(err) == common.CodeRecordEOF {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := t.dataFile.GetRecord(rid)
		if err != nil {
			return err
		}
		if !txn.IsVisible(data, t.desc.StampOffset, tr.ID()) || !filt.Matches(data) {
			continue
		}
		cont, err := handler(rid, data)
		if err != nil {
			return err
		}
		matched++
		if !cont || (limit >= 0 && matched >= limit) {
			return nil
		}
	}
}

// CommitInsert clears rid's transaction stamp to 0 (unflagged, committed).
func (t *Table) CommitInsert(rid common.RID) error {
	return t.clearStamp(rid)
}

// CommitDelete physically removes rid's record and index entries.
func (t *Table) CommitDelete(rid common.RID) error {
	return t.physicallyRemove(rid)
}

// RollbackInsert undoes an insert that never committed: physically removes
// rid's record and index entries.
func (t *Table) RollbackInsert(rid common.RID) error {
	return t.physicallyRemove(rid)
}

// RollbackDelete undoes a delete that never committed: clears rid's
// transaction stamp back to 0.
func (t *Table) RollbackDelete(rid common.RID) error {
	return t.clearStamp(rid)
}

func (t *Table) clearStamp(rid common.RID) error {
	data, err := t.dataFile.GetRecord(rid)
	if err != nil {
		return err
	}
	txn.ClearStamp(data, t.desc.StampOffset)
	return t.dataFile.UpdateRecord(rid, data)
}

func (t *Table) physicallyRemove(rid common.RID) error {
	data, err := t.dataFile.GetRecord(rid)
	if err != nil {
		return err
	}
	for attrName, bf := range t.indexes {
		key := append([]byte{}, t.attrKey(attrName, data)...)
		if err := bf.DeleteEntry(key, rid); err != nil {
			return err
		}
	}
	return t.dataFile.DeleteRecord(rid)
}
