// Package handler is the engine's composition root: it owns the buffer
// pool, the on-disk database/table directory layout, and the process-wide
// transaction id counter, routing every table operation by (database,
// table) name.
package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"coredb/common"
	"coredb/filter"
	"coredb/meta"
	"coredb/storage"
	"coredb/table"
	"coredb/txn"
)

// Handler is rooted at <base_dir>/db; each subdirectory of db/ is one
// database, holding its tables' ".table"/".data"/".index" files.
type Handler struct {
	baseDir string
	pool    *storage.BufferPool
	nextTxn atomic.Int32

	dbs map[string]*Db
}

// Db is one open database: a directory plus whichever of its tables have
// been opened so far.
type Db struct {
	name   string
	dir    string
	tables map[string]*table.Table
}

func dbRootDir(baseDir string) string {
	return filepath.Join(baseDir, "db")
}

func dbDir(baseDir, dbName string) string {
	return filepath.Join(dbRootDir(baseDir), dbName)
}

// New creates a Handler rooted at baseDir with a buffer pool of
// bufferPoolPages frames. It does not itself create or open any database;
// call Init once before first use of a fresh baseDir.
func New(baseDir string, bufferPoolPages int) (*Handler, error) {
	return &Handler{
		baseDir: baseDir,
		pool:    storage.NewBufferPool(bufferPoolPages),
		dbs:     make(map[string]*Db),
	}, nil
}

// Init ensures <base_dir>/db exists.
func (h *Handler) Init() error {
	return os.MkdirAll(dbRootDir(h.baseDir), 0o755)
}

// NextTransactionID implements txn.IDSource with a process-wide monotonic
// counter, per the design note that transaction ids are owned by the
// handler rather than by the Transaction type itself.
func (h *Handler) NextTransactionID() common.TransactionID {
	return common.TransactionID(h.nextTxn.Add(1))
}

// NewTransaction starts a new, as-yet-inactive transaction drawing its id
// from this handler.
func (h *Handler) NewTransaction() *txn.Transaction {
	return txn.New(h)
}

// CreateDB creates a new, empty database directory.
func (h *Handler) CreateDB(name string) error {
	if _, exists := h.dbs[name]; exists {
		return common.NewError(common.CodeSchemaDBExist, "database %s is already open", name)
	}
	dir := dbDir(h.baseDir, name)
	if _, err := os.Stat(dir); err == nil {
		return common.NewError(common.CodeSchemaDBExist, "database %s already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.NewError(common.CodeGenericError, "create database %s: %v", name, err)
	}
	h.dbs[name] = &Db{name: name, dir: dir, tables: make(map[string]*table.Table)}
	return nil
}

// OpenDB opens a previously created database. The Db itself is instantiated
// lazily (nothing happens if it is already open); instantiating it opens
// every table named by a ".table" descriptor in its directory, so a single
// OpenDB call is enough to make the whole database's tables reachable.
func (h *Handler) OpenDB(name string) error {
	if _, exists := h.dbs[name]; exists {
		return nil
	}
	dir := dbDir(h.baseDir, name)
	if _, err := os.Stat(dir); err != nil {
		return common.NewError(common.CodeSchemaDBNotExist, "database %s does not exist", name)
	}

	d := &Db{name: name, dir: dir, tables: make(map[string]*table.Table)}
	names, err := meta.ListTableNames(dir)
	if err != nil {
		return err
	}
	for _, tableName := range names {
		t, err := table.Open(h.pool, dir, tableName)
		if err != nil {
			return err
		}
		d.tables[tableName] = t
	}
	h.dbs[name] = d
	return nil
}

func (h *Handler) db(dbName string) (*Db, error) {
	d, ok := h.dbs[dbName]
	if !ok {
		return nil, common.NewError(common.CodeSchemaDBNotOpened, "database %s is not open", dbName)
	}
	return d, nil
}

// CreateTable creates a new table named tableName in dbName with the given
// attributes.
func (h *Handler) CreateTable(dbName, tableName string, attrs []meta.Attribute) error {
	d, err := h.db(dbName)
	if err != nil {
		return err
	}
	if _, exists := d.tables[tableName]; exists {
		return common.NewError(common.CodeInvalidArgument, "table %s already open in database %s", tableName, dbName)
	}
	t, err := table.Create(h.pool, d.dir, tableName, attrs)
	if err != nil {
		return err
	}
	d.tables[tableName] = t
	return nil
}

// Table returns tableName in dbName, opening it from disk on first access.
func (h *Handler) Table(dbName, tableName string) (*table.Table, error) {
	d, err := h.db(dbName)
	if err != nil {
		return nil, err
	}
	if t, ok := d.tables[tableName]; ok {
		return t, nil
	}
	t, err := table.Open(h.pool, d.dir, tableName)
	if err != nil {
		return nil, err
	}
	d.tables[tableName] = t
	return t, nil
}

// CreateIndex forwards to tableName's CreateIndex.
func (h *Handler) CreateIndex(dbName, tableName, indexName, attrName string) error {
	t, err := h.Table(dbName, tableName)
	if err != nil {
		return err
	}
	return t.CreateIndex(indexName, attrName)
}

// InsertRecord forwards to tableName's InsertRecord.
func (h *Handler) InsertRecord(dbName, tableName string, tr *txn.Transaction, values []any) (common.RID, error) {
	t, err := h.Table(dbName, tableName)
	if err != nil {
		return common.NilRID, err
	}
	return t.InsertRecord(tr, values)
}

// DeleteRecord forwards to tableName's DeleteRecord.
func (h *Handler) DeleteRecord(dbName, tableName string, tr *txn.Transaction, filt filter.Filter) (int, error) {
	t, err := h.Table(dbName, tableName)
	if err != nil {
		return 0, err
	}
	return t.DeleteRecord(tr, filt)
}

// UpdateRecord forwards to tableName's UpdateRecord.
func (h *Handler) UpdateRecord(dbName, tableName string, tr *txn.Transaction, filt filter.Filter, newValues []any) (int, error) {
	t, err := h.Table(dbName, tableName)
	if err != nil {
		return 0, err
	}
	return t.UpdateRecord(tr, filt, newValues)
}

// ScanRecord forwards to tableName's ScanRecord.
func (h *Handler) ScanRecord(dbName, tableName string, tr *txn.Transaction, filt filter.Filter, limit int, rh table.RecordHandler) error {
	t, err := h.Table(dbName, tableName)
	if err != nil {
		return err
	}
	return t.ScanRecord(tr, filt, limit, rh)
}

// Sync flushes every open table's (and its indexes') dirty pages through
// the buffer pool, across every open database.
func (h *Handler) Sync() error {
	for _, d := range h.dbs {
		for _, t := range d.tables {
			if err := h.pool.FlushAllPages(t.FileID()); err != nil {
				return err
			}
			for _, fid := range t.IndexFileIDs() {
				if err := h.pool.FlushAllPages(fid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Describe returns a human-readable multi-line summary of every open
// database and table, with humanize-formatted page counts.
func (h *Handler) Describe() string {
	out := fmt.Sprintf("handler at %s, %d database(s) open:\n", h.baseDir, len(h.dbs))
	for name, d := range h.dbs {
		out += fmt.Sprintf("  %s (%d table(s) open):\n", name, len(d.tables))
		for tname, t := range d.tables {
			stats, err := t.Stats(h.pool)
			if err != nil {
				out += fmt.Sprintf("    %s: <error: %v>\n", tname, err)
				continue
			}
			out += fmt.Sprintf("    %s\n", stats.String())
		}
	}
	return out
}
