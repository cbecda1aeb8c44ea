// Package meta persists a table's attribute list and record layout, the
// metadata collaborator spec'd as "assumed to persist and reload attribute
// lists": one JSON document per table, written atomically via a temp file
// plus rename, the way the teacher's catalog writes schema to disk.
package meta

import (
	"encoding/json"
	"os"
	"path/filepath"

	"coredb/common"
)

// StampSize is the width of the reserved transaction-stamp field every
// record carries, regardless of attribute types (it is a raw 32-bit
// bitfield, not a schema-declared INTS attribute).
const StampSize = 4

// Attribute is one user-declared column: its name, physical type, declared
// length (meaningful for Chars; Ints/Floats always occupy 8 bytes), and its
// byte offset within a record, assigned by BuildDescriptor.
type Attribute struct {
	Name   string
	Type   common.AttrType
	Length int32
	Offset int32
}

// StorageLength is the attribute's actual on-disk width.
func (a Attribute) StorageLength() int32 {
	return int32(common.AttrStorageLength(a.Type, int(a.Length)))
}

// IndexDescriptor records one secondary index declared over a table.
type IndexDescriptor struct {
	Name      string
	Attribute string
}

// Descriptor is a table's full on-disk schema: its attribute list, the
// reserved transaction-stamp offset, the total record size, and the
// indexes built over it.
type Descriptor struct {
	TableName   string
	Attributes  []Attribute
	StampOffset int32
	RecordSize  int32
	Indexes     []IndexDescriptor
}

// AttributeByName looks up a declared attribute, returning ok=false if no
// such attribute exists.
func (d *Descriptor) AttributeByName(name string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// IndexByAttribute returns the index declared over attrName, if any.
func (d *Descriptor) IndexByAttribute(attrName string) (IndexDescriptor, bool) {
	for _, idx := range d.Indexes {
		if idx.Attribute == attrName {
			return idx, true
		}
	}
	return IndexDescriptor{}, false
}

// BuildDescriptor assigns offsets to attrs (the transaction-stamp field
// always occupies [0, StampSize), attributes follow in declaration order)
// and computes the resulting record size.
func BuildDescriptor(tableName string, attrs []Attribute) *Descriptor {
	d := &Descriptor{
		TableName:   tableName,
		StampOffset: 0,
	}
	offset := int32(StampSize)
	for _, a := range attrs {
		a.Offset = offset
		offset += a.StorageLength()
		d.Attributes = append(d.Attributes, a)
	}
	d.RecordSize = offset
	return d
}

func metaPath(dir, tableName string) string {
	return filepath.Join(dir, tableName+".table")
}

// Save persists the descriptor to <dir>/<tablename>.table, writing to a
// temp file and renaming over the final path so a crash mid-write never
// leaves a half-written descriptor behind.
func (d *Descriptor) Save(dir string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return common.NewError(common.CodeGenericError, "marshal descriptor for %s: %v", d.TableName, err)
	}
	final := metaPath(dir, d.TableName)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return common.NewError(common.CodeGenericError, "write descriptor temp file for %s: %v", d.TableName, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return common.NewError(common.CodeGenericError, "rename descriptor temp file for %s: %v", d.TableName, err)
	}
	return nil
}

// Load reads a previously saved descriptor for tableName from dir.
func Load(dir, tableName string) (*Descriptor, error) {
	data, err := os.ReadFile(metaPath(dir, tableName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewError(common.CodeSchemaTableNotExist, "table %s has no descriptor in %s", tableName, dir)
		}
		return nil, common.NewError(common.CodeGenericError, "read descriptor for %s: %v", tableName, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, common.NewError(common.CodeGenericError, "unmarshal descriptor for %s: %v", tableName, err)
	}
	return &d, nil
}

// AddIndex appends idx to the descriptor's index list and re-saves it.
func (d *Descriptor) AddIndex(dir string, idx IndexDescriptor) error {
	d.Indexes = append(d.Indexes, idx)
	return d.Save(dir)
}

// ListTableNames enumerates every "*.table" descriptor in dir.
func ListTableNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewError(common.CodeGenericError, "list tables in %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		const suffix = ".table"
		name := e.Name()
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			names = append(names, name[:len(name)-len(suffix)])
		}
	}
	return names, nil
}
