package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/common"
)

func TestBuildDescriptor_AssignsOffsets(t *testing.T) {
	d := BuildDescriptor("widgets", []Attribute{
		{Name: "a", Type: common.Ints, Length: 8},
		{Name: "b", Type: common.Chars, Length: 12},
	})

	require.Len(t, d.Attributes, 2)
	assert.EqualValues(t, 0, d.StampOffset)
	assert.EqualValues(t, StampSize, d.Attributes[0].Offset)
	assert.EqualValues(t, StampSize+8, d.Attributes[1].Offset)
	assert.EqualValues(t, StampSize+8+12, d.RecordSize)
}

func TestDescriptor_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := BuildDescriptor("widgets", []Attribute{{Name: "a", Type: common.Ints, Length: 8}})
	require.NoError(t, d.Save(dir))

	loaded, err := Load(dir, "widgets")
	require.NoError(t, err)
	assert.Equal(t, d.RecordSize, loaded.RecordSize)
	assert.Equal(t, d.Attributes, loaded.Attributes)

	require.NoError(t, loaded.AddIndex(dir, IndexDescriptor{Name: "a_idx", Attribute: "a"}))
	reloaded, err := Load(dir, "widgets")
	require.NoError(t, err)
	idx, ok := reloaded.IndexByAttribute("a")
	require.True(t, ok)
	assert.Equal(t, "a_idx", idx.Name)
}

func TestLoad_MissingTable(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	assert.Equal(t, common.CodeSchemaTableNotExist, common.CodeOf(err))
}
