package lsm_tree

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"WCKV/internal/domain"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openValueLog(t *testing.T) *logfile.LogGroup {
	group, err := logfile.Open(filepath.Join(t.TempDir(), "value"), logfile.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		group.Close()
	})
	return group
}

func snapshotOf(entries ...MemEntry) *Immutable {
	return NewImmutable(entries)
}

func TestCreateLeafTable_Find(t *testing.T) {
	valueLog := openValueLog(t)
	dir := t.TempDir()

	table, err := CreateLeafTable(dir, 1, 0, valueLog, snapshotOf(
		MemEntry{key("a", "x"), value("x", "1")},
		MemEntry{key("a", "y"), value("y", "2")},
		MemEntry{key("b", "x"), domain.NewTombstone("x")},
	))
	require.NoError(t, err)
	assert.True(t, table.IsLeaf())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, int64(2), valueLog.MaxGlobalIndex(), "tombstones are not stored in the value log")

	for _, k := range []domain.DbKey{key("a", "x"), key("a", "y"), key("b", "x")} {
		assert.True(t, table.Contains(k), k.String())
	}

	v, found, err := table.Find(key("a", "y"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("2"), v.Value())

	v, found, err = table.Find(key("b", "x"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, v.Tombstone())

	_, found, err = table.Find(key("c", "x"))
	require.NoError(t, err)
	assert.False(t, found)

	columns, err := table.FindColumns([]byte("a"), "cf")
	require.NoError(t, err)
	assert.Len(t, columns, 2)
	assert.Equal(t, []byte("1"), columns["x"].Value())

	_, err = os.Stat(filepath.Join(dir, "1.sst"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "1.sst"+tmpSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenSsTable_Reloads(t *testing.T) {
	valueLog := openValueLog(t)
	dir := t.TempDir()

	var entries []MemEntry
	for i := 0; i < 100; i++ {
		entries = append(entries, MemEntry{key(fmt.Sprintf("k%03d", i), "c"), value("c", fmt.Sprint(i))})
	}
	created, err := CreateLeafTable(dir, 7, 2, valueLog, snapshotOf(entries...))
	require.NoError(t, err)

	opened, err := OpenSsTable(dir, 7, 2, valueLog)
	require.NoError(t, err)
	assert.Equal(t, created.DbIndexList(), opened.DbIndexList(), spew.Sdump(opened.DbIndexList()[:3]))
	assert.True(t, opened.IsLeaf())
	assert.Equal(t, 2, opened.LevelNo())

	v, found, err := opened.Find(key("k042", "c"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("42"), v.Value())
}

func TestCreateIndexTable_ResolvesThroughValueLog(t *testing.T) {
	valueLog := openValueLog(t)
	dir := t.TempDir()

	leaf, err := CreateLeafTable(dir, 1, 0, valueLog, snapshotOf(
		MemEntry{key("a", "x"), value("x", "1")},
		MemEntry{key("b", "x"), value("x", "2")},
	))
	require.NoError(t, err)

	index, err := CreateIndexTable(dir, 2, 1, valueLog, leaf.DbIndexList())
	require.NoError(t, err)
	assert.False(t, index.IsLeaf())
	assert.Equal(t, int64(2), valueLog.MaxGlobalIndex(), "index tables copy pointers only")

	v, found, err := index.Find(key("b", "x"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("2"), v.Value())
}

func TestSsTable_DeleteUsesSidecar(t *testing.T) {
	valueLog := openValueLog(t)
	dir := t.TempDir()

	table, err := CreateLeafTable(dir, 1, 0, valueLog, snapshotOf(
		MemEntry{key("a", "x"), value("x", "1")},
		MemEntry{key("a", "y"), value("y", "2")},
	))
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, "1.sst"))
	require.NoError(t, err)

	deleted, err := table.Delete(key("a", "x"))
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = table.Delete(key("a", "x"))
	require.NoError(t, err)
	assert.False(t, deleted, "already deleted")

	deleted, err = table.Delete(key("z", "x"))
	require.NoError(t, err)
	assert.False(t, deleted)

	v, found, err := table.Find(key("a", "x"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, v.Tombstone())

	after, err := os.ReadFile(filepath.Join(dir, "1.sst"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "table file is never rewritten")

	reopened, err := OpenSsTable(dir, 1, 0, valueLog)
	require.NoError(t, err)
	list := reopened.DbIndexList()
	require.Len(t, list, 2)
	assert.True(t, list[0].Tombstone)
	assert.False(t, list[1].Tombstone)

	require.NoError(t, reopened.Remove())
	_, err = os.Stat(filepath.Join(dir, "1.sst"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "1.sst"+deleteSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateIndexTable_RejectsUnsortedEntries(t *testing.T) {
	valueLog := openValueLog(t)
	dir := t.TempDir()

	_, err := CreateIndexTable(dir, 1, 1, valueLog, []domain.DbIndex{
		domain.NewDbIndex(key("b", "x"), 1),
		domain.NewDbIndex(key("a", "x"), 2),
	})
	assert.True(t, errors.Is(err, domain.ErrProgramming))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpenSsTable_BadMagicIsCorruption(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.sst"), []byte{0, 0, 0, 4, 1, 2, 3, 4}, 0644))

	_, err := OpenSsTable(dir, 1, 0, openValueLog(t))
	assert.True(t, domain.IsCorruptStorage(err))
}

func TestSsTable_MissingValueIsCorruption(t *testing.T) {
	valueLog := openValueLog(t)
	table, err := CreateIndexTable(t.TempDir(), 1, 1, valueLog, []domain.DbIndex{
		domain.NewDbIndex(key("a", "x"), 99),
	})
	require.NoError(t, err)

	_, _, err = table.Find(key("a", "x"))
	assert.True(t, domain.IsCorruptStorage(err))
}
