package lsm_tree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"WCKV/internal/domain"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempLevel(t *testing.T, levelNo int) (*Level, string) {
	baseDir := t.TempDir()
	level, err := OpenLevel(baseDir, levelNo, openValueLog(t))
	require.NoError(t, err)
	return level, baseDir
}

func TestLevel_FindNewestTableWins(t *testing.T) {
	level, _ := createTempLevel(t, 0)

	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("a", "x"), value("x", "old")},
		MemEntry{key("b", "x"), value("x", "kept")},
	)))
	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("a", "x"), value("x", "new")},
		MemEntry{key("b", "x"), domain.NewTombstone("x")},
	)))
	assert.Equal(t, 2, level.Size())

	v, found, err := level.Find(key("a", "x"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("new"), v.Value())

	v, found, err = level.Find(key("b", "x"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, v.Tombstone(), "a newer tombstone hides the older value")

	assert.True(t, level.Contains(key("a", "x")))
}

func TestLevel_FindColumnsLastTableWins(t *testing.T) {
	level, _ := createTempLevel(t, 0)

	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("r", "a"), value("a", "1")},
		MemEntry{key("r", "b"), value("b", "1")},
	)))
	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("r", "b"), value("b", "2")},
		MemEntry{key("r", "c"), value("c", "2")},
	)))

	columns, err := level.FindColumns([]byte("r"), "cf")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, []byte("1"), columns["a"].Value())
	assert.Equal(t, []byte("2"), columns["b"].Value())
	assert.Equal(t, []byte("2"), columns["c"].Value())
}

func TestLevel_AllIsSortedAndDeduplicated(t *testing.T) {
	level, _ := createTempLevel(t, 0)

	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("c", "x"), value("x", "1")},
		MemEntry{key("a", "x"), value("x", "1")},
	)))
	require.NoError(t, level.MergeMemTable(snapshotOf(
		MemEntry{key("b", "x"), value("x", "2")},
		MemEntry{key("c", "x"), domain.NewTombstone("x")},
	)))

	all := level.All()
	require.Len(t, all, 3, spew.Sdump(all))
	assert.True(t, sort.SliceIsSorted(all, func(i, j int) bool {
		return all[i].Key.Compare(all[j].Key) < 0
	}))
	assert.Equal(t, "c", string(all[2].Key.Key))
	assert.True(t, all[2].Tombstone, "newest entry for a key is kept")
}

func TestLevel_MergeLevelAndClear(t *testing.T) {
	lower, baseDir := createTempLevel(t, 0)
	upper, err := OpenLevel(baseDir, 1, lower.valueLog)
	require.NoError(t, err)

	require.NoError(t, lower.MergeMemTable(snapshotOf(
		MemEntry{key("a", "x"), value("x", "1")},
		MemEntry{key("b", "x"), domain.NewTombstone("x")},
	)))

	require.NoError(t, upper.MergeLevel(lower, true))
	assert.Equal(t, 1, lower.Size(), "merging leaves the source level untouched")
	require.Equal(t, 1, upper.Size())
	assert.Len(t, upper.All(), 1, "tombstones dropped on request")

	require.NoError(t, lower.Clear())
	assert.Equal(t, 0, lower.Size())
	files, err := os.ReadDir(filepath.Join(baseDir, "0"))
	require.NoError(t, err)
	assert.Empty(t, files)

	v, found, err := upper.Find(key("a", "x"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("1"), v.Value())
}

func TestLevel_Delete(t *testing.T) {
	level, _ := createTempLevel(t, 0)
	require.NoError(t, level.MergeMemTable(snapshotOf(MemEntry{key("a", "x"), value("x", "1")})))
	require.NoError(t, level.MergeMemTable(snapshotOf(MemEntry{key("a", "x"), value("x", "2")})))

	deleted, err := level.Delete(key("a", "x"))
	require.NoError(t, err)
	assert.True(t, deleted)

	v, found, err := level.Find(key("a", "x"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, v.Tombstone())

	deleted, err = level.Delete(key("a", "x"))
	require.NoError(t, err)
	assert.False(t, deleted, "the older table's value stays shadowed, not deleted")

	deleted, err = level.Delete(key("missing", "x"))
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestOpenLevel_ReloadsInInsertionOrder(t *testing.T) {
	level, baseDir := createTempLevel(t, 3)
	for i := 1; i <= 12; i++ {
		require.NoError(t, level.MergeMemTable(snapshotOf(MemEntry{key("k", "c"), value("c", fmt.Sprint(i))})))
	}
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "3", "13.sst"+tmpSuffix), []byte("partial"), 0644))

	reopened, err := OpenLevel(baseDir, 3, level.valueLog)
	require.NoError(t, err)
	assert.Equal(t, 12, reopened.Size())
	assert.True(t, reopened.IsFull())

	v, found, err := reopened.Find(key("k", "c"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("12"), v.Value(), "table 12 sorts after table 2")

	_, err = os.Stat(filepath.Join(baseDir, "3", "13.sst"+tmpSuffix))
	assert.True(t, os.IsNotExist(err))
}
