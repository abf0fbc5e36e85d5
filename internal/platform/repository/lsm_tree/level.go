package lsm_tree

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"WCKV/internal/domain"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cockroachdb/errors"
)

// LevelSsTableCount is the number of tables a level holds before it cascades.
const LevelSsTableCount = 10

// Level is the ordered set of tables at one tier, oldest first. The table list is
// replaced as a whole on every change so readers always see a complete list.
type Level struct {
	mu       sync.Mutex
	levelNo  int
	dir      string
	valueLog *logfile.LogGroup
	nextId   int
	tables   atomic.Pointer[[]*SsTable]
}

func levelDir(baseDir string, levelNo int) string {
	return filepath.Join(baseDir, strconv.Itoa(levelNo))
}

// OpenLevel loads the tables found under <baseDir>/<levelNo>, creating the directory
// if needed. Table ids give the insertion order.
func OpenLevel(baseDir string, levelNo int, valueLog *logfile.LogGroup) (*Level, error) {
	dir := levelDir(baseDir, levelNo)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, domain.StorageIo(err, "create level %s", dir)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.StorageIo(err, "list level %s", dir)
	}

	var ids []int
	for _, file := range files {
		name := file.Name()
		if strings.HasSuffix(name, tmpSuffix) {
			log.Printf("Level %d: removing unfinished table %s", levelNo, name)
			os.Remove(filepath.Join(dir, name))
			continue
		}
		if !strings.HasSuffix(name, SsTableSuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, SsTableSuffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	tables := make([]*SsTable, 0, len(ids))
	for _, id := range ids {
		table, err := OpenSsTable(dir, id, levelNo, valueLog)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	l := &Level{
		levelNo:  levelNo,
		dir:      dir,
		valueLog: valueLog,
		nextId:   1,
	}
	if len(ids) > 0 {
		l.nextId = ids[len(ids)-1] + 1
	}
	l.tables.Store(&tables)
	return l, nil
}

func (l *Level) snapshot() []*SsTable {
	return *l.tables.Load()
}

func (l *Level) add(table *SsTable) {
	current := l.snapshot()
	next := make([]*SsTable, len(current), len(current)+1)
	copy(next, current)
	next = append(next, table)
	l.tables.Store(&next)
	l.nextId++
}

func (l *Level) LevelNo() int {
	return l.levelNo
}

// Size is the number of tables currently in the level.
func (l *Level) Size() int {
	return len(l.snapshot())
}

func (l *Level) IsFull() bool {
	return l.Size() >= LevelSsTableCount
}

func (l *Level) Tables() []*SsTable {
	return l.snapshot()
}

// MergeMemTable adds a leaf table built from a frozen memtable. Making room when the
// level is full is up to the caller.
func (l *Level) MergeMemTable(imm *Immutable) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	table, err := CreateLeafTable(l.dir, l.nextId, l.levelNo, l.valueLog, imm)
	if err != nil {
		return errors.Wrapf(err, "level %d: flush memtable", l.levelNo)
	}
	l.add(table)
	return nil
}

// MergeLevel adds one index table holding the sorted union of lower's tables.
// The lower level is left untouched.
func (l *Level) MergeLevel(lower *Level, dropTombstones bool) error {
	entries := lower.All()
	if dropTombstones {
		live := entries[:0:0]
		for _, entry := range entries {
			if !entry.Tombstone {
				live = append(live, entry)
			}
		}
		entries = live
	}
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	table, err := CreateIndexTable(l.dir, l.nextId, l.levelNo, l.valueLog, entries)
	if err != nil {
		return errors.Wrapf(err, "level %d: merge level %d", l.levelNo, lower.levelNo)
	}
	l.add(table)
	return nil
}

// Clear empties the level and removes its table files.
func (l *Level) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tables := l.snapshot()
	empty := make([]*SsTable, 0, LevelSsTableCount)
	l.tables.Store(&empty)

	var errs error
	for _, table := range tables {
		errs = errors.CombineErrors(errs, table.Remove())
	}
	return errs
}

// All returns the level's logical content sorted by key, keeping only the newest
// entry for each key.
func (l *Level) All() []domain.DbIndex {
	var all []domain.DbIndex
	for _, table := range l.snapshot() {
		all = append(all, table.DbIndexList()...)
	}
	// stable: equal keys stay oldest table first
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Key.Compare(all[j].Key) < 0
	})

	deduped := all[:0]
	for i, entry := range all {
		if i+1 < len(all) && all[i+1].Key.Equal(entry.Key) {
			continue
		}
		deduped = append(deduped, entry)
	}
	return deduped
}

func (l *Level) Contains(key domain.DbKey) bool {
	for _, table := range l.snapshot() {
		if table.Contains(key) {
			return true
		}
	}
	return false
}

// Find probes tables newest to oldest and stops at the first one holding key,
// whether as a value or a tombstone.
func (l *Level) Find(key domain.DbKey) (domain.DbValue, bool, error) {
	tables := l.snapshot()
	for i := len(tables) - 1; i >= 0; i-- {
		if !tables[i].Contains(key) {
			continue
		}
		value, found, err := tables[i].Find(key)
		if err != nil {
			return domain.DbValue{}, false, err
		}
		if found {
			return value, true, nil
		}
	}
	return domain.DbValue{}, false, nil
}

// FindColumns aggregates the row across tables oldest to newest, so the newest
// table's value for a column wins.
func (l *Level) FindColumns(key []byte, columnFamily string) (map[string]domain.DbValue, error) {
	columns := map[string]domain.DbValue{}
	for _, table := range l.snapshot() {
		found, err := table.FindColumns(key, columnFamily)
		if err != nil {
			return nil, err
		}
		for column, value := range found {
			columns[column] = value
		}
	}
	return columns, nil
}

// Delete removes key from the newest table holding it. A key whose newest entry is
// already a tombstone is left alone.
func (l *Level) Delete(key domain.DbKey) (bool, error) {
	tables := l.snapshot()
	for i := len(tables) - 1; i >= 0; i-- {
		if !tables[i].Contains(key) || !tables[i].holds(key) {
			continue
		}
		return tables[i].Delete(key)
	}
	return false, nil
}
