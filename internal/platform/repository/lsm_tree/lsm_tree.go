package lsm_tree

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"WCKV/internal/domain"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cockroachdb/errors"
)

const (
	walDirName    = "wal"
	valueDirName  = "value"
	levelsDirName = "levels"
)

var ErrClosed = errors.New("lsm tree closed")

type Options struct {
	MemTable MemTableOptions
	ValueLog logfile.Options
	Wal      logfile.Options
}

func DefaultOptions() Options {
	return Options{
		MemTable: DefaultMemTableOptions(),
		ValueLog: logfile.DefaultOptions(),
		Wal:      logfile.DefaultOptions(),
	}
}

// LsmTree is the storage engine: a write-ahead log and memtable in front of the level
// tree, with every value kept in a separate value log. Writes are serialized; reads
// run concurrently with them.
type LsmTree struct {
	mu       sync.Mutex
	dir      string
	closed   bool
	memtable *Memtable
	wal      *WAL
	valueLog *logfile.LogGroup
	levels   *LevelTree
}

// Open loads the engine stored under dir and replays the mutations that had not been
// flushed to level 0 yet.
func Open(dir string, options Options) (*LsmTree, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, domain.CorruptStorage("%s is not a directory", dir)
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.StorageIo(err, "create data directory %s", dir)
		}
	case err != nil:
		return nil, domain.StorageIo(err, "stat data directory %s", dir)
	}

	valueLog, err := logfile.Open(filepath.Join(dir, valueDirName), options.ValueLog)
	if err != nil {
		return nil, errors.Wrap(err, "open value log")
	}
	levels, err := OpenLevelTree(filepath.Join(dir, levelsDirName), valueLog)
	if err != nil {
		valueLog.Close()
		return nil, errors.Wrap(err, "open level tree")
	}
	wal, err := OpenWal(filepath.Join(dir, walDirName), options.Wal)
	if err != nil {
		valueLog.Close()
		return nil, errors.Wrap(err, "open wal")
	}

	t := &LsmTree{
		dir:      dir,
		memtable: NewMemtable(options.MemTable),
		wal:      wal,
		valueLog: valueLog,
		levels:   levels,
	}
	if err := t.replay(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *LsmTree) replay() error {
	mutations, err := t.wal.Read()
	if err != nil {
		return errors.Wrap(err, "replay wal")
	}
	for _, m := range mutations {
		t.put(m)
	}
	if len(mutations) > 0 {
		log.Printf("Replayed %d mutations from %s", len(mutations), filepath.Join(t.dir, walDirName))
	}
	if t.memtable.IsFull() {
		return t.flush()
	}
	return nil
}

func (t *LsmTree) put(m domain.Mutation) {
	for _, value := range m.Values {
		t.memtable.Put(m.DbKey(value.Column()), value)
	}
}

func (t *LsmTree) find(key domain.DbKey) (domain.DbValue, bool, error) {
	if value, ok := t.memtable.Get(key); ok {
		return value, true, nil
	}
	return t.levels.Find(key)
}

// Find returns the value of one column; a deleted column is absent.
func (t *LsmTree) Find(key []byte, columnFamily, column string) ([]byte, bool, error) {
	value, found, err := t.find(domain.NewDbKey(key, columnFamily, column))
	if err != nil || !found || value.Tombstone() {
		return nil, false, err
	}
	return value.Value(), true, nil
}

func (t *LsmTree) row(key []byte, columnFamily string) (map[string]domain.DbValue, error) {
	row := map[string]domain.DbValue{}
	t.memtable.Row(key, columnFamily, row)
	if err := t.levels.FindColumns(key, columnFamily, row); err != nil {
		return nil, err
	}
	return row, nil
}

// FindColumns returns every live column of (key, columnFamily).
func (t *LsmTree) FindColumns(key []byte, columnFamily string) (map[string][]byte, error) {
	row, err := t.row(key, columnFamily)
	if err != nil {
		return nil, err
	}
	columns := make(map[string][]byte, len(row))
	for column, value := range row {
		if !value.Tombstone() {
			columns[column] = value.Value()
		}
	}
	return columns, nil
}

func (t *LsmTree) Insert(key []byte, columnFamily, column string, value []byte) (domain.MessageKey, error) {
	return t.Apply(domain.MutationFromInsert(key, columnFamily, map[string][]byte{column: value}))
}

func (t *LsmTree) InsertColumns(key []byte, columnFamily string, columns map[string][]byte) (domain.MessageKey, error) {
	return t.Apply(domain.MutationFromInsert(key, columnFamily, columns))
}

func (t *LsmTree) Delete(key []byte, columnFamily, column string) (domain.MessageKey, error) {
	return t.Apply(domain.MutationFromDelete(key, columnFamily, column))
}

// DeleteColumns writes a tombstone for every live column of (key, columnFamily).
func (t *LsmTree) DeleteColumns(key []byte, columnFamily string) (domain.MessageKey, error) {
	return t.Apply(domain.MutationFromDelete(key, columnFamily))
}

// Apply logs and applies one mutation. A delete without columns removes every live
// column of its row. The message key is returned even when the write fails. An
// error means the mutation was not logged.
func (t *LsmTree) Apply(m domain.Mutation) (domain.MessageKey, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	messageKey := m.MessageKey()
	if t.closed {
		return messageKey, ErrClosed
	}

	if m.Kind == domain.MutationDelete && m.IsEmpty() {
		row, err := t.row(m.Key, m.ColumnFamily)
		if err != nil {
			return messageKey, err
		}
		for column, value := range row {
			if !value.Tombstone() {
				m.AddValue(domain.NewTombstone(column))
			}
		}
	}
	if m.IsEmpty() {
		return messageKey, nil
	}

	if err := t.wal.Write(m); err != nil {
		return messageKey, err
	}
	t.put(m)

	// the mutation is durable and visible once logged, a failed flush is retried
	// by the next one
	if t.memtable.IsFull() {
		if err := t.flush(); err != nil {
			log.Printf("Failed to flush memtable after %s: %v", messageKey, err)
		}
	}
	return messageKey, nil
}

// flush moves the memtable into level 0 and truncates the wal. If the merge fails the
// frozen entries stay readable and are folded into the next flush.
func (t *LsmTree) flush() error {
	imm := t.memtable.Freeze()
	if err := t.levels.Merge(imm); err != nil {
		return err
	}
	t.memtable.Release(imm)
	log.Printf("Flushed %d memtable entries to level 0", imm.Len())
	return t.wal.Reset()
}

// Flush forces the memtable, and any snapshot a failed merge left behind, into level 0.
func (t *LsmTree) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.memtable.Empty() {
		return nil
	}
	return t.flush()
}

func (t *LsmTree) Levels() *LevelTree {
	return t.levels
}

// Close releases the logs. Unflushed mutations stay in the wal for the next Open.
func (t *LsmTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return errors.CombineErrors(t.wal.Close(), t.valueLog.Close())
}
