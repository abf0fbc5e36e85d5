package lsm_tree

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"WCKV/internal/domain"
	"WCKV/internal/platform/metrics"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// LevelTree owns the levels by number. Levels are created one at a time as
// cascades reach them and are never removed. Merges are serialized; lookups of
// existing levels are lock-free.
type LevelTree struct {
	mu       sync.Mutex
	dir      string
	valueLog *logfile.LogGroup
	levels   *xsync.MapOf[int, *Level]
}

func OpenLevelTree(dir string, valueLog *logfile.LogGroup) (*LevelTree, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, domain.StorageIo(err, "create levels directory %s", dir)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.StorageIo(err, "list levels directory %s", dir)
	}

	deepest := 0
	for _, file := range files {
		if !file.IsDir() {
			continue
		}
		levelNo, err := strconv.Atoi(file.Name())
		if err != nil || levelNo < 0 {
			continue
		}
		deepest = max(deepest, levelNo)
	}

	t := &LevelTree{
		dir:      dir,
		valueLog: valueLog,
		levels:   xsync.NewMapOf[int, *Level](),
	}
	for levelNo := 0; levelNo <= deepest; levelNo++ {
		level, err := OpenLevel(dir, levelNo, valueLog)
		if err != nil {
			return nil, err
		}
		t.levels.Store(levelNo, level)
	}
	log.Printf("Opened level tree %s with %d levels", dir, t.Depth())
	return t, nil
}

func (t *LevelTree) Get(levelNo int) (*Level, bool) {
	return t.levels.Load(levelNo)
}

func (t *LevelTree) Put(levelNo int, level *Level) {
	t.levels.Store(levelNo, level)
}

// Depth is the number of levels created so far.
func (t *LevelTree) Depth() int {
	return t.levels.Size()
}

// Levels returns the levels in ascending level number.
func (t *LevelTree) Levels() []*Level {
	levels := make([]*Level, 0, t.Depth())
	for levelNo := 0; ; levelNo++ {
		level, ok := t.Get(levelNo)
		if !ok {
			return levels
		}
		levels = append(levels, level)
	}
}

func (t *LevelTree) getOrCreate(levelNo int) (*Level, error) {
	if level, ok := t.Get(levelNo); ok {
		return level, nil
	}
	level, err := OpenLevel(t.dir, levelNo, t.valueLog)
	if err != nil {
		return nil, err
	}
	t.Put(levelNo, level)
	log.Printf("Level tree %s: created level %d", t.dir, levelNo)
	return level, nil
}

// Merge flushes a frozen memtable into level 0, cascading full levels downward first.
// A failed cascade leaves every level as it was before the call.
func (t *LevelTree) Merge(imm *Immutable) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	level0, err := t.getOrCreate(0)
	if err != nil {
		return err
	}
	if level0.IsFull() {
		if err := t.cascade(level0); err != nil {
			return err
		}
	}
	if err := level0.MergeMemTable(imm); err != nil {
		return err
	}
	metrics.MemTableFlushesTotal.Inc()
	return nil
}

// cascade moves the whole of lower into the next level. The next level's table is
// written before lower is cleared so a crash in between only leaves duplicates.
func (t *LevelTree) cascade(lower *Level) (err error) {
	levelLabel := strconv.Itoa(lower.LevelNo())
	defer func() {
		metrics.CompactionsTotal.WithLabelValues(levelLabel, metrics.Result(err)).Inc()
	}()

	upperNo := lower.LevelNo() + 1
	upper, err := t.getOrCreate(upperNo)
	if err != nil {
		return err
	}
	if upper.IsFull() {
		if err := t.cascade(upper); err != nil {
			return err
		}
	}

	_, deeper := t.Get(upperNo + 1)
	dropTombstones := !deeper && upper.Size() == 0

	start := time.Now()
	if err := upper.MergeLevel(lower, dropTombstones); err != nil {
		return err
	}
	if err := lower.Clear(); err != nil {
		return errors.Wrapf(err, "clear level %d after cascade", lower.LevelNo())
	}
	elapsed := time.Since(start)
	metrics.CompactionSeconds.Observe(elapsed.Seconds())
	log.Printf("Level tree %s: cascaded level %d into level %d (%d tables) in %s",
		t.dir, lower.LevelNo(), upperNo, upper.Size(), elapsed)
	return nil
}

// Find probes levels in ascending order; a lower level number is more recent.
// Levels are looked up one at a time so a level created by a concurrent cascade is
// still reached.
func (t *LevelTree) Find(key domain.DbKey) (domain.DbValue, bool, error) {
	for levelNo := 0; ; levelNo++ {
		level, ok := t.Get(levelNo)
		if !ok {
			break
		}
		value, found, err := level.Find(key)
		if err != nil || found {
			return value, found, err
		}
	}
	return domain.DbValue{}, false, nil
}

// FindColumns fills dst with the row's columns that dst does not hold yet, probing
// levels in ascending order so the most recent value of each column is kept.
func (t *LevelTree) FindColumns(key []byte, columnFamily string, dst map[string]domain.DbValue) error {
	for levelNo := 0; ; levelNo++ {
		level, ok := t.Get(levelNo)
		if !ok {
			break
		}
		columns, err := level.FindColumns(key, columnFamily)
		if err != nil {
			return err
		}
		for column, value := range columns {
			if _, seen := dst[column]; !seen {
				dst[column] = value
			}
		}
	}
	return nil
}

// Delete removes key from the most recent level holding it live.
func (t *LevelTree) Delete(key domain.DbKey) (bool, error) {
	for _, level := range t.Levels() {
		deleted, err := level.Delete(key)
		if err != nil || deleted {
			return deleted, err
		}
	}
	return false, nil
}
