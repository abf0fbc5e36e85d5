package lsm_tree

import (
	"sort"
	"sync"

	"WCKV/internal/domain"
)

const (
	DefaultMemTableMaxEntries = 2000
	DefaultMemTableMaxBytes   = 4 * 1024 * 1024

	skipListMaxLevel = 12
	skipListP        = 0.5
)

type MemTableOptions struct {
	MaxEntries int
	MaxBytes   int
}

func DefaultMemTableOptions() MemTableOptions {
	return MemTableOptions{
		MaxEntries: DefaultMemTableMaxEntries,
		MaxBytes:   DefaultMemTableMaxBytes,
	}
}

// Memtable buffers recent writes. Freeze hands the buffered entries to exactly one
// merge as an Immutable and installs a fresh list under the same lock; until Release,
// reads still see the frozen entries behind the active ones.
type Memtable struct {
	mu       sync.RWMutex
	options  MemTableOptions
	skiplist *SkipList
	frozen   *Immutable
}

func NewMemtable(options MemTableOptions) *Memtable {
	if options.MaxEntries <= 0 {
		options.MaxEntries = DefaultMemTableMaxEntries
	}
	if options.MaxBytes <= 0 {
		options.MaxBytes = DefaultMemTableMaxBytes
	}
	return &Memtable{
		options:  options,
		skiplist: NewSkipList(skipListMaxLevel, skipListP),
	}
}

func (mt *Memtable) Put(key domain.DbKey, value domain.DbValue) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.skiplist.Set(MemEntry{Key: key, Value: value})
}

// Get returns the newest buffered value for key; a tombstone counts as found.
func (mt *Memtable) Get(key domain.DbKey) (domain.DbValue, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	if v, ok := mt.skiplist.Get(key); ok {
		return v, true
	}
	if mt.frozen != nil {
		return mt.frozen.Get(key)
	}
	return domain.DbValue{}, false
}

// Row collects the buffered columns of (key, columnFamily) into dst, active entries
// overriding frozen ones.
func (mt *Memtable) Row(key []byte, columnFamily string, dst map[string]domain.DbValue) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	if mt.frozen != nil {
		for _, e := range mt.frozen.Row(key, columnFamily) {
			dst[e.Key.Column] = e.Value
		}
	}
	for _, e := range mt.skiplist.Row(key, columnFamily) {
		dst[e.Key.Column] = e.Value
	}
}

func (mt *Memtable) IsFull() bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	return mt.skiplist.Count() >= mt.options.MaxEntries || mt.skiplist.Size() >= mt.options.MaxBytes
}

func (mt *Memtable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.skiplist.Count()
}

// Empty reports whether nothing is buffered, frozen entries included.
func (mt *Memtable) Empty() bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.skiplist.Count() == 0 && mt.frozen == nil
}

// Freeze swaps the active list for an empty one and returns its contents in key
// order. A snapshot left over from a failed merge is folded in underneath.
func (mt *Memtable) Freeze() *Immutable {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	entries := mt.skiplist.All()
	if mt.frozen != nil {
		entries = overlay(mt.frozen.entries, entries)
	}
	mt.frozen = &Immutable{entries: entries}
	mt.skiplist = mt.skiplist.Reset()
	return mt.frozen
}

// Release drops the frozen snapshot once it is readable from level 0.
func (mt *Memtable) Release(imm *Immutable) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.frozen == imm {
		mt.frozen = nil
	}
}

// overlay merges two sorted runs; on equal keys the entry from newer wins.
func overlay(older, newer []MemEntry) []MemEntry {
	merged := make([]MemEntry, 0, len(older)+len(newer))
	i, j := 0, 0
	for i < len(older) && j < len(newer) {
		switch c := older[i].Key.Compare(newer[j].Key); {
		case c < 0:
			merged = append(merged, older[i])
			i++
		case c > 0:
			merged = append(merged, newer[j])
			j++
		default:
			merged = append(merged, newer[j])
			i++
			j++
		}
	}
	merged = append(merged, older[i:]...)
	return append(merged, newer[j:]...)
}

// Immutable is a frozen, key-ordered memtable snapshot.
type Immutable struct {
	entries []MemEntry
}

func NewImmutable(entries []MemEntry) *Immutable {
	sorted := append([]MemEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key.Compare(sorted[j].Key) < 0
	})
	return &Immutable{entries: sorted}
}

func (imm *Immutable) All() []MemEntry {
	return imm.entries
}

func (imm *Immutable) Len() int {
	return len(imm.entries)
}

func (imm *Immutable) seek(key domain.DbKey) int {
	return sort.Search(len(imm.entries), func(i int) bool {
		return imm.entries[i].Key.Compare(key) >= 0
	})
}

func (imm *Immutable) Get(key domain.DbKey) (domain.DbValue, bool) {
	i := imm.seek(key)
	if i < len(imm.entries) && imm.entries[i].Key.Equal(key) {
		return imm.entries[i].Value, true
	}
	return domain.DbValue{}, false
}

func (imm *Immutable) Row(key []byte, columnFamily string) []MemEntry {
	i := imm.seek(domain.NewDbKey(key, columnFamily, ""))
	j := i
	for j < len(imm.entries) && imm.entries[j].Key.SameRow(key, columnFamily) {
		j++
	}
	return imm.entries[i:j]
}
