package lsm_tree

import (
	"math/rand"
	"time"
	"unsafe"

	"WCKV/internal/domain"
)

// MemEntry is one buffered column write or tombstone.
type MemEntry struct {
	Key   domain.DbKey
	Value domain.DbValue
}

func (e MemEntry) size() int {
	return len(e.Key.Key) + len(e.Key.ColumnFamily) + len(e.Key.Column) + len(e.Value.Value()) +
		int(unsafe.Sizeof(e.Value.Tombstone()))
}

type SkipList struct {
	maxLevel int
	p        float64
	level    int
	rand     *rand.Rand
	size     int
	count    int
	head     *Element
}

type Element struct {
	MemEntry
	next []*Element
}

func NewSkipList(maxLevel int, p float64) *SkipList {
	return &SkipList{
		maxLevel: maxLevel,
		p:        p,
		level:    1,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		head: &Element{
			next: make([]*Element, maxLevel),
		},
	}
}

func (s *SkipList) Reset() *SkipList {
	return NewSkipList(s.maxLevel, s.p)
}

// Size is the approximate number of bytes held.
func (s *SkipList) Size() int {
	return s.size
}

func (s *SkipList) Count() int {
	return s.count
}

func (s *SkipList) Set(entry MemEntry) {
	curr := s.head
	update := make([]*Element, s.maxLevel)

	for i := s.maxLevel - 1; i >= 0; i-- {
		for curr.next[i] != nil && curr.next[i].Key.Compare(entry.Key) < 0 {
			curr = curr.next[i]
		}
		update[i] = curr
	}
	if next := curr.next[0]; next != nil && next.Key.Equal(entry.Key) {
		s.size += len(entry.Value.Value()) - len(next.Value.Value())
		// update value and tombstone in place
		next.Value = entry.Value
		return
	}
	level := s.randomLevel()

	if level > s.level {
		for i := s.level; i < level; i++ {
			update[i] = s.head
		}
		s.level = level
	}

	e := &Element{
		entry,
		make([]*Element, level),
	}

	for i := 0; i < level; i++ {
		e.next[i] = update[i].next[i]
		update[i].next[i] = e
	}
	s.count++
	s.size += entry.size() + len(e.next)*int(unsafe.Sizeof((*Element)(nil)))
}

// seek returns the first element whose key is >= key.
func (s *SkipList) seek(key domain.DbKey) *Element {
	curr := s.head

	for i := s.maxLevel - 1; i >= 0; i-- {
		for curr.next[i] != nil && curr.next[i].Key.Compare(key) < 0 {
			curr = curr.next[i]
		}
	}
	return curr.next[0]
}

func (s *SkipList) Get(key domain.DbKey) (domain.DbValue, bool) {
	curr := s.seek(key)
	if curr != nil && curr.Key.Equal(key) {
		return curr.Value, true
	}
	return domain.DbValue{}, false
}

// Row returns every entry under (key, columnFamily), tombstones included.
func (s *SkipList) Row(key []byte, columnFamily string) []MemEntry {
	var row []MemEntry
	for curr := s.seek(domain.NewDbKey(key, columnFamily, "")); curr != nil && curr.Key.SameRow(key, columnFamily); curr = curr.next[0] {
		row = append(row, curr.MemEntry)
	}
	return row
}

func (s *SkipList) All() []MemEntry {
	all := make([]MemEntry, 0, s.count)

	for curr := s.head.next[0]; curr != nil; curr = curr.next[0] {
		all = append(all, curr.MemEntry)
	}

	return all
}

func (s *SkipList) randomLevel() int {
	level := 1
	for s.rand.Float64() < s.p && level < s.maxLevel {
		level++
	}
	return level
}
