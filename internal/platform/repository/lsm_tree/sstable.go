package lsm_tree

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"WCKV/internal/domain"
	"WCKV/internal/platform/codec"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/greatroar/blobloom"
)

const (
	SsTableSuffix = ".sst"
	deleteSuffix  = ".del"
	tmpSuffix     = ".tmp"

	ssTableMagic int32 = 0x57435354

	leafTable  byte = 1
	indexTable byte = 2

	bloomFalsePositiveRate = 0.01
)

// SsTable is an immutable, key-sorted run of DbIndex pointers into the value log.
//
// File layout: a header frame [RAW int magic][RAW byte kind][RAW int level][RAW int count],
// then one frame per entry [VAR key][VAR cf][VAR column][RAW byte tombstone][RAW long valueIndex].
// Deletes never touch the table file; they are appended as key frames to a sidecar
// <id>.del file and the entry reads as a tombstone until compaction drops it.
type SsTable struct {
	id       int
	levelNo  int
	kind     byte
	path     string
	valueLog *logfile.LogGroup
	entries  []domain.DbIndex
	filter   *blobloom.Filter

	mu      sync.RWMutex
	deleted map[string]struct{}
}

func ssTablePath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", id, SsTableSuffix))
}

// CreateLeafTable writes a frozen memtable as a new table. Live values are appended
// to the value log first, keyed by their encoded DbKey; tombstones carry no pointer.
func CreateLeafTable(dir string, id, levelNo int, valueLog *logfile.LogGroup, imm *Immutable) (*SsTable, error) {
	entries := make([]domain.DbIndex, 0, imm.Len())
	for _, e := range imm.All() {
		if e.Value.Tombstone() {
			entries = append(entries, domain.NewTombstoneIndex(e.Key))
			continue
		}
		encodedKey, err := codec.EncodeDbKey(e.Key)
		if err != nil {
			return nil, err
		}
		globalIndex, err := valueLog.Append(encodedKey, e.Value.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "store value of %s", e.Key)
		}
		entries = append(entries, domain.NewDbIndex(e.Key, globalIndex))
	}
	if err := valueLog.Sync(); err != nil {
		return nil, err
	}
	return writeSsTable(dir, id, levelNo, leafTable, valueLog, entries)
}

// CreateIndexTable writes an already sorted DbIndex stream as a new table.
func CreateIndexTable(dir string, id, levelNo int, valueLog *logfile.LogGroup, entries []domain.DbIndex) (*SsTable, error) {
	return writeSsTable(dir, id, levelNo, indexTable, valueLog, entries)
}

func writeSsTable(dir string, id, levelNo int, kind byte, valueLog *logfile.LogGroup, entries []domain.DbIndex) (*SsTable, error) {
	path := ssTablePath(dir, id)
	tmp := path + tmpSuffix

	fd, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, domain.StorageIo(err, "create table %s", tmp)
	}
	if err := writeEntries(fd, kind, levelNo, entries); err != nil {
		fd.Close()
		os.Remove(tmp)
		return nil, err
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		os.Remove(tmp)
		return nil, domain.StorageIo(err, "sync table %s", tmp)
	}
	if err := fd.Close(); err != nil {
		os.Remove(tmp)
		return nil, domain.StorageIo(err, "close table %s", tmp)
	}
	// a sidecar left behind by an earlier table with this id must not apply to the new one
	if err := os.Remove(path + deleteSuffix); err != nil && !os.IsNotExist(err) {
		os.Remove(tmp)
		return nil, domain.StorageIo(err, "remove stale deletes for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, domain.StorageIo(err, "install table %s", path)
	}

	return newSsTable(path, id, levelNo, kind, valueLog, entries, map[string]struct{}{}), nil
}

func writeEntries(w io.Writer, kind byte, levelNo int, entries []domain.DbIndex) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	header := codec.NewBytesList().
		AppendRawInt(ssTableMagic).
		AppendRawByte(kind).
		AppendRawInt(int32(levelNo)).
		AppendRawInt(int32(len(entries)))
	if _, err := header.WriteTo(bw); err != nil {
		return err
	}
	for i, entry := range entries {
		if i > 0 && entries[i-1].Key.Compare(entry.Key) >= 0 {
			return domain.Programming("table entries out of order at %s", entry.Key)
		}
		if _, err := codec.DbIndexFields(codec.NewBytesList(), entry).WriteTo(bw); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return domain.StorageIo(err, "write table")
	}
	return nil
}

func newSsTable(path string, id, levelNo int, kind byte, valueLog *logfile.LogGroup,
	entries []domain.DbIndex, deleted map[string]struct{}) *SsTable {
	filter := blobloom.NewOptimized(blobloom.Config{
		Capacity: uint64(max(len(entries), 1)),
		FPRate:   bloomFalsePositiveRate,
	})
	for _, entry := range entries {
		filter.Add(keyHash(entry.Key))
	}
	return &SsTable{
		id:       id,
		levelNo:  levelNo,
		kind:     kind,
		path:     path,
		valueLog: valueLog,
		entries:  entries,
		filter:   filter,
		deleted:  deleted,
	}
}

// OpenSsTable loads a table file and its delete sidecar, if any.
func OpenSsTable(dir string, id, levelNo int, valueLog *logfile.LogGroup) (*SsTable, error) {
	path := ssTablePath(dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.StorageIo(err, "read table %s", path)
	}
	reader := bytes.NewReader(data)

	header, err := codec.ReadFrame(reader)
	if err != nil {
		return nil, domain.CorruptStorage("table %s: unreadable header: %v", path, err)
	}
	r := codec.NewReader(header)
	magic, err := r.Int()
	if err != nil {
		return nil, errors.Wrapf(err, "table %s header", path)
	}
	if magic != ssTableMagic {
		return nil, domain.CorruptStorage("table %s: bad magic %x", path, magic)
	}
	kind, err := r.Byte()
	if err != nil {
		return nil, errors.Wrapf(err, "table %s header", path)
	}
	if _, err := r.Int(); err != nil {
		return nil, errors.Wrapf(err, "table %s header", path)
	}
	count, err := r.Int()
	if err != nil {
		return nil, errors.Wrapf(err, "table %s header", path)
	}

	entries := make([]domain.DbIndex, 0, count)
	for i := 0; i < int(count); i++ {
		frame, err := codec.ReadFrame(reader)
		if err != nil {
			return nil, domain.CorruptStorage("table %s: entry %d of %d unreadable: %v", path, i, count, err)
		}
		entry, err := codec.ReadDbIndex(codec.NewReader(frame))
		if err != nil {
			return nil, errors.Wrapf(err, "table %s entry %d", path, i)
		}
		entries = append(entries, entry)
	}

	deleted, err := loadDeletes(path + deleteSuffix)
	if err != nil {
		return nil, err
	}
	return newSsTable(path, id, levelNo, kind, valueLog, entries, deleted), nil
}

// loadDeletes reads the delete sidecar. A torn final frame is a delete that never
// completed and is ignored.
func loadDeletes(path string) (map[string]struct{}, error) {
	deleted := map[string]struct{}{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return deleted, nil
	}
	if err != nil {
		return nil, domain.StorageIo(err, "read deletes %s", path)
	}
	reader := bytes.NewReader(data)
	for {
		frame, err := codec.ReadFrame(reader)
		if err != nil {
			break
		}
		deleted[string(frame)] = struct{}{}
	}
	return deleted, nil
}

func keyHash(key domain.DbKey) uint64 {
	encoded, _ := codec.EncodeDbKey(key)
	return xxhash.Sum64(encoded)
}

func (s *SsTable) Id() int {
	return s.id
}

func (s *SsTable) LevelNo() int {
	return s.levelNo
}

func (s *SsTable) IsLeaf() bool {
	return s.kind == leafTable
}

func (s *SsTable) Len() int {
	return len(s.entries)
}

// Contains may report false positives but never false negatives.
func (s *SsTable) Contains(key domain.DbKey) bool {
	return s.filter.Has(keyHash(key))
}

func (s *SsTable) seek(key domain.DbKey) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Key.Compare(key) >= 0
	})
}

func (s *SsTable) isDeleted(key domain.DbKey) bool {
	encoded, _ := codec.EncodeDbKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleted[string(encoded)]
	return ok
}

// effective applies the delete sidecar to a stored entry.
func (s *SsTable) effective(entry domain.DbIndex) domain.DbIndex {
	if !entry.Tombstone && s.isDeleted(entry.Key) {
		return domain.NewTombstoneIndex(entry.Key)
	}
	return entry
}

func (s *SsTable) resolve(entry domain.DbIndex) (domain.DbValue, error) {
	if entry.Tombstone {
		return domain.NewTombstone(entry.Key.Column), nil
	}
	record, found, err := s.valueLog.Find(entry.ValueGlobalIndex)
	if err != nil {
		return domain.DbValue{}, errors.Wrapf(err, "table %s: value of %s", s.path, entry.Key)
	}
	if !found {
		return domain.DbValue{}, domain.CorruptStorage("table %s: value %d of %s missing from value log",
			s.path, entry.ValueGlobalIndex, entry.Key)
	}
	return domain.NewDbValue(entry.Key.Column, record.Payload), nil
}

// holds reports whether the table has an entry for key, tombstone or not.
func (s *SsTable) holds(key domain.DbKey) bool {
	i := s.seek(key)
	return i < len(s.entries) && s.entries[i].Key.Equal(key)
}

// Find returns the value or tombstone stored for key.
func (s *SsTable) Find(key domain.DbKey) (domain.DbValue, bool, error) {
	i := s.seek(key)
	if i == len(s.entries) || !s.entries[i].Key.Equal(key) {
		return domain.DbValue{}, false, nil
	}
	value, err := s.resolve(s.effective(s.entries[i]))
	if err != nil {
		return domain.DbValue{}, false, err
	}
	return value, true, nil
}

// FindColumns returns every column stored for (key, columnFamily), tombstones included.
func (s *SsTable) FindColumns(key []byte, columnFamily string) (map[string]domain.DbValue, error) {
	columns := map[string]domain.DbValue{}
	for i := s.seek(domain.NewDbKey(key, columnFamily, "")); i < len(s.entries); i++ {
		entry := s.entries[i]
		if !entry.Key.SameRow(key, columnFamily) {
			break
		}
		value, err := s.resolve(s.effective(entry))
		if err != nil {
			return nil, err
		}
		columns[entry.Key.Column] = value
	}
	return columns, nil
}

// Delete marks the live entry for key as deleted within this table only.
func (s *SsTable) Delete(key domain.DbKey) (bool, error) {
	i := s.seek(key)
	if i == len(s.entries) || !s.entries[i].Key.Equal(key) || s.effective(s.entries[i]).Tombstone {
		return false, nil
	}

	encoded, err := codec.EncodeDbKey(key)
	if err != nil {
		return false, err
	}
	frame, err := codec.NewBytesList().AppendRawBytes(encoded).ToBytes()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path + deleteSuffix
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return false, domain.StorageIo(err, "open deletes %s", path)
	}
	defer fd.Close()
	if _, err := fd.Write(frame); err != nil {
		return false, domain.StorageIo(err, "append delete to %s", path)
	}
	if err := fd.Sync(); err != nil {
		return false, domain.StorageIo(err, "sync deletes %s", path)
	}
	s.deleted[string(encoded)] = struct{}{}
	return true, nil
}

// DbIndexList returns the table's entries in key order with sidecar deletes
// reported as tombstones.
func (s *SsTable) DbIndexList() []domain.DbIndex {
	list := make([]domain.DbIndex, len(s.entries))
	for i, entry := range s.entries {
		list[i] = s.effective(entry)
	}
	return list
}

// Remove deletes the table file and its sidecar.
func (s *SsTable) Remove() error {
	var errs error
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		errs = errors.CombineErrors(errs, domain.StorageIo(err, "remove table %s", s.path))
	}
	if err := os.Remove(s.path + deleteSuffix); err != nil && !os.IsNotExist(err) {
		errs = errors.CombineErrors(errs, domain.StorageIo(err, "remove deletes %s", s.path))
	}
	return errs
}
