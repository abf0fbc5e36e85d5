package lsm_tree

import (
	"os"

	"WCKV/internal/domain"
	"WCKV/internal/platform/codec"
	"WCKV/internal/platform/repository/logfile"
	"github.com/cockroachdb/errors"
)

const walDeletingSuffix = ".deleting"

// WAL logs every mutation before it reaches the memtable. Each record carries the
// mutation id as extra data and the encoded mutation as payload.
type WAL struct {
	dir     string
	options logfile.Options
	group   *logfile.LogGroup
}

func OpenWal(dir string, options logfile.Options) (*WAL, error) {
	// a reset interrupted after the rename leaves only this behind
	if err := os.RemoveAll(dir + walDeletingSuffix); err != nil {
		return nil, domain.StorageIo(err, "remove %s", dir+walDeletingSuffix)
	}
	group, err := logfile.Open(dir, options)
	if err != nil {
		return nil, err
	}
	return &WAL{
		dir:     dir,
		options: options,
		group:   group,
	}, nil
}

func (w *WAL) Write(m domain.Mutation) error {
	payload, err := codec.EncodeMutation(m)
	if err != nil {
		return err
	}
	if _, err := w.group.Append([]byte(m.Id), payload); err != nil {
		return errors.Wrapf(err, "write mutation %s to wal", m.Id)
	}
	return nil
}

// Read returns the logged mutations in write order.
func (w *WAL) Read() ([]domain.Mutation, error) {
	var mutations []domain.Mutation
	err := w.group.ForEach(func(entry logfile.LogEntry) error {
		m, err := codec.DecodeMutation(string(entry.ExtraData), entry.Payload)
		if err != nil {
			return errors.Wrapf(err, "wal record %d", entry.Index)
		}
		mutations = append(mutations, m)
		return nil
	})
	return mutations, err
}

func (w *WAL) Len() int64 {
	return w.group.MaxGlobalIndex()
}

func (w *WAL) Sync() error {
	return w.group.Sync()
}

// Reset discards every logged mutation. The log directory is renamed away before it
// is removed so a crash never leaves a partially deleted log to be replayed.
func (w *WAL) Reset() error {
	if err := w.group.Close(); err != nil {
		return domain.StorageIo(err, "close wal %s", w.dir)
	}
	deleting := w.dir + walDeletingSuffix
	if err := os.Rename(w.dir, deleting); err != nil {
		return domain.StorageIo(err, "rename wal %s", w.dir)
	}
	if err := os.RemoveAll(deleting); err != nil {
		return domain.StorageIo(err, "remove wal %s", deleting)
	}
	group, err := logfile.Open(w.dir, w.options)
	if err != nil {
		return err
	}
	w.group = group
	return nil
}

func (w *WAL) Close() error {
	return w.group.Close()
}
