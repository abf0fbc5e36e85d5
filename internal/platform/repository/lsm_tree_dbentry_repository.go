package repository

import (
	"WCKV/internal/domain"
	"WCKV/internal/platform/metrics"
	"WCKV/internal/platform/repository/lsm_tree"
)

const (
	operationFind          = "find"
	operationFindColumns   = "find_columns"
	operationInsert        = "insert"
	operationInsertColumns = "insert_columns"
	operationDelete        = "delete"
	operationDeleteColumns = "delete_columns"
)

// LSMTreeRepository exposes the LSM tree as the engine used by the services and
// counts every operation.
type LSMTreeRepository struct {
	tree *lsm_tree.LsmTree
}

var _ domain.StorageEngine = (*LSMTreeRepository)(nil)

func NewLSMTreeRepository(tree *lsm_tree.LsmTree) *LSMTreeRepository {
	return &LSMTreeRepository{
		tree: tree,
	}
}

func observe(operation string, err error) {
	metrics.EngineOperationsTotal.WithLabelValues(operation, metrics.Result(err)).Inc()
}

func (r *LSMTreeRepository) Find(key []byte, columnFamily, column string) ([]byte, bool, error) {
	value, found, err := r.tree.Find(key, columnFamily, column)
	observe(operationFind, err)
	return value, found, err
}

func (r *LSMTreeRepository) FindColumns(key []byte, columnFamily string) (map[string][]byte, error) {
	columns, err := r.tree.FindColumns(key, columnFamily)
	observe(operationFindColumns, err)
	return columns, err
}

func (r *LSMTreeRepository) Insert(key []byte, columnFamily, column string, value []byte) (domain.MessageKey, error) {
	messageKey, err := r.tree.Insert(key, columnFamily, column, value)
	observe(operationInsert, err)
	return messageKey, err
}

func (r *LSMTreeRepository) InsertColumns(key []byte, columnFamily string, columns map[string][]byte) (domain.MessageKey, error) {
	messageKey, err := r.tree.InsertColumns(key, columnFamily, columns)
	observe(operationInsertColumns, err)
	return messageKey, err
}

func (r *LSMTreeRepository) Delete(key []byte, columnFamily, column string) (domain.MessageKey, error) {
	messageKey, err := r.tree.Delete(key, columnFamily, column)
	observe(operationDelete, err)
	return messageKey, err
}

func (r *LSMTreeRepository) DeleteColumns(key []byte, columnFamily string) (domain.MessageKey, error) {
	messageKey, err := r.tree.DeleteColumns(key, columnFamily)
	observe(operationDeleteColumns, err)
	return messageKey, err
}

func (r *LSMTreeRepository) Close() error {
	return r.tree.Close()
}
