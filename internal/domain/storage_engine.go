package domain

// StorageEngine is the operation contract offered to request handlers.
// Absence is reported through the boolean / missing map entries, never as an error.
// A mutation error means the mutation was not logged; a flush failing after the
// mutation was logged is not reported to the writer.
type StorageEngine interface {
	Find(key []byte, columnFamily, column string) ([]byte, bool, error)
	FindColumns(key []byte, columnFamily string) (map[string][]byte, error)
	Insert(key []byte, columnFamily, column string, value []byte) (MessageKey, error)
	InsertColumns(key []byte, columnFamily string, columns map[string][]byte) (MessageKey, error)
	Delete(key []byte, columnFamily, column string) (MessageKey, error)
	DeleteColumns(key []byte, columnFamily string) (MessageKey, error)
}

// InvalidationPublisher forwards the message key of every applied mutation to collaborators
// that cache or replicate by (key, columnFamily).
type InvalidationPublisher interface {
	Publish(key MessageKey) error
}
