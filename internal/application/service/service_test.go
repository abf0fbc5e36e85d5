package service

import (
	"bytes"
	"testing"

	"WCKV/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	rows            map[string]map[string][]byte
	findColumnCalls int
	insertCalls     int
	insertMultiCall int
	deleteAllCalls  int
	err             error

	// runs after FindColumns has read the row
	afterFindColumns func()
}

func newMockEngine() *mockEngine {
	return &mockEngine{rows: map[string]map[string][]byte{}}
}

func (m *mockEngine) row(key []byte, cf string) map[string][]byte {
	id := domain.NewMessageKey(key, cf).String()
	if m.rows[id] == nil {
		m.rows[id] = map[string][]byte{}
	}
	return m.rows[id]
}

func (m *mockEngine) Find(key []byte, cf, column string) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	value, ok := m.row(key, cf)[column]
	return value, ok, nil
}

func (m *mockEngine) FindColumns(key []byte, cf string) (map[string][]byte, error) {
	m.findColumnCalls++
	if m.err != nil {
		return nil, m.err
	}
	columns := map[string][]byte{}
	for column, value := range m.row(key, cf) {
		columns[column] = value
	}
	if m.afterFindColumns != nil {
		hook := m.afterFindColumns
		m.afterFindColumns = nil
		hook()
	}
	return columns, nil
}

func (m *mockEngine) Insert(key []byte, cf, column string, value []byte) (domain.MessageKey, error) {
	m.insertCalls++
	m.row(key, cf)[column] = value
	return domain.NewMessageKey(key, cf), m.err
}

func (m *mockEngine) InsertColumns(key []byte, cf string, columns map[string][]byte) (domain.MessageKey, error) {
	m.insertMultiCall++
	for column, value := range columns {
		m.row(key, cf)[column] = value
	}
	return domain.NewMessageKey(key, cf), m.err
}

func (m *mockEngine) Delete(key []byte, cf, column string) (domain.MessageKey, error) {
	delete(m.row(key, cf), column)
	return domain.NewMessageKey(key, cf), m.err
}

func (m *mockEngine) DeleteColumns(key []byte, cf string) (domain.MessageKey, error) {
	m.deleteAllCalls++
	delete(m.rows, domain.NewMessageKey(key, cf).String())
	return domain.NewMessageKey(key, cf), m.err
}

type mockPublisher struct {
	published []domain.MessageKey
	err       error
}

func (m *mockPublisher) Publish(key domain.MessageKey) error {
	m.published = append(m.published, key)
	return m.err
}

func TestFindEntryService(t *testing.T) {
	engine := newMockEngine()
	engine.row([]byte("k"), "cf")["c"] = []byte("v")
	service := NewFindEntryService(engine)

	result := service.Execute(FindEntryQuery{Key: []byte("k"), ColumnFamily: "cf", Column: "c"})
	require.NoError(t, result.Err)
	assert.True(t, result.Found)
	assert.Equal(t, []byte("v"), result.Value)

	result = service.Execute(FindEntryQuery{Key: []byte("k"), ColumnFamily: "cf", Column: "missing"})
	require.NoError(t, result.Err)
	assert.False(t, result.Found)

	engine.err = domain.CorruptStorage("broken")
	result = service.Execute(FindEntryQuery{Key: []byte("k"), ColumnFamily: "cf", Column: "c"})
	assert.True(t, domain.IsCorruptStorage(result.Err))
}

func TestFindColumnsService_UsesCache(t *testing.T) {
	engine := newMockEngine()
	engine.row([]byte("k"), "cf")["a"] = []byte("1")
	cache := NewFindCache(16)
	service := NewFindColumnsService(engine, cache)

	first := service.Execute(FindColumnsQuery{Key: []byte("k"), ColumnFamily: "cf"})
	require.NoError(t, first.Err)
	second := service.Execute(FindColumnsQuery{Key: []byte("k"), ColumnFamily: "cf"})
	require.NoError(t, second.Err)

	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, 1, engine.findColumnCalls)
	assert.Equal(t, 1, cache.Len())
}

func TestFindColumnsService_ErrorIsNotCached(t *testing.T) {
	engine := newMockEngine()
	engine.err = errors.New("boom")
	cache := NewFindCache(16)

	result := NewFindColumnsService(engine, cache).Execute(FindColumnsQuery{Key: []byte("k"), ColumnFamily: "cf"})
	assert.Error(t, result.Err)
	assert.Equal(t, 0, cache.Len())
}

func TestFindColumnsService_WriteDuringReadIsNotShadowed(t *testing.T) {
	engine := newMockEngine()
	engine.row([]byte("k"), "cf")["a"] = []byte("1")
	cache := NewFindCache(16)
	finder := NewFindColumnsService(engine, cache)
	inserter := NewInsertEntryService(engine, cache, &mockPublisher{})
	engine.afterFindColumns = func() {
		result := inserter.Execute(InsertEntryCommand{Key: []byte("k"), ColumnFamily: "cf",
			Columns: map[string][]byte{"b": []byte("2")}})
		require.NoError(t, result.Err)
	}

	first := finder.Execute(FindColumnsQuery{Key: []byte("k"), ColumnFamily: "cf"})
	require.NoError(t, first.Err)
	assert.Equal(t, map[string][]byte{"a": []byte("1")}, first.Columns)
	assert.Equal(t, 0, cache.Len(), "row read before the insert must not be cached")

	second := finder.Execute(FindColumnsQuery{Key: []byte("k"), ColumnFamily: "cf"})
	require.NoError(t, second.Err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, second.Columns)
	assert.Equal(t, 2, engine.findColumnCalls)
}

func TestFindCache_AddSkipsInvalidatedGeneration(t *testing.T) {
	cache := NewFindCache(16)
	key := domain.NewMessageKey([]byte("k"), "cf")
	other := domain.NewMessageKey([]byte("other"), "cf")

	generation := cache.Generation(key)
	cache.Invalidate(key)
	assert.False(t, cache.Add(key, generation, map[string][]byte{"a": []byte("1")}))
	_, ok := cache.Get(key)
	assert.False(t, ok)

	assert.True(t, cache.Add(key, cache.Generation(key), map[string][]byte{"a": []byte("2")}))
	assert.True(t, cache.Add(other, cache.Generation(other), map[string][]byte{"a": []byte("3")}))
	columns, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), columns["a"])
}

func TestInsertEntryService(t *testing.T) {
	engine := newMockEngine()
	cache := NewFindCache(16)
	publisher := &mockPublisher{}
	service := NewInsertEntryService(engine, cache, publisher)
	messageKey := domain.NewMessageKey([]byte("k"), "cf")
	cache.Add(messageKey, cache.Generation(messageKey), map[string][]byte{"stale": []byte("x")})

	result := service.Execute(InsertEntryCommand{Key: []byte("k"), ColumnFamily: "cf",
		Columns: map[string][]byte{"a": []byte("1")}})
	require.NoError(t, result.Err)
	assert.Equal(t, messageKey, result.MessageKey)
	assert.Equal(t, 1, engine.insertCalls)
	assert.Equal(t, 0, cache.Len(), "insert invalidates the cached row")

	result = service.Execute(InsertEntryCommand{Key: []byte("k"), ColumnFamily: "cf",
		Columns: map[string][]byte{"a": []byte("1"), "b": []byte("2")}})
	require.NoError(t, result.Err)
	assert.Equal(t, 1, engine.insertMultiCall)

	assert.Equal(t, []domain.MessageKey{messageKey, messageKey}, publisher.published)
}

func TestInsertEntryService_NoColumns(t *testing.T) {
	publisher := &mockPublisher{}
	result := NewInsertEntryService(newMockEngine(), NewFindCache(16), publisher).
		Execute(InsertEntryCommand{Key: []byte("k"), ColumnFamily: "cf"})

	assert.ErrorIs(t, result.Err, ErrNoColumns)
	assert.Empty(t, publisher.published)
}

func TestInsertEntryService_PublishFailureDoesNotFailWrite(t *testing.T) {
	engine := newMockEngine()
	publisher := &mockPublisher{err: errors.New("sequencer down")}

	result := NewInsertEntryService(engine, NewFindCache(16), publisher).
		Execute(InsertEntryCommand{Key: []byte("k"), ColumnFamily: "cf", Columns: map[string][]byte{"a": []byte("1")}})
	assert.NoError(t, result.Err)
	assert.Len(t, publisher.published, 1)
}

func TestDeleteEntryService(t *testing.T) {
	engine := newMockEngine()
	engine.row([]byte("k"), "cf")["a"] = []byte("1")
	engine.row([]byte("k"), "cf")["b"] = []byte("2")
	publisher := &mockPublisher{}
	service := NewDeleteEntryService(engine, NewFindCache(16), publisher)

	result := service.Execute(DeleteEntryCommand{Key: []byte("k"), ColumnFamily: "cf", Column: "a"})
	require.NoError(t, result.Err)
	_, found, _ := engine.Find([]byte("k"), "cf", "a")
	assert.False(t, found)
	assert.Equal(t, 0, engine.deleteAllCalls)

	result = service.Execute(DeleteEntryCommand{Key: []byte("k"), ColumnFamily: "cf"})
	require.NoError(t, result.Err)
	assert.Equal(t, 1, engine.deleteAllCalls)
	assert.True(t, bytes.Equal([]byte("k"), result.MessageKey.Key))
	assert.Len(t, publisher.published, 2)
}
