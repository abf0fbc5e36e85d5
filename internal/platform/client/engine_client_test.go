package client

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"WCKV/internal/application/service"
	"WCKV/internal/domain"
	"WCKV/internal/platform/messaging/zeromq/publisher"
	"WCKV/internal/platform/repository"
	"WCKV/internal/platform/repository/lsm_tree"
	"WCKV/internal/platform/server"
	"WCKV/internal/platform/server/handler/dbentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *EngineClient {
	tree, err := lsm_tree.Open(filepath.Join(t.TempDir(), "data"), lsm_tree.DefaultOptions())
	require.NoError(t, err)
	engine := repository.NewLSMTreeRepository(tree)
	t.Cleanup(func() {
		engine.Close()
	})

	cache := service.NewFindCache(64)
	handler := dbentry.NewDbEntryHandler(
		service.NewInsertEntryService(engine, cache, publisher.NoopInvalidationPublisher{}),
		service.NewDeleteEntryService(engine, cache, publisher.NoopInvalidationPublisher{}),
		service.NewFindEntryService(engine),
		service.NewFindColumnsService(engine, cache),
	)
	ts := httptest.NewServer(server.NewServer("localhost", 0, handler).Handler())
	t.Cleanup(ts.Close)
	return NewEngineClient(ts.URL)
}

func TestEngineClient_InsertAndFind(t *testing.T) {
	c := newTestClient(t)

	messageKey, err := c.Insert([]byte("user:1"), "profile", "name", []byte("ada"))
	require.NoError(t, err)
	assert.Equal(t, domain.NewMessageKey([]byte("user:1"), "profile"), messageKey)

	value, found, err := c.Find([]byte("user:1"), "profile", "name")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("ada"), value)

	_, found, err = c.Find([]byte("user:1"), "profile", "email")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngineClient_Columns(t *testing.T) {
	c := newTestClient(t)

	_, err := c.InsertColumns([]byte("user:2"), "profile", map[string][]byte{
		"name":  []byte("grace"),
		"email": []byte("grace@example.com"),
	})
	require.NoError(t, err)

	columns, err := c.FindColumns([]byte("user:2"), "profile")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"name":  []byte("grace"),
		"email": []byte("grace@example.com"),
	}, columns)

	_, err = c.Delete([]byte("user:2"), "profile", "email")
	require.NoError(t, err)
	columns, err = c.FindColumns([]byte("user:2"), "profile")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"name": []byte("grace")}, columns)

	_, err = c.DeleteColumns([]byte("user:2"), "profile")
	require.NoError(t, err)
	columns, err = c.FindColumns([]byte("user:2"), "profile")
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestEngineClient_KeyWithSlash(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Insert([]byte("tenant/a"), "cf", "c", []byte("v"))
	require.NoError(t, err)

	value, found, err := c.Find([]byte("tenant/a"), "cf", "c")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestEngineClient_InsertNoColumns(t *testing.T) {
	c := newTestClient(t)

	_, err := c.InsertColumns([]byte("k"), "cf", map[string][]byte{})

	assert.ErrorContains(t, err, "400")
}

func TestEngineClient_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"disk on fire"}`))
	}))
	defer ts.Close()
	c := NewEngineClient(ts.URL)

	_, _, err := c.Find([]byte("k"), "cf", "c")

	assert.ErrorContains(t, err, "disk on fire")
}
