package repository

import (
	"path/filepath"
	"testing"

	"WCKV/internal/platform/metrics"
	"WCKV/internal/platform/repository/lsm_tree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRepository(t *testing.T) *LSMTreeRepository {
	tree, err := lsm_tree.Open(filepath.Join(t.TempDir(), "data"), lsm_tree.DefaultOptions())
	require.NoError(t, err)
	repository := NewLSMTreeRepository(tree)
	t.Cleanup(func() {
		repository.Close()
	})
	return repository
}

func TestLSMTreeRepository_Operations(t *testing.T) {
	repository := createRepository(t)
	inserts := testutil.ToFloat64(metrics.EngineOperationsTotal.WithLabelValues(operationInsert, metrics.ResultSuccess))

	messageKey, err := repository.Insert([]byte("user:1"), "profile", "name", []byte("ada"))
	require.NoError(t, err)
	assert.Equal(t, []byte("user:1"), messageKey.Key)
	assert.Equal(t, "profile", messageKey.ColumnFamily)
	assert.Equal(t, inserts+1, testutil.ToFloat64(metrics.EngineOperationsTotal.WithLabelValues(operationInsert, metrics.ResultSuccess)))

	_, err = repository.InsertColumns([]byte("user:1"), "profile", map[string][]byte{"email": []byte("ada@example.com")})
	require.NoError(t, err)

	value, found, err := repository.Find([]byte("user:1"), "profile", "name")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("ada"), value)

	columns, err := repository.FindColumns([]byte("user:1"), "profile")
	require.NoError(t, err)
	assert.Len(t, columns, 2)

	_, err = repository.Delete([]byte("user:1"), "profile", "name")
	require.NoError(t, err)
	_, found, err = repository.Find([]byte("user:1"), "profile", "name")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repository.DeleteColumns([]byte("user:1"), "profile")
	require.NoError(t, err)
	columns, err = repository.FindColumns([]byte("user:1"), "profile")
	require.NoError(t, err)
	assert.Empty(t, columns)
}
