package iocache

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStore_SQLite(t *testing.T) {
	store, err := NewCacheStore(derivedTable, schema.SQLiteBackend, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, _, _, err = store.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	now := time.Now().Unix()
	require.NoError(t, store.Set("maintenance:adjustments", []byte(`{"a":0.1}`), 1, now))
	require.NoError(t, store.Set("maintenance:adjustments", []byte(`{"a":0.2}`), 2, now+1))

	value, version, ts, err := store.Get("maintenance:adjustments")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.2}`, string(value))
	assert.Equal(t, 2, version)
	assert.Equal(t, now+1, ts)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalEntries)
	assert.Greater(t, status.TableSizeBytes, int64(0))
}

func TestCacheStore_NoneBackend(t *testing.T) {
	store, err := NewCacheStore(derivedTable, schema.NoneBackend, "")
	require.NoError(t, err)
	assert.NoError(t, store.Set("k", []byte("v"), 1, 1))
	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestCacheStore_InvalidTableName(t *testing.T) {
	_, err := NewCacheStore("bad-name;", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)
	_, err = NewCacheStore("ok", schema.DatabaseBackend("oracle"), "")
	assert.Error(t, err)
}

func TestInitStores(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.db")
	historyPath := filepath.Join(dir, "history.db")

	initOnce = sync.Once{}  // Reset for test
	closeOnce = sync.Once{} // Reset for test
	Manager = &CacheStoreManager{}

	require.NoError(t, InitStores(schema.SQLiteBackend, cachePath, schema.SQLiteBackend, historyPath))
	// Subsequent calls are no-ops
	require.NoError(t, InitStores(schema.NoneBackend, "", schema.NoneBackend, ""))
	assert.NotNil(t, Manager.GetDerivedStore())
	assert.NotNil(t, Manager.GetHistoryStore())

	CloseCaching()
	CloseCaching()

	_, err := os.Stat(historyPath)
	require.NoError(t, err)
	require.NoError(t, ClearHistory(schema.SQLiteBackend, historyPath, ""))
	_, err = os.Stat(historyPath)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, ClearCache(schema.SQLiteBackend, cachePath, ""))
	require.NoError(t, ClearCache(schema.SQLiteBackend, cachePath, ""))
	assert.Error(t, ClearCache(schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearHistory(schema.NoneBackend, "", ""))
}

func TestBind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, bind(schema.SQLiteBackend, q))
	assert.Equal(t, q, bind(schema.MySQLBackend, q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", bind(schema.PostgreSQLBackend, q))
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`t`", quoteTableName("t", schema.MySQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.PostgreSQLBackend))
	assert.Equal(t, `"t"`, quoteTableName("t", schema.SQLiteBackend))
}
