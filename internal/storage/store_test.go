package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]KeyValueStore {
	t.Helper()

	dir := t.TempDir()

	fileStore, err := NewFileStore(dir, "bank.example.com")
	require.NoError(t, err)

	sqlStore, err := NewSQLStore(filepath.Join(dir, "storage.db"), "bank.example.com")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]KeyValueStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqlStore,
	}
}

func TestKeyValueStore_SetGetDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := store.Get("auth.token")
			assert.False(t, ok)

			require.NoError(t, store.Set("auth.token", "abc"))
			require.NoError(t, store.Set("auth.user", `{"username":"mifos"}`))
			require.NoError(t, store.Set("biometric.enrolled", "true"))

			value, ok := store.Get("auth.token")
			assert.True(t, ok)
			assert.Equal(t, "abc", value)

			require.NoError(t, store.Set("auth.token", "def"))
			value, _ = store.Get("auth.token")
			assert.Equal(t, "def", value)

			assert.Equal(t, []string{"auth.token", "auth.user", "biometric.enrolled"}, store.Keys())

			require.NoError(t, store.Delete("auth.token", "auth.user", "missing"))
			assert.Equal(t, []string{"biometric.enrolled"}, store.Keys())

			require.NoError(t, store.Delete())
		})
	}
}

func TestKeysWithPrefix(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("biometric.enrolled", "true"))
	require.NoError(t, store.Set("biometric.username", "mifos"))
	require.NoError(t, store.Set("auth.token", "abc"))

	assert.Equal(t, []string{"biometric.enrolled", "biometric.username"}, KeysWithPrefix(store, "biometric."))
	assert.Empty(t, KeysWithPrefix(store, "missing."))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileStore(dir, "bank.example.com")
	require.NoError(t, err)
	require.NoError(t, first.Set("auth.token", "abc"))

	info, err := os.Stat(first.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := NewFileStore(dir, "bank.example.com")
	require.NoError(t, err)

	value, ok := second.Get("auth.token")
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	other, err := NewFileStore(dir, "other.example.com")
	require.NoError(t, err)
	assert.Empty(t, other.Keys())
}

func TestFileStore_CorruptFileIsReinitialized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.example.com.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries: [unclosed"), 0600))

	store, err := NewFileStore(dir, "bank.example.com")
	require.NoError(t, err)
	assert.Empty(t, store.Keys())

	require.NoError(t, store.Set("auth.token", "abc"))
	value, ok := store.Get("auth.token")
	assert.True(t, ok)
	assert.Equal(t, "abc", value)
}

func TestSQLStore_NamespacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.db")

	first, err := NewSQLStore(path, "one")
	require.NoError(t, err)
	defer first.Close()

	second, err := NewSQLStore(path, "two")
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Set("auth.token", "abc"))

	_, ok := second.Get("auth.token")
	assert.False(t, ok)
	assert.Equal(t, []string{"auth.token"}, first.Keys())
	assert.Empty(t, second.Keys())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(Config{Driver: "FILE", Path: dir, Namespace: "ns"})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = Open(Config{Driver: DriverSQLite, Path: filepath.Join(dir, "kv.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	_ = store.(*SQLStore).Close()

	_, err = Open(Config{Driver: "redis"})
	assert.Error(t, err)
}

func TestParseDriver(t *testing.T) {
	driver, err := ParseDriver(" SQLite ")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, driver)

	driver, err = ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverFile, driver)

	_, err = ParseDriver("redis")
	assert.Error(t, err)
}

func TestOpen_SQLiteDirectory(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Config{Driver: DriverSQLite, Path: dir, Namespace: "ns"})
	require.NoError(t, err)
	defer store.(*SQLStore).Close()

	_, err = os.Stat(filepath.Join(dir, "storage.db"))
	assert.NoError(t, err)
}
