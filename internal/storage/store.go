package storage

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// KeyValueStore is the client's persistent, origin-scoped key-value storage.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Delete(keys ...string) error
	Keys() []string
}

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
)

// Config selects and configures a storage driver.
type Config struct {
	Driver Driver `mapstructure:"driver"`
	// Path is the directory for the file driver and the database file for sqlite.
	Path string `mapstructure:"path"`
	// Namespace scopes the stored keys, usually the backend hostname.
	Namespace string `mapstructure:"namespace"`
}

// ParseDriver is case-insensitive; an empty name is the file driver.
func ParseDriver(name string) (Driver, error) {
	switch driver := Driver(strings.ToLower(strings.TrimSpace(name))); driver {
	case DriverMemory, DriverFile, DriverSQLite:
		return driver, nil
	case "":
		return DriverFile, nil
	default:
		return "", fmt.Errorf("unsupported storage driver: %s", name)
	}
}

// Open returns the store described by config.
func Open(config Config) (KeyValueStore, error) {

	driver, err := ParseDriver(string(config.Driver))
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		path := config.Path
		// A directory gets the default database name
		if len(path) > 0 && len(filepath.Ext(path)) == 0 {
			path = filepath.Join(path, "storage.db")
		}
		return NewSQLStore(path, config.Namespace)
	default:
		return NewFileStore(config.Path, config.Namespace)
	}
}

// KeysWithPrefix filters the store's keys by prefix.
func KeysWithPrefix(store KeyValueStore, prefix string) []string {
	var keys []string
	for _, key := range store.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
	}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	return value, ok
}

func (m *MemoryStore) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
