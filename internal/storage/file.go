package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const fileStoreVersion = "1.0"

type fileDocument struct {
	Version   string            `yaml:"version"`
	Timestamp time.Time         `yaml:"timestamp"`
	Entries   map[string]string `yaml:"entries"`
}

// FileStore keeps every entry in a single YAML document that is rewritten on
// each change. One file per namespace.
type FileStore struct {
	lock sync.Mutex
	path string
	doc  fileDocument
}

func NewFileStore(dir string, namespace string) (*FileStore, error) {

	if len(dir) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "fif")
	}

	if len(namespace) == 0 {
		namespace = "default"
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	store := &FileStore{
		path: filepath.Join(dir, fmt.Sprintf("%s.yaml", namespace)),
	}

	if err := store.Load(); err != nil {
		return nil, err
	}

	return store, nil
}

func (f *FileStore) Path() string {
	return f.path
}

// Load re-reads the document from disk. A corrupt file is logged and
// replaced by an empty document.
func (f *FileStore) Load() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.doc = fileDocument{
		Version:   fileStoreVersion,
		Timestamp: time.Now().UTC(),
		Entries:   make(map[string]string),
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read storage file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logrus.WithError(err).WithField("path", f.path).Errorln("Failed to parse storage file, reinitializing")
		return nil
	}

	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}
	f.doc = doc
	return nil
}

func (f *FileStore) Get(key string) (string, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	value, ok := f.doc.Entries[key]
	return value, ok
}

func (f *FileStore) Set(key string, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.doc.Entries[key] = value
	return f.commit()
}

func (f *FileStore) Delete(keys ...string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, key := range keys {
		delete(f.doc.Entries, key)
	}
	return f.commit()
}

func (f *FileStore) Keys() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	keys := make([]string, 0, len(f.doc.Entries))
	for key := range f.doc.Entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// commit must be called with the lock held.
func (f *FileStore) commit() error {

	// Only allow read/write access to the owner
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open storage file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return err
	}

	f.doc.Timestamp = time.Now().UTC()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(f.doc); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":    f.path,
		"entries": len(f.doc.Entries),
	}).Debugln("Storage committed")

	return nil
}
