package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntry struct {
	Namespace string `gorm:"column:namespace;primaryKey"`
	Name      string `gorm:"column:name;primaryKey"`
	Value     string `gorm:"column:value"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// SQLStore persists entries in a SQLite database through gorm.
type SQLStore struct {
	db        *gorm.DB
	namespace string
}

func NewSQLStore(path string, namespace string) (*SQLStore, error) {

	if len(path) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "fif", "storage.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
	}

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite storage: %w", err)
	}

	if len(namespace) == 0 {
		namespace = "default"
	}

	return &SQLStore{db: db, namespace: namespace}, nil
}

func (s *SQLStore) Get(key string) (string, bool) {
	var entry kvEntry
	err := s.db.Where("namespace = ? AND name = ?", s.namespace, key).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("key", key).Errorln("Failed to read storage entry")
		}
		return "", false
	}
	return entry.Value, true
}

func (s *SQLStore) Set(key string, value string) error {
	entry := kvEntry{
		Namespace: s.namespace,
		Name:      key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write storage entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.Where("namespace = ? AND name IN ?", s.namespace, keys).Delete(&kvEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete storage entries: %w", err)
	}
	return nil
}

func (s *SQLStore) Keys() []string {
	var keys []string
	err := s.db.Model(&kvEntry{}).
		Where("namespace = ?", s.namespace).
		Order("name").
		Pluck("name", &keys).Error
	if err != nil {
		logrus.WithError(err).Errorln("Failed to list storage keys")
		return nil
	}
	return keys
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
