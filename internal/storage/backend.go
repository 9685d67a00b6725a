package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	projectBucket = "projects"
	projectKey    = "saved_projects"
)

// Backend holds the single serialized project list. Save replaces it atomically.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Close() error
}

// NewBackend creates the configured backend
func NewBackend(typ, path string) (Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "file":
		return newFileBackend(path)
	case "bbolt":
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", typ)
	}
}

type fileBackend struct {
	path string
}

func newFileBackend(path string) (*fileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &fileBackend{path: path}, nil
}

// Load returns nil data when nothing has been saved yet
func (f *fileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}
	return data, nil
}

func (f *fileBackend) Save(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".projects-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write projects file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync projects file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close projects file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace projects file: %w", err)
	}
	return nil
}

func (f *fileBackend) Close() error { return nil }

type boltBackend struct {
	db *bolt.DB
}

func openBolt(path string) (*boltBackend, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(projectBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) Load() ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(projectBucket))
		if bucket == nil {
			return fmt.Errorf("project bucket missing")
		}
		// Values are only valid inside the transaction
		if v := bucket.Get([]byte(projectKey)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, err
}

func (b *boltBackend) Save(data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(projectBucket))
		if bucket == nil {
			return fmt.Errorf("project bucket missing")
		}
		return bucket.Put([]byte(projectKey), data)
	})
}

func (b *boltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
