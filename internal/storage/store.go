// Package storage defines the persistence collaborator for the engine.
//
// The engine never talks to the filesystem or a database directly; it
// reads and writes opaque blobs through the Store interface. Two real
// implementations are provided (JSON files and SQLite), plus an
// in-memory store for tests.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Load when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is a scoped get/set capability with no behavior of its own.
// Implementations must make Save atomic: a crash mid-write must leave
// either the old value or the new value, never a partial blob.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
	Delete(key string) error
}

// ─── FileStore ───────────────────────────────────────────────────────────────

// FileStore persists each key as a file under a data directory.
// Writes go to a temp file in the same directory followed by a rename,
// so readers never observe a partially written blob.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path maps a key to a file path. Keys are flattened so they cannot
// escape the data directory.
func (fs *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(fs.dir, safe+".json")
}

// Load reads the blob stored for key.
func (fs *FileStore) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the blob for key atomically (write-temp-then-rename).
func (fs *FileStore) Save(key string, value []byte) error {
	target := fs.path(key)
	tmp, err := os.CreateTemp(fs.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
}

// Delete removes the blob for key. Missing keys are not an error.
func (fs *FileStore) Delete(key string) error {
	err := os.Remove(fs.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// ─── MemStore ────────────────────────────────────────────────────────────────

// MemStore is an in-memory Store used in tests and as the degraded
// session-only fallback. Safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailLoads and FailSaves make every corresponding call return an
	// error. Tests use these to exercise degraded paths.
	FailLoads bool
	FailSaves bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Load returns a copy of the stored blob.
func (m *MemStore) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailLoads {
		return nil, errors.New("storage: simulated load failure")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Save stores a copy of value under key.
func (m *MemStore) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errors.New("storage: simulated save failure")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

// Delete removes key.
func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len reports how many keys are stored.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
