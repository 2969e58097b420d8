// Package store persists small pieces of client state (recent buckets, the
// bearer token) across sessions behind a key-value interface.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Store is a string key-value store. Values are opaque to the store; callers
// encode structured values (the recent bucket list is a JSON array).
type Store interface {
	// Get returns the value and true, or "" and false when the key was never written.
	Get(key string) (string, bool)
	// Set writes the value. File-backed stores persist before returning.
	Set(key, value string) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
}

// ErrCorrupt is returned by Open when the state file is not a JSON object.
var ErrCorrupt = errors.New("state file is corrupt")

// Memory is an in-process Store, used by tests and when no state file is wanted.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// File is a Store backed by a single JSON object on disk. The whole file is
// rewritten atomically (temp file + rename) on every mutation.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// Open loads the state file at path. A missing file yields an empty store;
// the file and its directory are created on the first Set.
func Open(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}

	if err := json.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	f.values[key] = value
	if err := f.save(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.save(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

// save must be called with f.mu held.
func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if runtime.GOOS != "windows" {
		// WriteFile keeps the mode of a pre-existing temp file.
		if err := os.Chmod(tmpFile, 0600); err != nil {
			os.Remove(tmpFile)
			return fmt.Errorf("failed to set state file permissions: %w", err)
		}
	}

	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}
