// Package store keeps small keyed caches on disk as a single JSON document.
//
// Reads are served from memory. Every Put rewrites the whole file through a
// temp file and rename, under one writer lock, so concurrent writers never
// interleave and a crash leaves either the old or the new document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

type Store[V any] struct {
	path string

	writeMu sync.Mutex
	mu      sync.RWMutex
	data    map[string]V
}

// Open loads path if it exists. An empty path gives a memory-only store.
func Open[V any](path string) (*Store[V], error) {
	s := &Store[V]{path: path, data: make(map[string]V, 64)}
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.data == nil {
		s.data = make(map[string]V, 64)
	}
	return s, nil
}

func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Put stores v under key and rewrites the file. A failed write is reported
// wrapped in types.ErrStore; the in-memory value is kept either way.
func (s *Store[V]) Put(key string, v V) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.data[key] = v
	var (
		b   []byte
		err error
	)
	if s.path != "" {
		b, err = json.MarshalIndent(s.data, "", "  ")
	}
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrStore, s.path, err)
	}
	if err := writeAtomic(s.path, b); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStore, err)
	}
	return nil
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
