package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/pagetrail/pkg/types"
)

// FileStore implements Store using a JSON file.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a new file-based document store.
// If path is empty, defaults to ~/.pagetrail/rollup.json
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".pagetrail", "rollup.json")
	}

	store := &FileStore{path: path}

	// Surface a corrupt file at open time rather than on first use
	if _, err := store.read(); err != nil {
		return nil, fmt.Errorf("failed to load rollup document from %s: %w", path, err)
	}

	return store, nil
}

// read decodes the document on disk. A missing file is an empty document.
func (s *FileStore) read() (*types.Document, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to open rollup file: %w", err)
	}
	defer file.Close()

	doc := types.NewDocument()
	if err := json.NewDecoder(file).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode rollup file: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// write replaces the file atomically via a temp file and rename.
func (s *FileStore) write(doc *types.Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create rollup directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp rollup file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode rollup document: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.read()
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, fn func(doc *types.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	doc.Normalize()
	return s.write(doc)
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}
