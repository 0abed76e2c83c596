package store

import (
	"context"
	"sync"

	"github.com/entrhq/pagetrail/pkg/types"
)

// MemoryStore keeps the document in memory. It is used by tests and by
// one-shot commands that do not persist.
type MemoryStore struct {
	mu     sync.RWMutex
	doc    *types.Document
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: types.NewDocument()}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.doc.Clone(), nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, fn func(doc *types.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Normalize()
	s.doc = next
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
