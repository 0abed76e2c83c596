// Package store persists the rollup document.
//
// Every back end reads and writes the whole document. Update runs a
// read-modify-write as one transaction: fn sees the current document and, if
// it returns nil, its changes become visible to later readers all at once.
package store

import (
	"context"
	"errors"

	"github.com/entrhq/pagetrail/pkg/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is a transactional holder of one rollup document.
type Store interface {
	// Load returns a copy of the current document. A store that has never
	// been written returns an empty document.
	Load(ctx context.Context) (*types.Document, error)

	// Update applies fn to the current document and persists the result.
	// If fn returns an error nothing is written and that error is returned.
	Update(ctx context.Context, fn func(doc *types.Document) error) error

	// Close releases the store's resources.
	Close() error
}
