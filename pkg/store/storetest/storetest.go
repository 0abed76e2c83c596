// Package storetest holds behavior checks shared by every store back end.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store implementation. open must return a fresh, empty
// store; reopen, when non-nil, must return a new handle on the same data
// after the first handle is closed.
func Run(t *testing.T, open func(t *testing.T) store.Store, reopen func(t *testing.T) store.Store) {
	t.Run("empty document", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		doc, err := s.Load(context.Background())
		require.NoError(t, err)
		for k := 0; k < types.NumLevels; k++ {
			assert.Empty(t, doc.Level(k))
			assert.Zero(t, doc.Consumed[k])
		}
	})

	t.Run("update persists", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		ts := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

		err := s.Update(ctx, func(doc *types.Document) error {
			doc.Append(0, types.NewLeaf("a", types.PageRecord{Title: "A", URL: "https://a", Timestamp: ts}, ts))
			doc.Append(1, types.Node{ID: "s", Level: 1, Summary: "sum", EntryCount: 10,
				SourceEntries: []types.SourceRef{{ID: "a", Title: "A"}}})
			doc.Consumed[0] = 1
			return nil
		})
		require.NoError(t, err)

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, doc.Level0, 1)
		assert.Equal(t, "A", doc.Level0[0].Title)
		assert.True(t, doc.Level0[0].TimeRange.Start.Equal(ts))
		require.Len(t, doc.Level1, 1)
		assert.Equal(t, []types.SourceRef{{ID: "a", Title: "A"}}, doc.Level1[0].SourceEntries)
		assert.Equal(t, 1, doc.Consumed[0])
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Update(ctx, func(doc *types.Document) error {
			doc.Append(0, types.Node{ID: "lost"})
			return boom
		})
		assert.ErrorIs(t, err, boom)

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc.Level0)
	})

	t.Run("load returns a copy", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(doc *types.Document) error {
			doc.Append(0, types.Node{ID: "a", Title: "A"})
			return nil
		}))

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		doc.Level0[0].Title = "mutated"

		again, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A", again.Level0[0].Title)
	})

	t.Run("concurrent updates lose nothing", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Update(ctx, func(doc *types.Document) error {
					doc.Append(0, types.Node{ID: "x"})
					return nil
				}))
			}()
		}
		wg.Wait()

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, doc.Level0, 20)
	})

	t.Run("closed store", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		_, err := s.Load(context.Background())
		assert.Error(t, err)
	})

	if reopen == nil {
		return
	}

	t.Run("survives reopen", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(doc *types.Document) error {
			doc.Append(0, types.Node{ID: "kept", Title: "Kept"})
			doc.Consumed[0] = 1
			return nil
		}))
		require.NoError(t, s.Close())

		s2 := reopen(t)
		defer s2.Close()
		doc, err := s2.Load(ctx)
		require.NoError(t, err)
		require.Len(t, doc.Level0, 1)
		assert.Equal(t, "Kept", doc.Level0[0].Title)
		assert.Equal(t, 1, doc.Consumed[0])
	})
}
