package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/store/storetest"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(":memory:")
		require.NoError(t, err)
		return s
	}, nil)
}

func TestStore_OnDisk(t *testing.T) {
	var path string
	open := func(t *testing.T) store.Store {
		s, err := Open(path)
		require.NoError(t, err)
		return s
	}
	storetest.Run(t,
		func(t *testing.T) store.Store {
			path = filepath.Join(t.TempDir(), "pagetrail.db")
			return open(t)
		},
		open,
	)
}

func TestStore_SingleRow(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(ctx, func(doc *types.Document) error {
			doc.Append(0, types.Node{ID: "n"})
			return nil
		}))
	}

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM rollup_document`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
