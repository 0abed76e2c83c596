package badgerstore

import (
	"testing"

	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(InMemoryConfig())
		require.NoError(t, err)
		return s
	}, nil)
}

func TestStore_OnDisk(t *testing.T) {
	var dir string
	open := func(t *testing.T) store.Store {
		cfg := DefaultConfig(dir)
		cfg.GCInterval = 0
		s, err := Open(cfg)
		require.NoError(t, err)
		return s
	}
	storetest.Run(t,
		func(t *testing.T) store.Store {
			dir = t.TempDir()
			return open(t)
		},
		open,
	)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	s, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
