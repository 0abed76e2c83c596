package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		backend string
		path    string
	}{
		{backend: config.BackendFile, path: "rollup.json"},
		{backend: config.BackendBadger, path: "badger"},
		{backend: config.BackendSQLite, path: "rollup.db"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.DefaultDaemonConfig()
			cfg.Store = config.StoreConfig{Backend: tt.backend, Path: filepath.Join(t.TempDir(), tt.path)}

			st, err := openStore(cfg, logging.NewNop())
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			require.NoError(t, st.Update(ctx, func(doc *types.Document) error {
				doc.Append(0, types.Node{ID: "a"})
				return nil
			}))
			doc, err := st.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, doc.Level(0), 1)
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.Store = config.StoreConfig{Backend: "redis", Path: t.TempDir()}
	_, err := openStore(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestNewApp_LoggerFallbackIsNotFatal(t *testing.T) {
	orig := newLogger
	t.Cleanup(func() { newLogger = orig })
	newLogger = func(string) (*logging.Logger, error) {
		return logging.NewNop(), errors.New("failed to create log directory")
	}

	cfg := config.DefaultDaemonConfig()
	cfg.Store = config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "rollup.json")}
	cfg.DigestTokenBudget = 0

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	pages, err := a.engine.Pages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}
