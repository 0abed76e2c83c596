package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, 60*time.Second, cfg.SummarizeTimeout)
}

func TestLoadDaemonConfig(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		check       func(t *testing.T, cfg DaemonConfig)
		expectError bool
	}{
		{
			name: "overrides defaults",
			content: `
listen_addr: 0.0.0.0:9000
store:
  backend: sqlite
  path: /var/lib/pagetrail/rollup.db
summarize_timeout: 45s
queue_size: 8
`,
			check: func(t *testing.T, cfg DaemonConfig) {
				assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
				assert.Equal(t, BackendSQLite, cfg.Store.Backend)
				assert.Equal(t, "/var/lib/pagetrail/rollup.db", cfg.Store.Path)
				assert.Equal(t, 45*time.Second, cfg.SummarizeTimeout)
				assert.Equal(t, 8, cfg.QueueSize)
				assert.Equal(t, 12000, cfg.DigestTokenBudget, "unset keys keep defaults")
			},
		},
		{
			name:    "empty file",
			content: "",
			check: func(t *testing.T, cfg DaemonConfig) {
				assert.Equal(t, DefaultDaemonConfig(), cfg)
			},
		},
		{name: "unknown key", content: "listen_address: :80\n", expectError: true},
		{name: "bad backend", content: "store:\n  backend: redis\n", expectError: true},
		{name: "bad timeout", content: "summarize_timeout: 0s\n", expectError: true},
		{name: "bad listen addr", content: "listen_addr: nowhere\n", expectError: true},
		{name: "bad yaml", content: "queue_size: [\n", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pagetrail.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := LoadDaemonConfig(path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadDaemonConfig_MissingFile(t *testing.T) {
	cfg, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)

	cfg, err = LoadDaemonConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestDaemonConfig_StorePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		backend string
		path    string
		want    string
	}{
		{backend: BackendFile, want: filepath.Join(home, ".pagetrail", "rollup.json")},
		{backend: BackendBadger, want: filepath.Join(home, ".pagetrail", "badger")},
		{backend: BackendSQLite, want: filepath.Join(home, ".pagetrail", "rollup.db")},
		{backend: BackendSQLite, path: "/tmp/x.db", want: "/tmp/x.db"},
	}
	for _, tt := range tests {
		t.Run(tt.backend+tt.path, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			cfg.Store = StoreConfig{Backend: tt.backend, Path: tt.path}
			got, err := cfg.StorePath()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
