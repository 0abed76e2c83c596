package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// StoreConfig selects where the rollup document lives.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path defaults per backend under ~/.pagetrail when empty.
	Path string `yaml:"path" json:"path"`
}

// DaemonConfig configures the long-running service.
type DaemonConfig struct {
	ListenAddr        string        `yaml:"listen_addr" json:"listen_addr"`
	Store             StoreConfig   `yaml:"store" json:"store"`
	SummarizeTimeout  time.Duration `yaml:"summarize_timeout" json:"summarize_timeout"`
	DigestTokenBudget int           `yaml:"digest_token_budget" json:"digest_token_budget"`
	QueueSize         int           `yaml:"queue_size" json:"queue_size"`
	NotifyBuffer      int           `yaml:"notify_buffer" json:"notify_buffer"`
}

// DefaultDaemonConfig returns the settings used when no file is given.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		ListenAddr:        "127.0.0.1:8765",
		Store:             StoreConfig{Backend: BackendFile},
		SummarizeTimeout:  60 * time.Second,
		DigestTokenBudget: 12000,
		QueueSize:         64,
		NotifyBuffer:      16,
	}
}

// LoadDaemonConfig reads a YAML file over the defaults. A missing file yields
// the defaults; unknown keys are rejected.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read daemon config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse daemon config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid daemon config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and the backend name.
func (c DaemonConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr: %w", err)
	}
	switch c.Store.Backend {
	case BackendFile, BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("store.backend must be one of %s, %s, %s; got %q", BackendFile, BackendBadger, BackendSQLite, c.Store.Backend)
	}
	if c.SummarizeTimeout <= 0 {
		return fmt.Errorf("summarize_timeout must be positive")
	}
	if c.DigestTokenBudget < 0 {
		return fmt.Errorf("digest_token_budget must not be negative")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("notify_buffer must be positive")
	}
	return nil
}

// StorePath returns the configured path, or the backend's default under
// ~/.pagetrail.
func (c DaemonConfig) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(home, ".pagetrail")
	switch c.Store.Backend {
	case BackendBadger:
		return filepath.Join(dir, "badger"), nil
	case BackendSQLite:
		return filepath.Join(dir, "rollup.db"), nil
	default:
		return filepath.Join(dir, "rollup.json"), nil
	}
}
