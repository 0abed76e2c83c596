// Package badgerstore keeps the rollup document in a BadgerDB key.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/types"
)

var documentKey = []byte("pagetrail/rollup/document")

// Config configures the BadgerDB store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps all data in memory, for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal messages. Nil disables them.
	Logger *logging.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultConfig returns production settings for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for an ephemeral database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Store implements store.Store on BadgerDB.
type Store struct {
	db *badger.DB

	// writeMu serializes Update so transactions on the single key never
	// conflict.
	writeMu sync.Mutex

	stopGC chan struct{}
	gcDone chan struct{}
	logger *logging.Logger
	once   sync.Once
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("badgerstore: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open database: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warnf("badger value log GC error: %v", err)
			}
		}
	}
}

func readDocument(txn *badger.Txn) (*types.Document, error) {
	item, err := txn.Get(documentKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get document: %w", err)
	}

	doc := types.NewDocument()
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: decode document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *types.Document
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = readDocument(txn)
		return err
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, store.ErrClosed
	}
	return doc, err
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(doc *types.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		doc, err := readDocument(txn)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		doc.Normalize()

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("badgerstore: encode document: %w", err)
		}
		return txn.Set(documentKey, raw)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return store.ErrClosed
	}
	return err
}

// Close stops GC and closes the database. Safe to call multiple times.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}
