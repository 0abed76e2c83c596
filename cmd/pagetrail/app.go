package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/llm/openai"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/metrics"
	"github.com/entrhq/pagetrail/pkg/notify"
	"github.com/entrhq/pagetrail/pkg/rollup"
	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/store/badgerstore"
	"github.com/entrhq/pagetrail/pkg/store/sqlitestore"
	"github.com/entrhq/pagetrail/pkg/tokenizer"
	"github.com/entrhq/pagetrail/pkg/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds everything a command needs. Close releases it in reverse order.
type app struct {
	logger     *logging.Logger
	store      store.Store
	summarizer *openai.Client
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	hub        *notify.Hub
	engine     *rollup.Engine
	recorder   *tracker.Recorder
}

// openStore opens the configured back end.
func openStore(cfg config.DaemonConfig, logger *logging.Logger) (store.Store, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	logger.Infof("opening %s store at %s", cfg.Store.Backend, path)

	switch cfg.Store.Backend {
	case config.BackendBadger:
		bcfg := badgerstore.DefaultConfig(path)
		bcfg.Logger = logger
		return badgerstore.Open(bcfg)
	case config.BackendSQLite:
		return sqlitestore.Open(path)
	case config.BackendFile:
		return store.NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newLogger is replaced in tests.
var newLogger = logging.NewLogger

func newApp(cfg config.DaemonConfig) (*app, error) {
	logger, err := newLogger("pagetrail")
	if err != nil {
		// Logger fell back to stderr
		logger.Warnf("file logging unavailable, using stderr: %v", err)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	hub := notify.NewHub(cfg.NotifyBuffer, m)

	summarizer := config.BuildSummarizer(llmFlags, logger)
	logger.Infof("summarizing with %s at %s", summarizer.GetModel(), summarizer.GetBaseURL())

	formatter := rollup.Formatter{}
	if cfg.DigestTokenBudget > 0 {
		formatter = rollup.Formatter{Counter: tokenizer.New(""), Budget: cfg.DigestTokenBudget}
	}

	engine := rollup.New(st, summarizer,
		rollup.WithLogger(logger),
		rollup.WithMetrics(m),
		rollup.WithFormatter(formatter),
		rollup.WithSummarizeTimeout(cfg.SummarizeTimeout),
		rollup.WithQueueSize(cfg.QueueSize),
		rollup.WithOnPromote(tracker.PublishSummary(hub, time.Now)),
	)

	settings := tracker.DefaultSettings
	if tracking := config.GetTracking(); tracking != nil {
		settings = tracker.SettingsFrom(tracking)
	}
	recorder := tracker.NewRecorder(engine,
		tracker.WithPageSummarizer(summarizer),
		tracker.WithHub(hub),
		tracker.WithSettings(settings),
		tracker.WithRecorderLogger(logger),
	)

	return &app{
		logger:     logger,
		store:      st,
		summarizer: summarizer,
		registry:   reg,
		metrics:    m,
		hub:        hub,
		engine:     engine,
		recorder:   recorder,
	}, nil
}

// Close waits for queued promotions, then closes the store and the log.
func (a *app) Close() error {
	err := a.engine.Close()
	err = errors.Join(err, a.store.Close())
	a.logger.Close()
	return err
}

// flush waits for promotions triggered by the command to finish.
func (a *app) flush(ctx context.Context) error {
	return a.engine.Flush(ctx)
}
