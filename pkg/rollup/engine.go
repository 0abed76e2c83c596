// Package rollup implements the hierarchical summarization engine.
//
// Page visits are appended to level 0. Whenever FanIn entries of a level have
// not yet been consumed, the engine claims exactly those entries, asks the
// summarizer for one summary and appends it to the next level, repeating up
// to MaxLevel. A persisted cursor per level makes every window disjoint, and
// a failed promotion still advances the cursor so the same boundary is never
// retried.
//
// All mutations run on a single worker goroutine, one at a time.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/metrics"
	"github.com/entrhq/pagetrail/pkg/store"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/google/uuid"
)

const (
	// FanIn is the number of entries consumed by one promotion.
	FanIn = 10

	// MaxLevel is the highest level a promotion can produce.
	MaxLevel = types.NumLevels - 1

	// DefaultSummarizeTimeout bounds a single summarizer call.
	DefaultSummarizeTimeout = 60 * time.Second

	defaultQueueSize = 64
)

var (
	ErrInvalidLevel     = errors.New("rollup: invalid level")
	ErrStoreUnavailable = errors.New("rollup: store unavailable")
	ErrClosed           = errors.New("rollup: engine closed")
	ErrNotFound         = errors.New("rollup: entry not found")
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("rollup")
	if err != nil {
		debugLog.Warnf("Failed to initialize rollup logger, using stderr fallback: %v", err)
	}
}

// Engine owns all mutation of the rollup document.
type Engine struct {
	store      store.Store
	summarizer llm.Summarizer
	formatter  Formatter

	now              func() time.Time
	newID            func() string
	logger           *logging.Logger
	metrics          *metrics.Metrics
	onPromote        func(types.Node)
	summarizeTimeout time.Duration
	queueSize        int

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan func()
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides node id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records ingest and promotion metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFormatter replaces the digest formatter.
func WithFormatter(f Formatter) Option {
	return func(e *Engine) { e.formatter = f }
}

// WithSummarizeTimeout bounds each summarizer call.
func WithSummarizeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.summarizeTimeout = d
		}
	}
}

// WithQueueSize sets the job queue capacity.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithOnPromote registers a callback invoked on the worker for every summary
// node appended.
func WithOnPromote(fn func(types.Node)) Option {
	return func(e *Engine) { e.onPromote = fn }
}

func newNodeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New starts an engine over st. The caller owns st and closes it after
// closing the engine.
func New(st store.Store, sum llm.Summarizer, opts ...Option) *Engine {
	e := &Engine{
		store:            st,
		summarizer:       sum,
		now:              time.Now,
		newID:            newNodeID,
		logger:           debugLog,
		summarizeTimeout: DefaultSummarizeTimeout,
		queueSize:        defaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.jobs = make(chan func(), e.queueSize)
	e.done = make(chan struct{})
	go e.run()

	return e
}

func (e *Engine) run() {
	defer close(e.done)
	for job := range e.jobs {
		job()
	}
}

// submit queues job for the worker.
func (e *Engine) submit(ctx context.Context, job func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case e.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the worker and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	if err := e.submit(ctx, func() { result <- fn(e.ctx) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ingest appends rec as a level 0 leaf and returns once the leaf is stored.
// Any promotions it triggers run afterwards on the worker; their failures are
// logged and never returned here.
//
// If ctx ends while the job is queued, Ingest returns ctx.Err() but the leaf
// may still be recorded.
func (e *Engine) Ingest(ctx context.Context, rec types.PageRecord) (types.Node, error) {
	type outcome struct {
		leaf types.Node
		err  error
	}
	result := make(chan outcome, 1)

	err := e.submit(ctx, func() {
		leaf := types.NewLeaf(e.newID(), rec, e.now())
		err := e.store.Update(e.ctx, func(doc *types.Document) error {
			doc.Append(0, leaf)
			return nil
		})
		if err != nil {
			result <- outcome{err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
			return
		}
		e.metrics.PageIngested()
		e.logger.Debugf("recorded leaf %s for %s", leaf.ID, leaf.URL)
		result <- outcome{leaf: leaf}

		e.cascade(e.ctx)
	})
	if err != nil {
		return types.Node{}, err
	}

	select {
	case out := <-result:
		return out.leaf, out.err
	case <-ctx.Done():
		return types.Node{}, ctx.Err()
	}
}

// window is a claimed promotion: FanIn consecutive entries of level-1.
type window struct {
	level   int
	sources []types.Node
}

// claim finds the lowest level with FanIn unconsumed entries below it,
// advances that cursor and returns the claimed entries. It returns a zero
// window when no promotion is due.
func (e *Engine) claim(ctx context.Context) (window, error) {
	var w window
	err := e.store.Update(ctx, func(doc *types.Document) error {
		w = window{}
		for level := 1; level <= MaxLevel; level++ {
			src := level - 1
			if doc.Pending(src) < FanIn {
				continue
			}
			start := doc.Consumed[src]
			entries := doc.Level(src)[start : start+FanIn]
			w.level = level
			w.sources = make([]types.Node, len(entries))
			for i, n := range entries {
				w.sources[i] = n.Clone()
			}
			doc.Consumed[src] = start + FanIn
			return nil
		}
		return nil
	})
	return w, err
}

// cascade promotes until no level has a full window pending. Each pass
// consumes FanIn entries, so it terminates.
func (e *Engine) cascade(ctx context.Context) {
	for {
		w, err := e.claim(ctx)
		if err != nil {
			e.logger.Errorf("failed to claim promotion window: %v", err)
			return
		}
		if w.level == 0 {
			return
		}
		e.promote(ctx, w)
	}
}

// promote summarizes a claimed window into one node at w.level. On failure
// nothing is appended; the window stays consumed.
func (e *Engine) promote(ctx context.Context, w window) {
	digest := e.formatter.Format(w.sources, w.level)

	sctx, cancel := context.WithTimeout(ctx, e.summarizeTimeout)
	start := e.now()
	text, err := e.summarizer.Summarize(sctx, digest, w.level)
	took := e.now().Sub(start)
	if err == nil && sctx.Err() != nil {
		err = sctx.Err()
	}
	cancel()

	if err != nil {
		outcome := metrics.OutcomeFailed
		switch {
		case errors.Is(err, llm.ErrNoCredential):
			outcome = metrics.OutcomeNoCredential
			e.logger.Infof("skipping level %d summary: %v", w.level, err)
		case errors.Is(err, context.DeadlineExceeded):
			err = fmt.Errorf("%w: %w", llm.ErrRequestFailed, err)
			fallthrough
		default:
			e.logger.Warnf("level %d promotion of %s..%s failed: %v",
				w.level, w.sources[0].ID, w.sources[len(w.sources)-1].ID, err)
		}
		e.metrics.Promotion(w.level, outcome, took)
		return
	}

	node := buildSummary(e.newID(), w.level, e.now(), text, w.sources)
	err = e.store.Update(ctx, func(doc *types.Document) error {
		doc.Append(w.level, node)
		return nil
	})
	if err != nil {
		e.logger.Errorf("failed to store level %d summary: %v", w.level, err)
		e.metrics.Promotion(w.level, metrics.OutcomeFailed, took)
		return
	}

	e.metrics.Promotion(w.level, metrics.OutcomeSuccess, took)
	e.logger.Infof("promoted %d entries into level %d summary %s", len(w.sources), w.level, node.ID)
	if e.onPromote != nil {
		e.onPromote(node)
	}
}

func buildSummary(id string, level int, now time.Time, text string, sources []types.Node) types.Node {
	span := sources[0].TimeRange
	refs := make([]types.SourceRef, len(sources))
	for i, src := range sources {
		span = span.Merge(src.TimeRange)
		refs[i] = src.Ref()
	}
	return types.Node{
		ID:            id,
		Level:         level,
		Timestamp:     now,
		TimeRange:     span,
		Summary:       text,
		EntryCount:    len(sources),
		SourceEntries: refs,
	}
}

// GetLevel returns a snapshot of level. Store failures are reported as
// ErrStoreUnavailable rather than an empty result.
func (e *Engine) GetLevel(ctx context.Context, level int) ([]types.Node, error) {
	if !types.ValidLevel(level) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	doc, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Level(level), nil
}

// Pages returns the flat history: level 0, newest first.
func (e *Engine) Pages(ctx context.Context) ([]types.Node, error) {
	leaves, err := e.GetLevel(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]types.Node, len(leaves))
	for i, n := range leaves {
		out[len(leaves)-1-i] = n
	}
	return out, nil
}

// Snapshot returns a copy of the whole document.
func (e *Engine) Snapshot(ctx context.Context) (*types.Document, error) {
	return e.load(ctx)
}

func (e *Engine) load(ctx context.Context) (*types.Document, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return doc, nil
}

// DeletePage removes a leaf. Summaries that reference it are left untouched.
// If the leaf was already consumed by a promotion the level 0 cursor moves
// back by one so later windows stay disjoint.
func (e *Engine) DeletePage(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		return e.store.Update(ctx, func(doc *types.Document) error {
			leaves := doc.Level(0)
			for i, n := range leaves {
				if n.ID != id {
					continue
				}
				doc.SetLevel(0, append(leaves[:i:i], leaves[i+1:]...))
				if i < doc.Consumed[0] {
					doc.Consumed[0]--
				}
				return nil
			}
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		})
	})
}

// RecordTimeSpent sets the time spent on the most recent leaf for url that
// has none yet.
func (e *Engine) RecordTimeSpent(ctx context.Context, url string, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	return e.do(ctx, func(ctx context.Context) error {
		return e.store.Update(ctx, func(doc *types.Document) error {
			leaves := doc.Level(0)
			for i := len(leaves) - 1; i >= 0; i-- {
				if leaves[i].URL == url && leaves[i].TimeSpentSeconds == 0 {
					leaves[i].TimeSpentSeconds = seconds
					return nil
				}
			}
			return fmt.Errorf("%w: no open visit for %s", ErrNotFound, url)
		})
	})
}

// Flush waits until every job queued before it has finished, including the
// promotions those jobs triggered.
func (e *Engine) Flush(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error { return nil })
}

// Close stops accepting work, finishes queued jobs and stops the worker.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.done
	e.cancel()
	return nil
}
