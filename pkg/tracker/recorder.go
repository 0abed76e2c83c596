// Package tracker decides which visits become page records and feeds them to
// the rollup engine.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/notify"
	"github.com/entrhq/pagetrail/pkg/rollup"
	"github.com/entrhq/pagetrail/pkg/types"
)

var (
	// ErrTrackingOff is returned when recording is disabled.
	ErrTrackingOff = errors.New("tracker: tracking is off")

	// ErrFiltered is returned for URLs the filters reject.
	ErrFiltered = errors.New("tracker: url not tracked")
)

// Settings are the user-controlled switches read on every event.
type Settings struct {
	TrackingOn        bool
	RealTimeSummaryOn bool
	Density           types.Density
	Include           []string
	Exclude           []string
}

// DefaultSettings records everything and produces real-time digests.
func DefaultSettings() Settings {
	return Settings{TrackingOn: true, RealTimeSummaryOn: true, Density: types.DensityMedium}
}

// SettingsFrom reads settings from a config section on every call.
func SettingsFrom(section *config.TrackingSection) func() Settings {
	return func() Settings {
		snap := section.Snapshot()
		return Settings{
			TrackingOn:        snap.TrackingOn,
			RealTimeSummaryOn: snap.RealTimeSummaryOn,
			Density:           snap.Density,
			Include:           snap.IncludePatterns,
			Exclude:           snap.ExcludePatterns,
		}
	}
}

// Ingester is the part of the rollup engine the recorder drives.
type Ingester interface {
	Ingest(ctx context.Context, rec types.PageRecord) (types.Node, error)
	RecordTimeSpent(ctx context.Context, url string, seconds int) error
}

// Recorder applies settings and filters, produces the real-time digest and
// hands records to the engine.
type Recorder struct {
	engine   Ingester
	pages    llm.PageSummarizer
	hub      *notify.Hub
	settings func() Settings
	state    *State
	logger   *logging.Logger
	now      func() time.Time

	filterMu  sync.Mutex
	filterKey string
	filter    *URLFilter
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithPageSummarizer enables real-time digests.
func WithPageSummarizer(p llm.PageSummarizer) RecorderOption {
	return func(r *Recorder) { r.pages = p }
}

// WithHub publishes a notification per recorded page.
func WithHub(h *notify.Hub) RecorderOption {
	return func(r *Recorder) { r.hub = h }
}

// WithSettings sets the settings source. It is called on every event.
func WithSettings(fn func() Settings) RecorderOption {
	return func(r *Recorder) { r.settings = fn }
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(l *logging.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithRecorderClock overrides the time source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder returns a recorder feeding engine.
func NewRecorder(engine Ingester, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		engine:   engine,
		settings: DefaultSettings,
		state:    &State{},
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the recorder's active-tab state.
func (r *Recorder) State() *State {
	return r.state
}

func (r *Recorder) urlFilter(s Settings) (*URLFilter, error) {
	key := strings.Join(s.Include, "\x00") + "\x01" + strings.Join(s.Exclude, "\x00")

	r.filterMu.Lock()
	defer r.filterMu.Unlock()
	if r.filter != nil && r.filterKey == key {
		return r.filter, nil
	}
	f, err := NewURLFilter(s.Include, s.Exclude)
	if err != nil {
		return nil, err
	}
	r.filter, r.filterKey = f, key
	return f, nil
}

func (r *Recorder) allowed(s Settings, rawURL string) (bool, error) {
	f, err := r.urlFilter(s)
	if err != nil {
		return false, err
	}
	return f.Allowed(rawURL), nil
}

// Record ingests one page visit. When real-time digests are on, the page is
// summarized first and its one-line digest is published after the leaf is
// stored. A digest failure never prevents the page from being recorded.
func (r *Recorder) Record(ctx context.Context, rec types.PageRecord) (types.Node, error) {
	s := r.settings()
	if !s.TrackingOn {
		return types.Node{}, ErrTrackingOff
	}
	ok, err := r.allowed(s, rec.URL)
	if err != nil {
		return types.Node{}, err
	}
	if !ok {
		return types.Node{}, ErrFiltered
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}

	if s.RealTimeSummaryOn && r.pages != nil && rec.Summary == "" && rec.OneLineSummary == "" {
		rec.Summary, rec.OneLineSummary = r.digest(ctx, rec, s.Density)
	}

	leaf, err := r.engine.Ingest(ctx, rec)
	if err != nil {
		return types.Node{}, err
	}

	if r.hub != nil && leaf.OneLineSummary != "" {
		r.hub.Publish(notify.Notification{
			Kind:    notify.KindPage,
			Title:   leaf.DisplayTitle(),
			URL:     leaf.URL,
			Text:    leaf.OneLineSummary,
			Created: r.now(),
		})
	}
	return leaf, nil
}

// digest returns the bullet summary and notification line for rec. A failed
// request yields the placeholder texts so the visit is still announced.
func (r *Recorder) digest(ctx context.Context, rec types.PageRecord, density types.Density) (bullets, oneLine string) {
	d, err := r.pages.SummarizePage(ctx, rec, density)
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		r.logger.Debugf("real-time digest skipped for %s: %v", rec.URL, err)
		d = types.PageDigest{Bullets: llm.BulletsUnavailable, OneLine: llm.OneLineUnavailable}
	case err != nil:
		r.logger.Warnf("real-time digest failed for %s: %v", rec.URL, err)
		d = types.PageDigest{Bullets: llm.BulletsUnavailable, OneLine: llm.OneLineUnavailable}
	}

	return d.Bullets, notify.CleanOneLine(d.OneLine)
}

// Activate records a tab switch. Time spent on the previously active URL is
// written to its latest visit.
func (r *Recorder) Activate(ctx context.Context, tabID int, url string) (Visit, error) {
	prev, ok := r.state.Activate(tabID, url, r.now())
	if !ok || prev.Seconds <= 0 {
		return prev, nil
	}
	return prev, r.recordVisit(ctx, prev)
}

// Deactivate ends the current visit without starting another.
func (r *Recorder) Deactivate(ctx context.Context) (Visit, error) {
	prev, ok := r.state.Deactivate(r.now())
	if !ok || prev.Seconds <= 0 {
		return prev, nil
	}
	return prev, r.recordVisit(ctx, prev)
}

func (r *Recorder) recordVisit(ctx context.Context, v Visit) error {
	s := r.settings()
	if !s.TrackingOn {
		return nil
	}
	if ok, err := r.allowed(s, v.URL); err != nil || !ok {
		return err
	}

	err := r.engine.RecordTimeSpent(ctx, v.URL, v.Seconds)
	if errors.Is(err, rollup.ErrNotFound) {
		r.logger.Debugf("no open visit for %s, dropping %ds", v.URL, v.Seconds)
		return nil
	}
	return err
}

// PublishSummary announces a new rollup node. It matches the engine's
// OnPromote hook.
func PublishSummary(hub *notify.Hub, now func() time.Time) func(types.Node) {
	return func(n types.Node) {
		hub.Publish(notify.Notification{
			Kind:    notify.KindSummary,
			Title:   n.TimeRange.String(),
			Text:    notify.CleanOneLine(n.Summary),
			Level:   n.Level,
			Created: now(),
		})
	}
}
