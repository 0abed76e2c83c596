package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/notify"
	"github.com/entrhq/pagetrail/pkg/rollup"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu      sync.Mutex
	records []types.PageRecord
	spent   map[string]int
	err     error
	timeErr error
}

func (f *fakeEngine) Ingest(_ context.Context, rec types.PageRecord) (types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.Node{}, f.err
	}
	f.records = append(f.records, rec)
	return types.NewLeaf("leaf", rec, rec.Timestamp), nil
}

func (f *fakeEngine) RecordTimeSpent(_ context.Context, url string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeErr != nil {
		return f.timeErr
	}
	if f.spent == nil {
		f.spent = make(map[string]int)
	}
	f.spent[url] += seconds
	return nil
}

type mockPages struct {
	mock.Mock
}

func (m *mockPages) SummarizePage(ctx context.Context, page types.PageRecord, density types.Density) (types.PageDigest, error) {
	args := m.Called(ctx, page, density)
	return args.Get(0).(types.PageDigest), args.Error(1)
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(ts *time.Time) func() time.Time {
	return func() time.Time { return *ts }
}

func rec(url string) types.PageRecord {
	return types.PageRecord{Title: "Title", URL: url, BodyText: "body", Timestamp: t0}
}

func TestRecorder_RecordWithDigest(t *testing.T) {
	eng := &fakeEngine{}
	pages := &mockPages{}
	pages.On("SummarizePage", mock.Anything, mock.Anything, types.DensityMedium).
		Return(types.PageDigest{Bullets: "- a\n- b", OneLine: "**Bold** one   line"}, nil).Once()

	hub := notify.NewHub(4, nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	now := t0
	r := NewRecorder(eng, WithPageSummarizer(pages), WithHub(hub), WithRecorderClock(fixedClock(&now)))

	leaf, err := r.Record(context.Background(), rec("https://example.com/a"))
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b", leaf.Summary)
	assert.Equal(t, "Bold one line", leaf.OneLineSummary)
	require.Len(t, eng.records, 1)
	assert.Equal(t, "- a\n- b", eng.records[0].Summary)
	assert.Equal(t, "Bold one line", eng.records[0].OneLineSummary)

	select {
	case n := <-ch:
		assert.Equal(t, notify.KindPage, n.Kind)
		assert.Equal(t, "Title", n.Title)
		assert.Equal(t, "Bold one line", n.Text)
	case <-time.After(time.Second):
		t.Fatal("no notification published")
	}
	pages.AssertExpectations(t)
}

func TestRecorder_DigestFailureStillRecords(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "no credential", err: llm.ErrNoCredential},
		{name: "request failed", err: fmt.Errorf("%w: status 500", llm.ErrRequestFailed)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			pages := &mockPages{}
			pages.On("SummarizePage", mock.Anything, mock.Anything, mock.Anything).
				Return(types.PageDigest{}, tt.err).Once()

			hub := notify.NewHub(4, nil)
			ch, cancel := hub.Subscribe()
			defer cancel()

			r := NewRecorder(eng, WithPageSummarizer(pages), WithHub(hub))
			leaf, err := r.Record(context.Background(), rec("https://example.com/a"))
			require.NoError(t, err)
			assert.Equal(t, llm.BulletsUnavailable, leaf.Summary)
			assert.Equal(t, llm.OneLineUnavailable, leaf.OneLineSummary)
			assert.Len(t, eng.records, 1)

			select {
			case n := <-ch:
				assert.Equal(t, notify.KindPage, n.Kind)
				assert.Equal(t, llm.OneLineUnavailable, n.Text)
				assert.Equal(t, "https://example.com/a", n.URL)
			default:
				t.Fatal("no notification published")
			}
		})
	}
}

func TestRecorder_NoDigestWhenRealTimeOff(t *testing.T) {
	settings := DefaultSettings()
	settings.RealTimeSummaryOn = false

	eng := &fakeEngine{}
	pages := &mockPages{}
	hub := notify.NewHub(4, nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	r := NewRecorder(eng, WithPageSummarizer(pages), WithHub(hub), WithSettings(func() Settings { return settings }))
	leaf, err := r.Record(context.Background(), rec("https://example.com/a"))
	require.NoError(t, err)
	assert.Empty(t, leaf.Summary)
	assert.Empty(t, leaf.OneLineSummary)
	assert.Empty(t, ch)
	pages.AssertNotCalled(t, "SummarizePage", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorder_SettingsGate(t *testing.T) {
	settings := DefaultSettings()
	eng := &fakeEngine{}
	pages := &mockPages{}
	r := NewRecorder(eng, WithPageSummarizer(pages), WithSettings(func() Settings { return settings }))

	settings.TrackingOn = false
	_, err := r.Record(context.Background(), rec("https://example.com/a"))
	assert.ErrorIs(t, err, ErrTrackingOff)

	settings = DefaultSettings()
	settings.RealTimeSummaryOn = false
	settings.Exclude = []string{"private.example.com*"}
	_, err = r.Record(context.Background(), rec("https://private.example.com/x"))
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = r.Record(context.Background(), rec("chrome://newtab"))
	assert.ErrorIs(t, err, ErrFiltered)

	_, err = r.Record(context.Background(), rec("https://example.com/ok"))
	require.NoError(t, err)
	assert.Len(t, eng.records, 1)
	pages.AssertNotCalled(t, "SummarizePage", mock.Anything, mock.Anything, mock.Anything)

	settings.Include = []string{"[bad"}
	_, err = r.Record(context.Background(), rec("https://example.com/ok"))
	assert.Error(t, err)
}

func TestRecorder_StampsMissingTimestamp(t *testing.T) {
	eng := &fakeEngine{}
	now := t0.Add(time.Hour)
	r := NewRecorder(eng, WithRecorderClock(fixedClock(&now)))

	in := rec("https://example.com/a")
	in.Timestamp = time.Time{}
	_, err := r.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, now, eng.records[0].Timestamp)
}

func TestRecorder_EngineErrorSurfaces(t *testing.T) {
	eng := &fakeEngine{err: rollup.ErrStoreUnavailable}
	r := NewRecorder(eng)
	_, err := r.Record(context.Background(), rec("https://example.com/a"))
	assert.ErrorIs(t, err, rollup.ErrStoreUnavailable)
}

func TestRecorder_ActivateRecordsTimeSpent(t *testing.T) {
	eng := &fakeEngine{}
	now := t0
	r := NewRecorder(eng, WithRecorderClock(fixedClock(&now)))

	_, err := r.Activate(context.Background(), 1, "https://example.com/a")
	require.NoError(t, err)

	now = t0.Add(42 * time.Second)
	prev, err := r.Activate(context.Background(), 2, "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, 42, prev.Seconds)

	now = t0.Add(50 * time.Second)
	_, err = r.Deactivate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"https://example.com/a": 42,
		"https://example.com/b": 8,
	}, eng.spent)
}

func TestRecorder_ActivateIgnoresMissingVisit(t *testing.T) {
	eng := &fakeEngine{timeErr: rollup.ErrNotFound}
	now := t0
	r := NewRecorder(eng, WithRecorderClock(fixedClock(&now)))

	_, _ = r.Activate(context.Background(), 1, "https://example.com/a")
	now = t0.Add(time.Minute)
	_, err := r.Activate(context.Background(), 2, "https://example.com/b")
	assert.NoError(t, err)

	eng.timeErr = errors.New("boom")
	now = t0.Add(2 * time.Minute)
	_, err = r.Activate(context.Background(), 3, "https://example.com/c")
	assert.Error(t, err)
}

func TestRecorder_ActivateSkipsFilteredAndZero(t *testing.T) {
	eng := &fakeEngine{}
	now := t0
	r := NewRecorder(eng, WithRecorderClock(fixedClock(&now)))

	_, _ = r.Activate(context.Background(), 1, "chrome://newtab")
	now = t0.Add(time.Minute)
	_, err := r.Activate(context.Background(), 2, "https://example.com/b")
	require.NoError(t, err)

	_, err = r.Activate(context.Background(), 3, "https://example.com/c")
	require.NoError(t, err)
	assert.Empty(t, eng.spent)
}

func TestPublishSummary(t *testing.T) {
	hub := notify.NewHub(1, nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	now := t0
	publish := PublishSummary(hub, fixedClock(&now))
	publish(types.Node{
		Level:     2,
		Summary:   "# Heading\n- point",
		TimeRange: types.TimeRange{Start: t0, End: t0.Add(time.Hour)},
	})

	n := <-ch
	assert.Equal(t, notify.KindSummary, n.Kind)
	assert.Equal(t, 2, n.Level)
	assert.Equal(t, "Heading point", n.Text)
	assert.Equal(t, "May 1, 2024 09:00 - 10:00", n.Title)
}

func TestSettingsFrom(t *testing.T) {
	section := config.NewTrackingSection()
	source := SettingsFrom(section)
	assert.True(t, source().TrackingOn)

	section.SetTrackingOn(false)
	section.SetDensity(types.DensityHigh)
	s := source()
	assert.False(t, s.TrackingOn)
	assert.Equal(t, types.DensityHigh, s.Density)
}
