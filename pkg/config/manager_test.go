package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestManager registers fresh LLM and tracking sections over a file store
// at path.
func newTestManager(t *testing.T, path string) (*Manager, *LLMSection, *TrackingSection) {
	t.Helper()
	store, err := NewFileStore(path)
	require.NoError(t, err)

	m := NewManager(store)
	llmSection := NewLLMSection()
	tracking := NewTrackingSection()
	require.NoError(t, m.RegisterSection(llmSection))
	require.NoError(t, m.RegisterSection(tracking))
	return m, llmSection, tracking
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load() error { return m.Called().Error(0) }
func (m *mockStore) Save() error { return m.Called().Error(0) }

func (m *mockStore) GetSection(id string) (map[string]any, error) {
	args := m.Called(id)
	data, _ := args.Get(0).(map[string]any)
	return data, args.Error(1)
}

func (m *mockStore) SetSection(id string, data map[string]any) error {
	return m.Called(id, data).Error(0)
}

func (m *mockStore) GetAll() (map[string]map[string]any, error) {
	args := m.Called()
	data, _ := args.Get(0).(map[string]map[string]any)
	return data, args.Error(1)
}

func (m *mockStore) SetAll(data map[string]map[string]any) error {
	return m.Called(data).Error(0)
}

func TestManager_RegisterSection(t *testing.T) {
	m, llmSection, tracking := newTestManager(t, filepath.Join(t.TempDir(), "config.json"))

	sections := m.GetSections()
	require.Len(t, sections, 2)
	assert.Equal(t, SectionIDLLM, sections[0].ID())
	assert.Equal(t, SectionIDTracking, sections[1].ID())

	got, ok := m.GetSection(SectionIDTracking)
	require.True(t, ok)
	assert.Same(t, tracking, got)

	_, ok = m.GetSection("ui")
	assert.False(t, ok)

	err := m.RegisterSection(NewLLMSection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"llm" already registered`)

	got, _ = m.GetSection(SectionIDLLM)
	assert.Same(t, llmSection, got, "duplicate does not replace the original")
	assert.Len(t, m.GetSections(), 2)
}

func TestManager_SaveAllLoadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m, llmSection, tracking := newTestManager(t, path)

	llmSection.SetModel("gpt-4o-mini")
	llmSection.SetBaseURL("http://localhost:11434/v1")
	llmSection.SetAPIKey("sk-test")
	require.NoError(t, llmSection.SetData(map[string]any{"timeout_seconds": 15}))
	tracking.SetTrackingOn(false)
	tracking.SetDensity(types.DensityLow)
	require.NoError(t, tracking.SetData(map[string]any{
		"include_patterns": []string{"docs.example.com/*"},
		"exclude_patterns": []string{"*.bank.com*"},
	}))

	require.NoError(t, m.SaveAll())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, llm2, tracking2 := newTestManager(t, path)
	require.NoError(t, reloaded.LoadAll())

	assert.Equal(t, "gpt-4o-mini", llm2.GetModel())
	assert.Equal(t, "http://localhost:11434/v1", llm2.GetBaseURL())
	assert.Equal(t, "sk-test", llm2.GetAPIKey())
	assert.Equal(t, 15*time.Second, llm2.GetTimeout())

	snap := tracking2.Snapshot()
	assert.False(t, snap.TrackingOn)
	assert.True(t, snap.RealTimeSummaryOn)
	assert.Equal(t, types.DensityLow, snap.Density)
	assert.Equal(t, []string{"docs.example.com/*"}, snap.IncludePatterns)
	assert.Equal(t, []string{"*.bank.com*"}, snap.ExcludePatterns)
}

func TestManager_LoadAllMissingFileKeepsDefaults(t *testing.T) {
	m, llmSection, tracking := newTestManager(t, filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, m.LoadAll())

	assert.Equal(t, time.Duration(defaultTimeoutSeconds)*time.Second, llmSection.GetTimeout())
	assert.Equal(t, NewTrackingSection().Snapshot(), tracking.Snapshot())
}

func TestManager_SaveAllValidatesBeforeWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, _, tracking := newTestManager(t, path)

	require.NoError(t, tracking.SetData(map[string]any{"exclude_patterns": []any{"[unclosed"}}))

	err := m.SaveAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section tracking is invalid")

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing is written when a section is invalid")
}

func TestManager_LoadAllRejectsInvalidSectionData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"version":"1","sections":{"tracking":{"summary_density":"extreme"}}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	m, _, _ := newTestManager(t, path)
	err := m.LoadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data for section tracking")
}

func TestManager_ResetAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, llmSection, tracking := newTestManager(t, path)

	llmSection.SetAPIKey("sk-test")
	tracking.SetRealTimeSummaryOn(false)
	require.NoError(t, m.SaveAll())

	m.ResetAll()
	assert.Empty(t, llmSection.GetAPIKey())
	assert.True(t, tracking.Snapshot().RealTimeSummaryOn)

	// Reset is in memory only until saved.
	store, err := NewFileStore(path)
	require.NoError(t, err)
	data, err := store.GetSection(SectionIDLLM)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", data["api_key"])
}

func TestManager_StoreErrors(t *testing.T) {
	boom := errors.New("disk full")

	tests := []struct {
		name  string
		setup func(s *mockStore)
		run   func(m *Manager) error
		want  string
	}{
		{
			name:  "load",
			setup: func(s *mockStore) { s.On("Load").Return(boom) },
			run:   (*Manager).LoadAll,
			want:  "failed to load config",
		},
		{
			name: "read section",
			setup: func(s *mockStore) {
				s.On("Load").Return(nil)
				s.On("GetSection", SectionIDLLM).Return(nil, boom)
			},
			run:  (*Manager).LoadAll,
			want: "failed to read section llm",
		},
		{
			name: "write section",
			setup: func(s *mockStore) {
				s.On("SetSection", SectionIDLLM, mock.Anything).Return(boom)
			},
			run:  (*Manager).SaveAll,
			want: "failed to store section llm",
		},
		{
			name: "save",
			setup: func(s *mockStore) {
				s.On("SetSection", mock.Anything, mock.Anything).Return(nil)
				s.On("Save").Return(boom)
			},
			run:  (*Manager).SaveAll,
			want: "failed to save config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			tt.setup(store)

			m := NewManager(store)
			require.NoError(t, m.RegisterSection(NewLLMSection()))
			require.NoError(t, m.RegisterSection(NewTrackingSection()))

			err := tt.run(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.want)
			assert.Same(t, store, m.Store())
			store.AssertExpectations(t)
		})
	}
}
