package config

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		globalManager = nil
		globalMu.Unlock()
	})
}

func TestInitialize(t *testing.T) {
	t.Run("registers default sections", func(t *testing.T) {
		resetGlobal(t)
		require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))
		assert.True(t, IsInitialized())

		sections := Global().GetSections()
		require.Len(t, sections, 2)
		assert.Equal(t, SectionIDLLM, sections[0].ID())
		assert.Equal(t, SectionIDTracking, sections[1].ID())

		assert.NotNil(t, GetLLM())
		assert.NotNil(t, GetTracking())
	})

	t.Run("invalid file fails", func(t *testing.T) {
		resetGlobal(t)
		path := filepath.Join(t.TempDir(), "config.json")
		store, err := NewFileStore(path)
		require.NoError(t, err)
		require.NoError(t, store.SetSection(SectionIDTracking, map[string]any{"tracking_on": "yes"}))
		require.NoError(t, store.Save())

		assert.Error(t, Initialize(path))
		assert.False(t, IsInitialized())
	})
}

func TestGlobal_PanicsBeforeInitialize(t *testing.T) {
	resetGlobal(t)
	assert.Panics(t, func() { Global() })
	assert.Nil(t, GetLLM())
	assert.Nil(t, GetTracking())
}

func TestGlobalConfig_Persistence(t *testing.T) {
	resetGlobal(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Initialize(path))

	GetLLM().SetModel("gpt-4o-mini")
	GetTracking().SetTrackingOn(false)
	GetTracking().SetDensity(types.DensityLow)
	require.NoError(t, Global().SaveAll())

	resetGlobal(t)
	require.NoError(t, Initialize(path))
	assert.Equal(t, "gpt-4o-mini", GetLLM().GetModel())

	snap := GetTracking().Snapshot()
	assert.False(t, snap.TrackingOn)
	assert.True(t, snap.RealTimeSummaryOn)
	assert.Equal(t, types.DensityLow, snap.Density)
}

func TestGlobalConfig_ThreadSafety(t *testing.T) {
	resetGlobal(t)
	require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = GetLLM().GetModel()
			GetTracking().SetRealTimeSummaryOn(true)
			_ = GetTracking().Snapshot()
		}()
	}
	wg.Wait()
}
