package config

import (
	"sync"
)

var (
	// globalManager is the process-wide configuration manager
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global manager, registers the default sections and
// loads them from configPath (DefaultPath when empty). Call it once at
// startup.
func Initialize(configPath string) error {
	manager, err := NewDefaultManager(configPath)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = manager
	return nil
}

// NewDefaultManager builds and loads a manager with the LLM and tracking
// sections.
func NewDefaultManager(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewLLMSection()); err != nil {
		return nil, err
	}
	if err := manager.RegisterSection(NewTrackingSection()); err != nil {
		return nil, err
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetLLM returns the LLM settings section from global config.
// Returns nil if config is not initialized.
func GetLLM() *LLMSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDLLM)
	if !ok {
		return nil
	}
	llm, _ := section.(*LLMSection)
	return llm
}

// GetTracking returns the tracking section from global config.
// Returns nil if config is not initialized.
func GetTracking() *TrackingSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDTracking)
	if !ok {
		return nil
	}
	tracking, _ := section.(*TrackingSection)
	return tracking
}
