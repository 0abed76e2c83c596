package config

import (
	"fmt"
	"sync"

	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/gobwas/glob"
)

// SectionIDTracking is the identifier for the tracking section.
const SectionIDTracking = "tracking"

// TrackingSection holds the switches that control which visits are recorded.
type TrackingSection struct {
	TrackingOn        bool
	RealTimeSummaryOn bool
	Density           types.Density
	IncludePatterns   []string
	ExcludePatterns   []string
	mu                sync.RWMutex
}

// NewTrackingSection returns the defaults: everything tracked, real-time
// digests on at medium density.
func NewTrackingSection() *TrackingSection {
	return &TrackingSection{
		TrackingOn:        true,
		RealTimeSummaryOn: true,
		Density:           types.DensityMedium,
	}
}

func (s *TrackingSection) ID() string    { return SectionIDTracking }
func (s *TrackingSection) Title() string { return "Tracking" }

func (s *TrackingSection) Description() string {
	return "Turn page recording and real-time digests on or off, pick the digest density, and include or exclude URLs by glob pattern (matched against host/path)."
}

// Data returns the current configuration data.
func (s *TrackingSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"tracking_on":         s.TrackingOn,
		"realtime_summary_on": s.RealTimeSummaryOn,
		"summary_density":     string(s.Density),
		"include_patterns":    toAnySlice(s.IncludePatterns),
		"exclude_patterns":    toAnySlice(s.ExcludePatterns),
	}
}

// SetData updates the configuration from the provided data.
func (s *TrackingSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "tracking_on", "realtime_summary_on":
			enabled, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for %s: expected bool, got %T", key, value)
			}
			if key == "tracking_on" {
				s.TrackingOn = enabled
			} else {
				s.RealTimeSummaryOn = enabled
			}

		case "summary_density":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for summary_density: expected string, got %T", value)
			}
			density, ok := types.LookupDensity(str)
			if !ok {
				return fmt.Errorf("invalid summary_density %q: expected high, medium or low", str)
			}
			s.Density = density

		case "include_patterns", "exclude_patterns":
			patterns, err := toStrings(value)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			if key == "include_patterns" {
				s.IncludePatterns = patterns
			} else {
				s.ExcludePatterns = patterns
			}

		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}
	return nil
}

// Validate checks that every pattern compiles.
func (s *TrackingSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range append(append([]string{}, s.IncludePatterns...), s.ExcludePatterns...) {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern '%s': %w", p, err)
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *TrackingSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TrackingOn = true
	s.RealTimeSummaryOn = true
	s.Density = types.DensityMedium
	s.IncludePatterns = nil
	s.ExcludePatterns = nil
}

// SetTrackingOn toggles recording.
func (s *TrackingSection) SetTrackingOn(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TrackingOn = on
}

// SetRealTimeSummaryOn toggles real-time digests.
func (s *TrackingSection) SetRealTimeSummaryOn(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RealTimeSummaryOn = on
}

// SetDensity sets the digest density.
func (s *TrackingSection) SetDensity(d types.Density) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Density = d
}

// Snapshot is a consistent copy of the section's values.
type Snapshot struct {
	TrackingOn        bool
	RealTimeSummaryOn bool
	Density           types.Density
	IncludePatterns   []string
	ExcludePatterns   []string
}

// Snapshot returns the current values.
func (s *TrackingSection) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		TrackingOn:        s.TrackingOn,
		RealTimeSummaryOn: s.RealTimeSummaryOn,
		Density:           s.Density,
		IncludePatterns:   append([]string(nil), s.IncludePatterns...),
		ExcludePatterns:   append([]string(nil), s.ExcludePatterns...),
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStrings(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: expected string, got %T", i, item)
			}
			out = append(out, str)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}
