package types

import "time"

// PageRecord is a normalized page visit handed to the rollup engine by a
// capture collaborator. It is not modified after hand-off.
type PageRecord struct {
	Title            string    `json:"title"`
	URL              string    `json:"url"`
	BodyText         string    `json:"bodyText"`
	Timestamp        time.Time `json:"timestamp"`
	TimeSpentSeconds int       `json:"timeSpentSeconds,omitempty"`

	// Summary and OneLineSummary hold the real-time digest when one was
	// produced at capture time.
	Summary        string `json:"summary,omitempty"`
	OneLineSummary string `json:"oneLineSummary,omitempty"`
}

// PageDigest is the result of a real-time page summary.
type PageDigest struct {
	Bullets string `json:"bullets"`
	OneLine string `json:"oneLine"`
}

// Density controls how much detail a real-time page digest carries.
type Density string

const (
	DensityHigh   Density = "high"
	DensityMedium Density = "medium"
	DensityLow    Density = "low"
)

// LookupDensity returns the density named by s and whether s names one.
func LookupDensity(s string) (Density, bool) {
	switch Density(s) {
	case DensityHigh, DensityMedium, DensityLow:
		return Density(s), true
	default:
		return "", false
	}
}
