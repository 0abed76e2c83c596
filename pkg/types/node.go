package types

import (
	"fmt"
	"time"
)

// TimeRange is the closed interval of capture instants a node covers.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PointRange returns a range that starts and ends at t.
func PointRange(t time.Time) TimeRange {
	return TimeRange{Start: t, End: t}
}

// Merge returns the smallest range covering both r and other.
func (r TimeRange) Merge(other TimeRange) TimeRange {
	out := r
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

// String renders the range for display. Ranges within one calendar day show
// the date once followed by the clock span; wider ranges show both dates.
func (r TimeRange) String() string {
	if r.Start.IsZero() && r.End.IsZero() {
		return "Unknown time"
	}
	if r.Start.Equal(r.End) {
		return r.Start.Format("Jan 2, 2006 15:04")
	}
	end := r.End.In(r.Start.Location())
	if r.Start.Year() == end.Year() && r.Start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s - %s", r.Start.Format("Jan 2, 2006 15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", r.Start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
}

// SourceRef identifies a node consumed by a promotion.
type SourceRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Node is an entry at any rollup level. Level 0 nodes are leaves carrying the
// page fields; levels 1-3 carry a summary of the nodes they consumed.
type Node struct {
	ID        string    `json:"id"`
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	TimeRange TimeRange `json:"timeRange"`

	// Leaf fields
	Title            string `json:"title,omitempty"`
	URL              string `json:"url,omitempty"`
	BodyText         string `json:"bodyText,omitempty"`
	TimeSpentSeconds int    `json:"timeSpentSeconds,omitempty"`

	// Summary holds the rollup text for summary nodes and the real-time
	// bullet digest for leaves. OneLineSummary is the leaf's notification line.
	Summary        string      `json:"summary,omitempty"`
	OneLineSummary string      `json:"oneLineSummary,omitempty"`
	EntryCount     int         `json:"entryCount,omitempty"`
	SourceEntries  []SourceRef `json:"sourceEntries,omitempty"`
}

// NewLeaf builds a level 0 node for rec. The time range collapses to the
// capture instant, or to ingestedAt when rec carries no timestamp.
func NewLeaf(id string, rec PageRecord, ingestedAt time.Time) Node {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = ingestedAt
	}
	return Node{
		ID:               id,
		Level:            0,
		Timestamp:        ts,
		TimeRange:        PointRange(ts),
		Title:            rec.Title,
		URL:              rec.URL,
		BodyText:         rec.BodyText,
		TimeSpentSeconds: rec.TimeSpentSeconds,
		Summary:          rec.Summary,
		OneLineSummary:   rec.OneLineSummary,
	}
}

// IsLeaf reports whether n is a level 0 page entry.
func (n Node) IsLeaf() bool {
	return n.Level == 0
}

// DisplayTitle returns the label used when n is referenced by a summary:
// its title, else its one-line digest, else its summary text, else "Untitled".
func (n Node) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	if n.OneLineSummary != "" {
		return n.OneLineSummary
	}
	if n.Summary != "" {
		return n.Summary
	}
	return "Untitled"
}

// Ref returns the source reference recorded for n.
func (n Node) Ref() SourceRef {
	return SourceRef{ID: n.ID, Title: n.DisplayTitle()}
}

// Clone returns a copy of n that shares no slices with it.
func (n Node) Clone() Node {
	out := n
	if n.SourceEntries != nil {
		out.SourceEntries = append([]SourceRef(nil), n.SourceEntries...)
	}
	return out
}
