package timeline

import (
	"fmt"
	"strings"

	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/muesli/reflow/wordwrap"
)

const (
	maxSourceLines = 5
	maxDetailChars = 600
)

// LevelNames label the tabs.
var LevelNames = [types.NumLevels]string{
	"Individual Pages",
	"Page Summaries",
	"Session Summaries",
	"Period Summaries",
}

// LevelDescriptions explain what each tab shows.
var LevelDescriptions = [types.NumLevels]string{
	"Individual page entries (raw browsing history)",
	"Summaries of 10-page browsing sessions",
	"Summaries of browsing sessions (10 level 1 summaries)",
	"Summaries of browsing periods (10 level 2 summaries)",
}

// FormatTimeSpent renders seconds as "42s" or "3m 5s". Zero is "Unknown".
func FormatTimeSpent(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// Excerpt returns the first 600 characters of body, with "..." when cut.
func Excerpt(body string) string {
	r := []rune(body)
	if len(r) <= maxDetailChars {
		return body
	}
	return string(r[:maxDetailChars]) + "..."
}

// SourceLines lists the first five source titles of a summary and how many
// more there are.
func SourceLines(n types.Node) []string {
	var lines []string
	for i, src := range n.SourceEntries {
		if i == maxSourceLines {
			lines = append(lines, fmt.Sprintf("... and %d more", len(n.SourceEntries)-maxSourceLines))
			break
		}
		lines = append(lines, "• "+src.Title)
	}
	return lines
}

// ItemLabel is the one-line label shown in the list.
func ItemLabel(n types.Node) string {
	if n.IsLeaf() {
		label := n.Title
		if label == "" {
			label = "(No Title)"
		}
		return fmt.Sprintf("%s  %s", n.Timestamp.Local().Format("Jan 2 15:04"), label)
	}
	return n.TimeRange.String()
}

// Detail renders the full entry, wrapped to width columns when width > 0.
func Detail(n types.Node, width int) string {
	var b strings.Builder

	if n.IsLeaf() {
		title := n.Title
		if title == "" {
			title = "(No Title)"
		}
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", title, n.URL, n.Timestamp.Local().Format("Jan 2, 2006 15:04:05"))
		summary := n.Summary
		if summary == "" {
			summary = "No summary"
		}
		fmt.Fprintf(&b, "Summary: %s\n", summary)
		if n.OneLineSummary != "" {
			fmt.Fprintf(&b, "1-line: %s\n", n.OneLineSummary)
		}
		fmt.Fprintf(&b, "Time spent: %s\n\n", FormatTimeSpent(n.TimeSpentSeconds))
		fmt.Fprintf(&b, "Details:\n%s\n", Excerpt(n.BodyText))
	} else {
		name := "Summary"
		if types.ValidLevel(n.Level) {
			name = LevelNames[n.Level] + " Summary"
		}
		fmt.Fprintf(&b, "%s\n%s\nGenerated: %s\n\n", name, n.TimeRange.String(), n.Timestamp.Local().Format("Jan 2, 2006 15:04:05"))
		summary := n.Summary
		if summary == "" {
			summary = "No summary available"
		}
		fmt.Fprintf(&b, "%s\n\n", summary)

		unit := "summaries"
		if n.Level == 1 {
			unit = "pages"
		}
		fmt.Fprintf(&b, "Summarizes %d %s\n", n.EntryCount, unit)
		if lines := SourceLines(n); len(lines) > 0 {
			fmt.Fprintf(&b, "\nSources:\n%s\n", strings.Join(lines, "\n"))
		}
	}

	if width <= 0 {
		return b.String()
	}
	return wordwrap.String(b.String(), width)
}
