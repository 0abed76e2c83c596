package rollup

import (
	"fmt"
	"strings"

	"github.com/entrhq/pagetrail/pkg/tokenizer"
	"github.com/entrhq/pagetrail/pkg/types"
)

// DefaultDigestBudget caps a digest, in tokens, when a counter is configured.
const DefaultDigestBudget = 12000

const entrySeparator = "\n---\n"

// Formatter renders the digest text sent to the summarizer for one promotion.
//
// With a Counter and a positive Budget, each entry's content is trimmed to an
// equal share of the budget. Without them the digest is never trimmed.
type Formatter struct {
	Counter tokenizer.Counter
	Budget  int
}

// Format renders entries for a promotion into level. Missing fields degrade
// to placeholder text.
func (f Formatter) Format(entries []types.Node, level int) string {
	parts := make([]string, len(entries))
	for i, n := range entries {
		parts[i] = renderEntry(n, level, entryContent(n, level))
	}
	digest := strings.Join(parts, entrySeparator)

	if f.Counter == nil || f.Budget <= 0 || len(entries) == 0 {
		return digest
	}
	if f.Counter.Count(digest) <= f.Budget {
		return digest
	}

	share := f.Budget / len(entries)
	for i, n := range entries {
		content := entryContent(n, level)
		overhead := f.Counter.Count(renderEntry(n, level, ""))
		parts[i] = renderEntry(n, level, tokenizer.Truncate(f.Counter, content, share-overhead))
	}
	return strings.Join(parts, entrySeparator)
}

func entryContent(n types.Node, level int) string {
	if level > 1 {
		return n.Summary
	}
	switch {
	case n.BodyText != "":
		return n.BodyText
	case n.Summary != "":
		return n.Summary
	default:
		return "No content"
	}
}

func renderEntry(n types.Node, level int, content string) string {
	if level > 1 {
		return fmt.Sprintf("Time Period: %s\nSummary: %s\n", n.TimeRange, content)
	}
	title := n.Title
	if title == "" {
		title = "No Title"
	}
	return fmt.Sprintf("Title: %s\nURL: %s\nContent: %s\n", title, n.URL, content)
}
