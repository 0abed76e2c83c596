package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/pagetrail/pkg/types"
)

// MaxActivityChars caps the combined page text sent for an activity summary.
const MaxActivityChars = 12000

// ActivityMaxTokens is the completion budget for an activity summary.
const ActivityMaxTokens int64 = 400

// ActivitySystemMessage is the system instruction sent with an activity summary.
const ActivitySystemMessage = "You are a helpful assistant that summarizes a user's recent browsing activity. " +
	"Give a concise, readable summary of the main topics and content."

// NoPagesToSummarize is shown when the history is empty.
const NoPagesToSummarize = "No pages to summarize."

// ErrNoPages is returned by SummarizeHistory for an empty history.
var ErrNoPages = errors.New("llm: no pages to summarize")

// ActivitySummarizer produces one free-form summary of a batch of pages.
type ActivitySummarizer interface {
	SummarizeActivity(ctx context.Context, digest string) (string, error)
}

// ActivitySummarizerFunc adapts a function to the ActivitySummarizer interface.
type ActivitySummarizerFunc func(ctx context.Context, digest string) (string, error)

// SummarizeActivity calls f.
func (f ActivitySummarizerFunc) SummarizeActivity(ctx context.Context, digest string) (string, error) {
	return f(ctx, digest)
}

// ActivityDigest joins pages, oldest first, into Title/URL/body blocks
// separated by "---", cut to MaxActivityChars characters.
func ActivityDigest(pages []types.Node) string {
	blocks := make([]string, 0, len(pages))
	for _, p := range pages {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\n%s\n", p.Title, p.URL, p.BodyText))
	}
	return truncateRunes(strings.Join(blocks, "\n---\n"), MaxActivityChars)
}

// SummarizeHistory summarizes pages in one request. It returns ErrNoPages
// without calling s when pages is empty.
func SummarizeHistory(ctx context.Context, s ActivitySummarizer, pages []types.Node) (string, error) {
	if len(pages) == 0 {
		return "", ErrNoPages
	}
	return s.SummarizeActivity(ctx, ActivityDigest(pages))
}
