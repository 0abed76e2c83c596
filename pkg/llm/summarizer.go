// Package llm defines the summarization contracts used by the rollup engine
// and the capture pipeline.
//
// Two summarizers share one client shape:
//
//   - Summarizer rolls a digest of ten entries up into one level 1-3 summary.
//   - PageSummarizer produces the real-time bullet list and one-line digest for
//     a single page.
//
// Implementations read their credential before every call. A missing
// credential is reported as ErrNoCredential without touching the network.
//
// Example usage:
//
//	client := openai.NewClient(llm.StaticCredential(os.Getenv("OPENAI_API_KEY")))
//	text, err := client.Summarize(ctx, digest, 1)
//	if errors.Is(err, llm.ErrNoCredential) {
//	    // summarization skipped
//	}
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/pagetrail/pkg/types"
)

var (
	// ErrNoCredential means no API credential was configured.
	ErrNoCredential = errors.New("llm: no API credential configured")

	// ErrRequestFailed covers transport errors, non-2xx responses and
	// exceeded deadlines. Requests are never retried.
	ErrRequestFailed = errors.New("llm: request failed")

	// ErrMalformedResponse means the endpoint answered but without the
	// expected structure. Callers degrade to placeholder text.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// Placeholder texts used when a response lacks the expected structure.
const (
	NoSummaryGenerated = "No summary generated"
	BulletsUnavailable = "Summary unavailable."
	OneLineUnavailable = "No summary."
)

// Summarizer produces the text of a level 1-3 rollup from a digest.
type Summarizer interface {
	Summarize(ctx context.Context, digest string, level int) (string, error)
}

// PageSummarizer produces the real-time digest of one page.
type PageSummarizer interface {
	SummarizePage(ctx context.Context, page types.PageRecord, density types.Density) (types.PageDigest, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, digest string, level int) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, digest string, level int) (string, error) {
	return f(ctx, digest, level)
}

// CredentialSource returns the current API credential. It is consulted before
// every request so a key set at runtime takes effect immediately.
type CredentialSource func() string

// StaticCredential returns a source that always yields key.
func StaticCredential(key string) CredentialSource {
	return func() string { return key }
}

// LevelPrompt describes how one rollup level is framed for the model.
type LevelPrompt struct {
	Framing   string
	MaxTokens int64
}

var levelPrompts = map[int]LevelPrompt{
	1: {Framing: "recent browsing activity", MaxTokens: 300},
	2: {Framing: "browsing sessions", MaxTokens: 200},
	3: {Framing: "browsing periods", MaxTokens: 200},
}

// PromptForLevel returns the framing for level, or an error for levels
// outside 1-3.
func PromptForLevel(level int) (LevelPrompt, error) {
	p, ok := levelPrompts[level]
	if !ok {
		return LevelPrompt{}, fmt.Errorf("llm: no prompt for level %d", level)
	}
	return p, nil
}

// SystemMessage is the system instruction sent with a rollup request.
func (p LevelPrompt) SystemMessage() string {
	return fmt.Sprintf("You are a helpful assistant that creates hierarchical summaries of %s. "+
		"Provide concise, informative summaries that capture the main themes and activities.", p.Framing)
}

// UserMessage wraps digest in the level's request text.
func (p LevelPrompt) UserMessage(digest string) string {
	return fmt.Sprintf("Please summarize the following %s:\n\n%s", p.Framing, digest)
}
