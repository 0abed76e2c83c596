// Package tokenizer counts model tokens for digest budgeting.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding matches the gpt-4 family.
const DefaultEncoding = "cl100k_base"

// Counter reports the number of tokens in a text.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates one token per four characters.
type Heuristic struct{}

// Count implements Counter.
func (Heuristic) Count(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

// Tokenizer counts tokens with a tiktoken encoding. The encoding is loaded on
// first use; if it cannot be loaded the heuristic is used instead.
type Tokenizer struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	loadErr  error
}

// New returns a tokenizer for the named encoding.
func New(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tokenizer{encoding: encoding}
}

func (t *Tokenizer) load() {
	t.once.Do(func() {
		t.enc, t.loadErr = tiktoken.GetEncoding(t.encoding)
	})
}

// Count implements Counter.
func (t *Tokenizer) Count(text string) int {
	t.load()
	if t.enc == nil {
		return Heuristic{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Err returns the encoding load error, if any.
func (t *Tokenizer) Err() error {
	t.load()
	return t.loadErr
}

// Truncate shortens text until c counts at most maxTokens in it.
func Truncate(c Counter, text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	count := c.Count(text)
	if count <= maxTokens {
		return text
	}
	runes := []rune(text)
	for count > maxTokens && len(runes) > 0 {
		keep := len(runes) * maxTokens / count
		if keep >= len(runes) {
			keep = len(runes) - 1
		}
		runes = runes[:keep]
		count = c.Count(string(runes))
	}
	return string(runes)
}
