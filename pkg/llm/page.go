package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/entrhq/pagetrail/pkg/types"
)

// MaxPageBodyChars bounds how much page text is sent for a real-time digest.
const MaxPageBodyChars = 4000

// PageMaxTokens is the completion budget for a real-time digest.
const PageMaxTokens int64 = 400

// PageSystemMessage is the system instruction sent with a real-time digest.
const PageSystemMessage = "You are a helpful assistant that summarizes web pages for a user's browsing history."

var (
	bulletsPattern = regexp.MustCompile(`BULLETS:\s*([\s\S]*?)\s*ONELINE:`)
	oneLinePattern = regexp.MustCompile(`ONELINE:\s*([\s\S]*)`)
)

func densityInstruction(d types.Density) string {
	switch d {
	case types.DensityHigh:
		return "high detail (as much as possible, very dense, no filler)"
	case types.DensityLow:
		return "low detail (very brief, only the most essential points)"
	default:
		return "medium detail (medium density, concise but not too brief)"
	}
}

// truncateRunes returns the first n characters of s without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// PagePrompt builds the user message for a real-time digest. The body is
// cut to MaxPageBodyChars characters.
func PagePrompt(page types.PageRecord, density types.Density) string {
	var b strings.Builder
	b.WriteString("Summarize the following web page for later review.\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nContent: %s\n\n", page.Title, page.URL, truncateRunes(page.BodyText, MaxPageBodyChars))
	b.WriteString("Give me:\n")
	fmt.Fprintf(&b, "1. A bullet-point summary of the main content (%s), max 5 bullets, no markdown, no asterisks, just plain text.\n", densityInstruction(density))
	b.WriteString("2. A single, dense, fact-focused, plain text line (no markdown, no asterisks, no casual words, no filler, no intro, no summary, just the core info) describing what this page is about, for a notification.\n")
	b.WriteString("Format:\nBULLETS:\n- ...\n- ...\nONELINE:\n...")
	return b.String()
}

// ParsePageDigest splits a BULLETS:/ONELINE: reply. Missing sections fall back
// to placeholders; ok is false when neither section was found.
func ParsePageDigest(text string) (digest types.PageDigest, ok bool) {
	digest = types.PageDigest{Bullets: BulletsUnavailable, OneLine: OneLineUnavailable}

	if m := bulletsPattern.FindStringSubmatch(text); m != nil {
		if b := strings.TrimSpace(m[1]); b != "" {
			digest.Bullets = b
			ok = true
		}
	}
	if m := oneLinePattern.FindStringSubmatch(text); m != nil {
		if l := strings.TrimSpace(m[1]); l != "" {
			digest.OneLine = strings.ReplaceAll(l, "\n", " ")
			ok = true
		}
	}
	return digest, ok
}
