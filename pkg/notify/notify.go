// Package notify delivers one-line page digests to interested listeners.
package notify

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/pagetrail/pkg/metrics"
)

var (
	markupChars = regexp.MustCompile("[*_`#\\[\\]>-]")
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanOneLine strips markdown punctuation and collapses whitespace so a
// digest reads as a single plain line.
func CleanOneLine(s string) string {
	s = markupChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Notification is emitted once per recorded page, or once per new summary.
type Notification struct {
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	URL     string    `json:"url,omitempty"`
	Text    string    `json:"text"`
	Level   int       `json:"level"`
	Created time.Time `json:"created"`
}

// Notification kinds.
const (
	KindPage    = "page"
	KindSummary = "summary"
)

// Hub fans notifications out to subscribers. Slow subscribers miss
// notifications rather than block the publisher.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Notification]struct{}
	buffer  int
	metrics *metrics.Metrics
}

// NewHub creates a hub whose subscriber channels hold buffer notifications.
func NewHub(buffer int, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:    make(map[chan Notification]struct{}),
		buffer:  buffer,
		metrics: m,
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers n to every subscriber with room for it and reports how
// many received it.
func (h *Hub) Publish(n Notification) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered, dropped := 0, 0
	for ch := range h.subs {
		select {
		case ch <- n:
			delivered++
		default:
			dropped++
		}
	}
	h.metrics.Notification(delivered, dropped)
	return delivered
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
