package tracker

import (
	"sync"
	"time"
)

// Visit is a finished stretch of time on one URL.
type Visit struct {
	TabID   int
	URL     string
	Seconds int
}

// State tracks the active tab. It replaces process-wide globals: each
// tracker owns one and passes it where needed.
type State struct {
	mu     sync.Mutex
	tabID  int
	url    string
	since  time.Time
	active bool
}

// Activate makes tabID showing url the active tab at now. If another tab was
// active, the finished visit is returned.
func (s *State) Activate(tabID int, url string, now time.Time) (Visit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.closeLocked(now)
	s.tabID, s.url, s.since, s.active = tabID, url, now, true
	return prev, ok
}

// Deactivate ends the current visit, for example when the window loses
// focus.
func (s *State) Deactivate(now time.Time) (Visit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.closeLocked(now)
	s.active = false
	return prev, ok
}

// Active returns the active tab and URL.
func (s *State) Active() (tabID int, url string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabID, s.url, s.active
}

func (s *State) closeLocked(now time.Time) (Visit, bool) {
	if !s.active || s.url == "" {
		return Visit{}, false
	}
	elapsed := now.Sub(s.since)
	if elapsed < 0 {
		elapsed = 0
	}
	return Visit{TabID: s.tabID, URL: s.url, Seconds: int(elapsed / time.Second)}, true
}
