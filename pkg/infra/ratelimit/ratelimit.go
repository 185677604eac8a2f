package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow is a keyed sliding-window counter. Each key holds the
// timestamps of recent recorded events; Allow admits a new event only
// while fewer than max timestamps fall inside the rolling window.
//
// Allow and Record are split on purpose: callers record only events
// that actually happened, so a failed attempt does not consume quota.
type SlidingWindow struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether another event for key fits under max within
// the window. It prunes expired timestamps as a side effect.
func (s *SlidingWindow) Allow(key string, max int, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	kept := s.prune(key, cutoff)
	return len(kept) < max
}

// Record appends one event timestamp for key.
func (s *SlidingWindow) Record(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append(s.entries[key], s.now())
}

// Count returns how many recorded events for key are inside the window.
func (s *SlidingWindow) Count(key string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prune(key, s.now().Add(-window)))
}

// Reset drops all state for key.
func (s *SlidingWindow) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// prune drops timestamps at or before cutoff. Caller holds the lock.
func (s *SlidingWindow) prune(key string, cutoff time.Time) []time.Time {
	stamps := s.entries[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = kept
	return kept
}
