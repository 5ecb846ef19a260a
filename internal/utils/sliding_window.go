package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts events inside a trailing time span. Entries at
// exactly the cutoff are kept, so a span of 5s covers "within the last
// 5000ms" inclusively.
type SlidingWindow struct {
	mu   sync.Mutex
	span time.Duration
	hits []time.Time
}

func NewSlidingWindow(span time.Duration) *SlidingWindow {
	return &SlidingWindow{span: span}
}

// Add records an event and returns how many events remain in the window,
// the new one included.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.span)
	idx := 0
	for _, hit := range w.hits {
		if !hit.Before(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
	w.hits = append(w.hits, now)
	return len(w.hits)
}

// Reset drops every recorded event.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = nil
}
