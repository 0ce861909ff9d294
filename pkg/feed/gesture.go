package feed

import (
	"sync"
	"time"
)

// DefaultDoubleTapWindow is the longest gap between two taps that still
// counts as a double tap.
const DefaultDoubleTapWindow = 300 * time.Millisecond

// GestureDetector turns a pair of quick taps on one surface into a single
// trigger. It keeps no timers; each tap is compared with the previous one.
type GestureDetector struct {
	window  time.Duration
	lastTap time.Time
}

// NewGestureDetector returns a detector; a non-positive window uses the default.
func NewGestureDetector(window time.Duration) *GestureDetector {
	if window <= 0 {
		window = DefaultDoubleTapWindow
	}
	return &GestureDetector{window: window}
}

// Tap records a tap at now and reports whether it completes a double tap.
// lastTap is overwritten on every call.
func (g *GestureDetector) Tap(now time.Time) bool {
	prev := g.lastTap
	g.lastTap = now
	if prev.IsZero() {
		return false
	}
	return now.Sub(prev) < g.window
}

const gestureSweepThreshold = 4096

// GestureBoard holds one detector per surface and is safe for concurrent use.
type GestureBoard struct {
	mu      sync.Mutex
	window  time.Duration
	surface map[string]*GestureDetector
}

func NewGestureBoard(window time.Duration) *GestureBoard {
	if window <= 0 {
		window = DefaultDoubleTapWindow
	}
	return &GestureBoard{window: window, surface: make(map[string]*GestureDetector)}
}

// Tap routes the tap to the detector for key.
func (b *GestureBoard) Tap(key string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.surface) >= gestureSweepThreshold {
		b.sweep(now)
	}
	d, ok := b.surface[key]
	if !ok {
		d = NewGestureDetector(b.window)
		b.surface[key] = d
	}
	return d.Tap(now)
}

// sweep drops detectors whose last tap can no longer pair with a new one.
func (b *GestureBoard) sweep(now time.Time) {
	for k, d := range b.surface {
		if now.Sub(d.lastTap) >= b.window {
			delete(b.surface, k)
		}
	}
}

// SurfaceKey identifies the surface a viewer taps for a post.
func SurfaceKey(viewerKey, postID string) string {
	return viewerKey + "|" + postID
}
