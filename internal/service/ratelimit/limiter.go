package ratelimit

import (
	"sync"
	"time"
)

// window tracks request timestamps for one (session, operation) pair.
// Entries older than the window are pruned lazily on each check.
type window struct {
	timestamps []time.Time
}

func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// Limiter is a sliding-window rate limiter keyed by session and operation.
// The check and the record are a single atomic step so that concurrent
// callers can never admit more than maxCalls per window.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	size     time.Duration
	maxCalls int
}

// New creates a limiter with the given window duration and call ceiling.
func New(windowSize time.Duration, maxCalls int) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		size:     windowSize,
		maxCalls: maxCalls,
	}
}

// CheckAndRecord admits or rejects one call for (sessionID, operation).
// Timestamps outside the trailing window are pruned first so calls is exact
// at call time. When denied, retryAfter is the time until the oldest
// in-window timestamp falls out of the window.
func (l *Limiter) CheckAndRecord(sessionID, operation string) (allowed bool, calls int, retryAfter time.Duration) {
	now := time.Now()
	key := sessionID + ":" + operation

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.prune(now.Add(-l.size))

	if len(w.timestamps) >= l.maxCalls {
		retryAfter = w.timestamps[0].Add(l.size).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, len(w.timestamps), retryAfter
	}

	w.timestamps = append(w.timestamps, now)
	return true, len(w.timestamps), 0
}

// Count reports the current in-window call count without recording.
func (l *Limiter) Count(sessionID, operation string) int {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[sessionID+":"+operation]
	if !ok {
		return 0
	}
	w.prune(now.Add(-l.size))
	return len(w.timestamps)
}

// Reset clears the window for a session/operation pair.
func (l *Limiter) Reset(sessionID, operation string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, sessionID+":"+operation)
}
