package websocket

import (
	"sync"
	"time"
)

// PositionSyncInterval bounds how often drag/cursor updates are relayed
// per connection. Intermediate updates beyond this rate are dropped;
// eventual consistency comes from the unthrottled final update.
const PositionSyncInterval = 100 * time.Millisecond

// Throttle gates high-frequency events to at most one per interval.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether an event may pass now, consuming the slot if so.
func (t *Throttle) Allow() bool {
	return t.allowAt(time.Now())
}

func (t *Throttle) allowAt(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Flush resets the gate so the next event passes unconditionally. Called
// when a final update (for example the position persisted on drag end)
// has gone through outside the throttled path.
func (t *Throttle) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Time{}
}
