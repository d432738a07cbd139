package websocket

import (
	"testing"
	"time"
)

func TestThrottleAllowsFirstEvent(t *testing.T) {
	th := NewThrottle(100 * time.Millisecond)
	if !th.Allow() {
		t.Error("first event should pass")
	}
}

func TestThrottleBlocksWithinInterval(t *testing.T) {
	th := NewThrottle(100 * time.Millisecond)
	base := time.Now()

	if !th.allowAt(base) {
		t.Fatal("first event should pass")
	}
	if th.allowAt(base.Add(50 * time.Millisecond)) {
		t.Error("event inside the interval should be dropped")
	}
	if !th.allowAt(base.Add(150 * time.Millisecond)) {
		t.Error("event after the interval should pass")
	}
}

func TestThrottleFlush(t *testing.T) {
	th := NewThrottle(100 * time.Millisecond)
	base := time.Now()

	th.allowAt(base)
	if th.allowAt(base.Add(10 * time.Millisecond)) {
		t.Fatal("event inside the interval should be dropped")
	}

	th.Flush()
	if !th.allowAt(base.Add(20 * time.Millisecond)) {
		t.Error("event after Flush should pass unconditionally")
	}
}
