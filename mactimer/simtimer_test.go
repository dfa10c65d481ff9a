package mactimer

import (
	"testing"
	"time"

	"github.com/trustfulmesh/tstp/protocol"
)

func TestSimTimerFiresAtDeadline(t *testing.T) {
	tm := NewSimTimer()
	deadline := tm.Now() + protocol.Time(20*time.Millisecond.Microseconds())
	ch := tm.After(deadline)

	select {
	case got := <-ch:
		if got < deadline {
			t.Fatalf("fired early: got %d, want >= %d", got, deadline)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestSimTimerAfterReplacesPending(t *testing.T) {
	tm := NewSimTimer()
	stale := tm.After(tm.Now() + protocol.Time(500*time.Millisecond.Microseconds()))
	fresh := tm.After(tm.Now() + protocol.Time(10*time.Millisecond.Microseconds()))

	select {
	case <-fresh:
	case <-time.After(time.Second):
		t.Fatal("fresh alarm never fired")
	}
	select {
	case <-stale:
		t.Fatal("stale alarm fired after being replaced")
	case <-time.After(50 * time.Millisecond):
	}
}
