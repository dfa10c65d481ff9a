package mactimer

import (
	"sync"
	"time"

	"github.com/trustfulmesh/tstp/protocol"
)

// SimTimer is a Timer backed by the Go runtime's own monotonic clock
// and time.Timer, used in tests and the simulation harness where real
// hardware timing isn't available.
type SimTimer struct {
	start time.Time

	mu    sync.Mutex
	timer *time.Timer
	ch    chan protocol.Time
}

// NewSimTimer builds a SimTimer whose epoch is the moment it's created.
func NewSimTimer() *SimTimer {
	return &SimTimer{start: time.Now()}
}

func (t *SimTimer) Now() protocol.Time {
	return protocol.FromDuration(time.Since(t.start))
}

func (t *SimTimer) After(at protocol.Time) <-chan protocol.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	ch := make(chan protocol.Time, 1)
	t.ch = ch
	d := at.Duration() - time.Since(t.start)
	if d < 0 {
		d = 0
	}
	t.timer = time.AfterFunc(d, func() {
		select {
		case ch <- t.Now():
		default:
		}
	})
	return ch
}

func (t *SimTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
