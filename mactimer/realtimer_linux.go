//go:build linux

package mactimer

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trustfulmesh/tstp/protocol"
)

// RealTimer is a Timer backed by CLOCK_MONOTONIC, for a node running
// against real radio hardware rather than the simulation harness.
type RealTimer struct {
	epoch int64 // CLOCK_MONOTONIC nanoseconds at construction

	mu    sync.Mutex
	timer *time.Timer
}

// NewRealTimer builds a RealTimer anchored to the current
// CLOCK_MONOTONIC reading.
func NewRealTimer() *RealTimer {
	return &RealTimer{epoch: monotonicNanos()}
}

func monotonicNanos() int64 {
	var ts unix.Timespec
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return ts.Nano()
}

func (t *RealTimer) Now() protocol.Time {
	return protocol.Time((monotonicNanos() - t.epoch) / int64(time.Microsecond))
}

func (t *RealTimer) After(at protocol.Time) <-chan protocol.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	ch := make(chan protocol.Time, 1)
	targetNanos := t.epoch + int64(at)*int64(time.Microsecond)
	d := time.Duration(targetNanos - monotonicNanos())
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

func (t *RealTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
