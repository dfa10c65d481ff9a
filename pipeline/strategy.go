// Package pipeline implements the fixed-order network layer every
// buffer passes through between the MAC and the application-facing
// dispatcher: Locator annotates distances, Timekeeper sets the
// transmission deadline, Router decides whether to forward, and
// Security is the trust-verification hook point.
package pipeline

import (
	"github.com/trustfulmesh/tstp/protocol"
)

// LocationStrategy reports this node's own position. The original
// left this a hardcoded placeholder (Locator::here() returning a fixed
// point pending a real positioning system); callers supply a concrete
// implementation once one exists (GPS, anchor trilateration, a static
// config value for a fixed sensor).
type LocationStrategy interface {
	Here() protocol.Coordinates
}

// StaticLocation is a LocationStrategy that never moves, the same
// placeholder role the original's hardcoded here() played, now made an
// explicit, swappable dependency instead of a TODO.
type StaticLocation struct {
	Position protocol.Coordinates
}

// Here returns the fixed configured position.
func (s StaticLocation) Here() protocol.Coordinates { return s.Position }

// ClockStrategy reports the node's current notion of time, used by
// Timekeeper and Router to evaluate a message Region's time window.
type ClockStrategy interface {
	Now() protocol.Time
}

// ClockFunc adapts a plain function to ClockStrategy, letting callers
// wire in a mactimer.Timer's Now method directly.
type ClockFunc func() protocol.Time

// Now calls f.
func (f ClockFunc) Now() protocol.Time { return f() }
