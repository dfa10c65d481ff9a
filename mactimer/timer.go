// Package mactimer defines the microsecond-resolution clock and
// one-shot alarm the MAC layer schedules its duty cycle against.
package mactimer

import "github.com/trustfulmesh/tstp/protocol"

// Timer is a free-running microsecond clock with a single one-shot
// alarm, mirroring the one compare register a real radio MCU exposes.
// Arming a new alarm always replaces whichever one was previously
// pending, matching the duty-cycle state machine's assumption that at
// most one timeout is ever outstanding.
type Timer interface {
	// Now returns the current time.
	Now() protocol.Time

	// After arms the alarm to fire at absolute time t, replacing any
	// previously armed alarm, and returns the channel that receives the
	// fire time once. The MAC's event loop selects on this channel
	// alongside the radio's receive channel.
	After(t protocol.Time) <-chan protocol.Time

	// Stop disarms the currently pending alarm, if any.
	Stop()
}

// SFDStamper is implemented by timers that can report a
// hardware-latched start-frame-delimiter timestamp, used to annotate
// buffers with SFDTimeStamp as precisely as the platform allows. The
// MAC does not consult it: it takes SFDTimeStamp from the radio's
// Delivery.
type SFDStamper interface {
	SFD() protocol.Time
}
