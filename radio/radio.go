// Package radio defines the hardware contract the MAC layer drives: a
// half-duplex, power-manageable transceiver that can sample the
// channel for activity (CCA) before transmitting and that timestamps
// frames as they arrive.
package radio

import "github.com/trustfulmesh/tstp/protocol"

// PowerMode selects how much of the transceiver stays energized
// between uses, trading wakeup latency for average current draw.
type PowerMode uint8

const (
	// Full keeps the transceiver ready to transmit or receive with no
	// wakeup delay.
	Full PowerMode = iota
	// Light powers down the RF front end but keeps the baseband clocked,
	// for a fast wakeup.
	Light
	// Sleep powers down everything except a wakeup timer.
	Sleep
	// Off disables the transceiver entirely.
	Off
)

// Characteristics describes the fixed, hardware- and PHY-specific
// timing a transceiver exposes so the MAC can derive its duty-cycle
// schedule: how long a microframe takes to go out, how long a listener
// must wait for one, and how long the radio takes to turn around
// between receiving and transmitting.
type Characteristics struct {
	// ByteRate is the over-the-air data rate in bytes per second.
	ByteRate int
	// PHYHeaderSize is the number of physical-layer header bytes the
	// radio prepends to every frame (preamble, SFD, length), counted
	// against ByteRate when timing a microframe's airtime.
	PHYHeaderSize int
	// CCATXGap is the minimum silent gap a CCA sample must observe
	// before a channel is declared clear.
	CCATXGap protocol.TimeOffset
	// TurnaroundTime is the radio's RX-to-TX or TX-to-RX turnaround
	// time guaranteed by the PHY standard (e.g. IEEE 802.15.4's aTurnaroundTime).
	TurnaroundTime protocol.TimeOffset
	// RXToTXDelay is how long this radio takes to switch from
	// receiving to transmitting.
	RXToTXDelay protocol.TimeOffset
	// TXToRXDelay is how long this radio takes to switch from
	// transmitting to receiving.
	TXToRXDelay protocol.TimeOffset
	// IntHandlingDelay is the software latency between a scheduled
	// transmit interrupt and the radio actually keying up, folded into
	// the microframe cadence so consecutive microframes don't collide.
	IntHandlingDelay protocol.TimeOffset
}

// Radio is the hardware contract the MAC drives. Implementations range
// from a real IEEE 802.15.4 transceiver driver to the in-process
// SimRadio used for testing.
type Radio interface {
	// Characteristics reports the radio's fixed timing, used once at
	// MAC startup to derive its duty-cycle schedule.
	Characteristics() Characteristics

	// Power sets the transceiver's power mode.
	Power(mode PowerMode)

	// Listen puts the radio in receive mode. Frames that arrive while
	// listening are delivered as Delivery values on the channel
	// returned by Receive.
	Listen()

	// CCA samples the channel once and reports whether it is clear.
	CCA() bool

	// Transmit sends buf after first performing a CCA check, returning
	// false without sending if the channel is busy.
	Transmit(buf []byte) bool

	// TransmitNoCCA sends buf immediately, without a CCA check, used
	// for the microframe train once the first microframe has already
	// claimed the channel.
	TransmitNoCCA(buf []byte)

	// Receive returns the channel on which received frames are delivered.
	Receive() <-chan Delivery

	// Channel reports the current radio channel number.
	Channel() int

	// SetChannel switches the radio to the given channel number.
	SetChannel(ch int)
}

// Delivery is one frame received off the air, timestamped at its
// start-frame-delimiter as closely as the hardware allows.
type Delivery struct {
	Data         []byte
	SFDTimeStamp protocol.Time
}
