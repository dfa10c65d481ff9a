package radio

import (
	"sync"

	"github.com/trustfulmesh/tstp/protocol"
)

// Medium is an in-process broadcast channel shared by every SimRadio
// attached to it, standing in for the physical airwaves in tests and
// in the simulation harness. A transmission from one SimRadio is
// delivered to every other SimRadio subscribed to the same Medium that
// is on the same channel and currently listening.
type Medium struct {
	mu      sync.Mutex
	members []*SimRadio
	now     func() protocol.Time
}

// NewMedium builds a Medium. now supplies the timestamp attached to
// delivered frames; tests typically drive it from a SimTimer.
func NewMedium(now func() protocol.Time) *Medium {
	return &Medium{now: now}
}

func (m *Medium) join(r *SimRadio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, r)
}

func (m *Medium) busy(self *SimRadio) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.members {
		if r != self && r.transmitting {
			return true
		}
	}
	return false
}

func (m *Medium) broadcast(self *SimRadio, buf []byte) {
	m.mu.Lock()
	recipients := make([]*SimRadio, 0, len(m.members))
	for _, r := range m.members {
		if r != self && r.channel == self.channel {
			recipients = append(recipients, r)
		}
	}
	ts := m.now()
	m.mu.Unlock()

	frame := make([]byte, len(buf))
	copy(frame, buf)
	for _, r := range recipients {
		r.deliver(Delivery{Data: frame, SFDTimeStamp: ts})
	}
}

// SimRadio is a Radio implementation over an in-process Medium, used
// for unit tests and the multi-node simulation harness in place of a
// real IEEE 802.15.4 transceiver.
type SimRadio struct {
	medium *Medium
	chars  Characteristics

	mu           sync.Mutex
	mode         PowerMode
	channel      int
	listening    bool
	transmitting bool

	rx chan Delivery
}

// NewSimRadio attaches a new SimRadio to medium with the given fixed
// Characteristics.
func NewSimRadio(medium *Medium, chars Characteristics) *SimRadio {
	r := &SimRadio{
		medium: medium,
		chars:  chars,
		rx:     make(chan Delivery, 32),
	}
	medium.join(r)
	return r
}

func (r *SimRadio) Characteristics() Characteristics { return r.chars }

func (r *SimRadio) Power(mode PowerMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	if mode != Full && mode != Light {
		r.listening = false
	}
}

func (r *SimRadio) Listen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listening = true
}

func (r *SimRadio) CCA() bool {
	return !r.medium.busy(r)
}

func (r *SimRadio) Transmit(buf []byte) bool {
	if !r.CCA() {
		return false
	}
	r.TransmitNoCCA(buf)
	return true
}

func (r *SimRadio) TransmitNoCCA(buf []byte) {
	r.mu.Lock()
	r.transmitting = true
	r.mu.Unlock()

	r.medium.broadcast(r, buf)

	r.mu.Lock()
	r.transmitting = false
	r.mu.Unlock()
}

func (r *SimRadio) Receive() <-chan Delivery { return r.rx }

func (r *SimRadio) Channel() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

func (r *SimRadio) SetChannel(ch int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = ch
}

func (r *SimRadio) deliver(d Delivery) {
	r.mu.Lock()
	listening := r.listening
	r.mu.Unlock()
	if !listening {
		return
	}
	select {
	case r.rx <- d:
	default:
	}
}
