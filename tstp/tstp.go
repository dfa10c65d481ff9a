// Package tstp is the application-facing half of the network layer:
// it runs every received buffer through the fixed pipeline.Chain and
// then fans it out to whichever local Responsive or remote Interested
// binding matches its Unit and Region, the same role the original's
// singleton TSTP::update dispatcher played as the last observer in its
// notify() chain.
package tstp

import (
	"sync"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/pipeline"
	"github.com/trustfulmesh/tstp/protocol"
)

// Responsive is a local endpoint (sensor or actuator) that can satisfy
// an Interest or Command addressed to its Unit and falling within its
// own Region membership at the current time.
type Responsive interface {
	// Origin is the endpoint's own position, checked against an
	// inbound message's Region.
	Origin() protocol.Coordinates
	// Notify delivers a matching Interest or Command. Notify must not
	// retain buf past the call; the dispatcher frees it once every
	// matching binding has been notified.
	Notify(buf *buffer.Buffer)
}

// Interested is a remote subscription bound to a Unit, matched against
// an inbound Response's origin rather than its own.
type Interested interface {
	// Region is the spatiotemporal window this subscription cares
	// about, checked against the Response's origin and origin time.
	Region() protocol.Region
	// Notify delivers a matching Response. Notify must not retain buf
	// past the call.
	Notify(buf *buffer.Buffer)
}

// Config bundles the dependencies a TSTP dispatcher needs to marshal
// outbound frames and accept inbound ones.
type Config struct {
	// Chain runs Locator, Timekeeper, Router, and Security against
	// every buffer before (outbound) or after (inbound) it reaches the
	// dispatcher.
	Chain pipeline.Chain
	// Pool supplies buffers for outbound frames and reclaims inbound
	// ones once dispatch completes.
	Pool *buffer.Pool
	// Clock reports current time for Responsive region checks; an
	// inbound Response's own origin time is read from its frame header.
	Clock pipeline.ClockStrategy
	// NewID draws a fresh FrameID for an outbound frame, wired to the
	// MAC's NewFrameID.
	NewID func() protocol.FrameID
	// Enqueue hands a marshaled outbound buffer to the MAC's send
	// schedule, wired to the MAC's Send.
	Enqueue func(*buffer.Buffer)
}

// TSTP is the dispatcher sitting above the network pipeline: SendFrame
// originates traffic, OnReceive (wired as the MAC's ReceiveFunc)
// accepts it.
type TSTP struct {
	chain   pipeline.Chain
	pool    *buffer.Pool
	clock   pipeline.ClockStrategy
	newID   func() protocol.FrameID
	enqueue func(*buffer.Buffer)

	mu          sync.RWMutex
	responsives map[protocol.Unit][]Responsive
	interested  map[protocol.Unit][]Interested
}

// New builds a TSTP dispatcher from cfg.
func New(cfg Config) *TSTP {
	return &TSTP{
		chain:       cfg.Chain,
		pool:        cfg.Pool,
		clock:       cfg.Clock,
		newID:       cfg.NewID,
		enqueue:     cfg.Enqueue,
		responsives: make(map[protocol.Unit][]Responsive),
		interested:  make(map[protocol.Unit][]Interested),
	}
}

// AttachResponsive registers r to receive Interest and Command traffic
// matching unit.
func (t *TSTP) AttachResponsive(unit protocol.Unit, r Responsive) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responsives[unit] = append(t.responsives[unit], r)
}

// DetachResponsive undoes a prior AttachResponsive.
func (t *TSTP) DetachResponsive(unit protocol.Unit, r Responsive) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responsives[unit] = removeResponsive(t.responsives[unit], r)
}

// AttachInterested registers i to receive Response traffic matching unit.
func (t *TSTP) AttachInterested(unit protocol.Unit, i Interested) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interested[unit] = append(t.interested[unit], i)
}

// DetachInterested undoes a prior AttachInterested.
func (t *TSTP) DetachInterested(unit protocol.Unit, i Interested) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interested[unit] = removeInterested(t.interested[unit], i)
}

func removeResponsive(list []Responsive, r Responsive) []Responsive {
	for i, v := range list {
		if v == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func removeInterested(list []Interested, i Interested) []Interested {
	for idx, v := range list {
		if v == i {
			return append(list[:idx], list[idx+1:]...)
		}
	}
	return list
}

// SendFrame marshals frame into a pool buffer, runs it through the
// outbound pipeline, and hands it to the MAC's send schedule.
func (t *TSTP) SendFrame(frame protocol.Frame) (*buffer.Buffer, error) {
	raw, err := frame.Marshal()
	if err != nil {
		return nil, err
	}
	buf, err := t.pool.Alloc()
	if err != nil {
		return nil, err
	}
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)
	buf.ID = t.newID()
	buf.IsNew = true
	buf.IsMicroframe = false

	if err := t.chain.Marshal(buf); err != nil {
		t.pool.Free(buf)
		return nil, err
	}
	t.enqueue(buf)
	return buf, nil
}

// OnReceive accepts a fully received data frame from the MAC, runs it
// through the inbound pipeline, dispatches it to matching local and
// remote bindings, and returns it to the pool. Its signature matches
// mac.ReceiveFunc.
func (t *TSTP) OnReceive(buf *buffer.Buffer) {
	defer t.pool.Free(buf)

	if buf.IsMicroframe {
		return
	}
	if err := t.chain.Update(buf); err != nil {
		return
	}
	t.dispatch(buf)
}

func (t *TSTP) dispatch(buf *buffer.Buffer) {
	frame, err := protocol.UnmarshalFrame(buf.Bytes())
	if err != nil {
		return
	}

	switch frame.Header.Type {
	case protocol.Interest:
		msg, err := protocol.UnmarshalInterest(frame.Payload)
		if err != nil {
			return
		}
		t.notifyResponsives(msg.Unit, msg.Region, buf)
	case protocol.Response:
		unit, err := protocol.PeekUnit(frame.Payload, protocol.Response)
		if err != nil {
			return
		}
		t.notifyInterested(unit, frame.Header, buf)
	case protocol.Command:
		msg, err := protocol.UnmarshalCommand(frame.Payload, protocol.FormatD64)
		if err != nil {
			return
		}
		t.notifyResponsives(msg.Unit, msg.Region, buf)
	case protocol.Control:
		// Protocol bookkeeping only; no Smart Data binding acts on it directly.
	}
}

func (t *TSTP) notifyResponsives(unit protocol.Unit, region protocol.Region, buf *buffer.Buffer) {
	t.mu.RLock()
	list := append([]Responsive(nil), t.responsives[unit]...)
	t.mu.RUnlock()

	now := t.clock.Now()
	for _, r := range list {
		if region.Contains(r.Origin(), now) {
			r.Notify(buf)
		}
	}
}

func (t *TSTP) notifyInterested(unit protocol.Unit, hdr protocol.Header, buf *buffer.Buffer) {
	t.mu.RLock()
	list := append([]Interested(nil), t.interested[unit]...)
	t.mu.RUnlock()

	for _, i := range list {
		if i.Region().Contains(hdr.Origin, hdr.OriginTime) {
			i.Notify(buf)
		}
	}
}
