package pipeline

import (
	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/protocol"
)

// Router makes the forwarding decision at the heart of geographic
// routing: whether a node should stay awake for a data frame it only
// heard a microframe for, whether it is the addressee, and whether it
// should relay a frame it has fully received.
type Router struct {
	Location LocationStrategy
	Clock    ClockStrategy
	// Sink is the fixed coordinate microframe relevance is measured
	// against. A message whose Region is centered on Sink is marked
	// Downlink (traffic headed to the sink).
	Sink protocol.Coordinates
	// Forward hands a buffer prepared for relay to the MAC's send
	// schedule. Left nil, Update never relays.
	Forward func(*buffer.Buffer)
	// Alloc obtains a fresh buffer for a relayed copy. Left nil, Update
	// never relays.
	Alloc func() (*buffer.Buffer, error)
}

// IsRelevant reports whether a node at this Router's location should
// stay awake for the data frame that follows a microframe carrying
// hint, used when the microframe's own all_listen flag didn't already
// settle relevance. It mirrors the original's two-stage relevance
// check: a downlink (all_listen) microframe is always relevant, but an
// uplink one is only relevant to whichever receivers are closer to the
// sink than the sender was.
func (r Router) IsRelevant(hint protocol.Hint) bool {
	return r.Location.Here().Distance(r.Sink) < int64(hint)
}

// Marshal annotates an outbound buffer with whether it is downlink
// traffic, whether this node is already its own destination, and the
// backoff Offset the MAC waits before its CCA. For a buffer this node
// originates, MyDistance equals SenderDistance, so Offset is RadioRange.
func (r Router) Marshal(buf *buffer.Buffer) error {
	dest, err := Destination(buf)
	if err != nil {
		return err
	}
	buf.Downlink = dest.Center == r.Sink
	buf.DestinedToMe = dest.Contains(r.Location.Here(), r.Clock.Now())
	buf.Offset = Offset(buf.MyDistance, buf.SenderDistance)
	return nil
}

// Update refines a microframe's relevance, and for a fully received
// data frame decides destination match and whether to relay it.
func (r Router) Update(buf *buffer.Buffer) error {
	if buf.IsMicroframe {
		if !buf.Relevant {
			buf.Relevant = r.IsRelevant(protocol.Hint(buf.SenderDistance))
		}
		return nil
	}

	dest, err := Destination(buf)
	if err != nil {
		return err
	}
	buf.DestinedToMe = dest.Contains(r.Location.Here(), r.Clock.Now())

	if buf.MyDistance < buf.SenderDistance {
		return r.forward(buf)
	}
	return nil
}

// forward allocates a fresh buffer carrying the same frame bytes and
// metadata as buf, recomputes its backoff Offset, and hands it to the
// MAC schedule, the same "copy then re-offset" relay original Router's
// update() performs inline.
func (r Router) forward(buf *buffer.Buffer) error {
	if r.Alloc == nil || r.Forward == nil {
		return nil
	}
	fwd, err := r.Alloc()
	if err != nil {
		return err
	}
	fwd.Data = append(fwd.Data[:0], buf.Bytes()...)
	fwd.Size = buf.Size
	fwd.ID = buf.ID
	fwd.Downlink = buf.Downlink
	fwd.DestinedToMe = buf.DestinedToMe
	fwd.Expiry = buf.Expiry
	fwd.OriginTime = buf.OriginTime
	fwd.MyDistance = buf.MyDistance
	fwd.SenderDistance = buf.SenderDistance
	fwd.IsNew = false
	fwd.IsMicroframe = false
	fwd.Offset = Offset(fwd.MyDistance, fwd.SenderDistance)

	r.Forward(fwd)
	return nil
}

// Offset computes the forwarding backoff: nodes sitting near the ideal
// next-hop ring (one RadioRange short of the sender's own distance to
// the destination) back off the least, so the contention window
// favors whichever relay makes the most geographic progress.
func Offset(myDistance, senderDistance int64) protocol.TimeOffset {
	d := myDistance - (senderDistance - protocol.RadioRange)
	if d < 0 {
		d = -d
	}
	return protocol.TimeOffset(d)
}
