package pipeline

import (
	"github.com/trustfulmesh/tstp/buffer"
)

// Locator annotates a buffer with geographic distance: how far its
// last-hop sender is from the message's destination (read straight off
// the microframe's hint, for a microframe) or how far this node itself
// is (for a received data frame).
type Locator struct {
	Location LocationStrategy
}

// Update fills in SenderDistance (microframes, already carried the
// hint) or MyDistance (data frames, computed against the destination
// Region's center).
func (l Locator) Update(buf *buffer.Buffer) error {
	if buf.IsMicroframe {
		return nil // the MAC already copied the microframe's Hint into SenderDistance
	}
	dest, err := Destination(buf)
	if err != nil {
		return err
	}
	buf.MyDistance = l.Location.Here().Distance(dest.Center)
	return nil
}

// Marshal fills in MyDistance and SenderDistance for an outbound
// buffer, before the message has ever left this node: at that point
// sender and self are the same, so both distances match.
func (l Locator) Marshal(buf *buffer.Buffer) error {
	dest, err := Destination(buf)
	if err != nil {
		return err
	}
	buf.MyDistance = l.Location.Here().Distance(dest.Center)
	buf.SenderDistance = buf.MyDistance
	return nil
}
