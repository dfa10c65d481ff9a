package pipeline

import (
	"github.com/trustfulmesh/tstp/buffer"
)

// Timekeeper sets a buffer's Expiry from the destination Region's
// upper time bound: once the audience's time window has closed, the
// message is worthless and the MAC is free to drop it.
type Timekeeper struct{}

// Update sets buf.Expiry to the destination Region's T1.
func (Timekeeper) Update(buf *buffer.Buffer) error {
	dest, err := Destination(buf)
	if err != nil {
		return err
	}
	buf.Expiry = dest.T1
	return nil
}

// Marshal sets buf.Expiry the same way Update does, for an outbound buffer.
func (Timekeeper) Marshal(buf *buffer.Buffer) error {
	return Timekeeper{}.Update(buf)
}
