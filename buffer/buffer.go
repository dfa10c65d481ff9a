// Package buffer implements the fixed-size packet buffers the MAC
// layer allocates, annotates with per-packet metadata as it moves
// through the radio and the network pipeline, and schedules for
// transmission by earliest expiry.
package buffer

import (
	"github.com/trustfulmesh/tstp/protocol"
)

// Buffer is one NIC-sized packet buffer together with the metadata the
// MAC and the network pipeline attach to it in flight: when it arrived,
// whether it is a retransmission candidate, how far away its sender
// and this node are from its destination, and when it expires.
type Buffer struct {
	// Data holds the raw frame bytes, Microframe or data frame
	// depending on IsMicroframe.
	Data []byte
	// Size is the number of valid bytes in Data.
	Size int

	// SFDTimeStamp is when the radio's start-frame-delimiter interrupt
	// fired for this buffer, the most precise timestamp available.
	SFDTimeStamp protocol.Time
	// ID identifies the data frame this buffer carries or precedes.
	ID protocol.FrameID
	// Downlink is true if this buffer's destination Region is centered
	// on the Sink, i.e. the message travels toward the sink.
	Downlink bool
	// IsNew is true until the MAC has processed this buffer once.
	IsNew bool
	// IsMicroframe is true while Data holds a Microframe rather than a
	// full data frame.
	IsMicroframe bool
	// Relevant is set once the pipeline decides this node should act on
	// or forward the buffer.
	Relevant bool
	// Trusted is set once Security has accepted the buffer's
	// authenticity, if a Security plug is configured.
	Trusted bool
	// DestinedToMe is set once Router decides this node is within the
	// message's Region.
	DestinedToMe bool
	// SenderDistance is the distance, in the header's Scale, from the
	// buffer's last-hop sender to the message's target Region.
	SenderDistance int64
	// MyDistance is this node's own distance to the message's target Region.
	MyDistance int64
	// Expiry is the absolute deadline by which this buffer must be sent
	// or dropped.
	Expiry protocol.Time
	// OriginTime is the origin timestamp carried in the frame header.
	OriginTime protocol.Time
	// Offset is the computed forwarding backoff: how far this node sits
	// from the ideal next-hop ring, one RadioRange closer to the target
	// than the sender.
	Offset protocol.TimeOffset

	// heapIndex is maintained by container/heap; callers never set it.
	heapIndex int
}

// Reset clears a Buffer's metadata and truncates Data to zero length,
// readying it for reuse from a Pool.
func (b *Buffer) Reset() {
	*b = Buffer{Data: b.Data[:0], heapIndex: b.heapIndex}
}

// Bytes returns the valid portion of Data.
func (b *Buffer) Bytes() []byte { return b.Data[:b.Size] }

// Schedule is a min-heap of Buffers ordered by Expiry, the TX schedule
// the MAC consults to find the next frame due for transmission. It
// replaces the original's linked-list scan for the earliest deadline
// with an O(log n) ordered container.
type Schedule []*Buffer

func (s Schedule) Len() int { return len(s) }

func (s Schedule) Less(i, j int) bool { return s[i].Expiry < s[j].Expiry }

func (s Schedule) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].heapIndex = i
	s[j].heapIndex = j
}

func (s *Schedule) Push(x any) {
	b := x.(*Buffer)
	b.heapIndex = len(*s)
	*s = append(*s, b)
}

func (s *Schedule) Pop() any {
	old := *s
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.heapIndex = -1
	*s = old[:n-1]
	return b
}
