package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header is the TSTP data-frame header: a version/type/scale config
// byte, a confidence indicator, and the origin and last-hop
// time/coordinate tuples used by the network pipeline. Its wire size
// depends on Scale, since Scale picks each coordinate axis's width.
type Header struct {
	Type         Type
	Scale        Scale
	Confidence   Error
	OriginTime   Time
	Origin       Coordinates
	LastHopTime  Time
	LastHop      Coordinates
}

const (
	configVersionShift = 4
	configTypeMask     = 0x0c
	configTypeShift    = 2
	configScaleMask    = 0x03
)

// HeaderSize returns the wire size of a Header encoded at the given
// Scale: 1 config byte, 1 confidence byte, two 8-byte timestamps, and
// two coordinate triples whose axis width is Scale.Width().
func HeaderSize(s Scale) int {
	return 2 + 8 + 8 + 2*3*s.Width()
}

// Marshal encodes h into a HeaderSize(h.Scale)-byte buffer.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize(h.Scale))
	h.MarshalTo(buf)
	return buf
}

// MarshalTo encodes h into buf, which must be at least
// HeaderSize(h.Scale) bytes long.
func (h Header) MarshalTo(buf []byte) {
	buf[0] = Version<<configVersionShift | uint8(h.Type)<<configTypeShift&configTypeMask | uint8(h.Scale)&configScaleMask
	buf[1] = byte(h.Confidence)
	binary.BigEndian.PutUint64(buf[2:10], uint64(h.OriginTime))
	off := 10
	off = putCoordinates(buf, off, h.Origin, h.Scale)
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(h.LastHopTime))
	off += 8
	putCoordinates(buf, off, h.LastHop, h.Scale)
}

// PatchLastHopTime overwrites the LastHopTime field of an
// already-marshaled frame in place, without touching anything else.
// The MAC uses this to stamp the moment the data frame will actually
// hit the air, known only after its microframe train has finished, well
// after the frame bytes were first assembled.
func PatchLastHopTime(buf []byte, scale Scale, t Time) {
	off := 10 + 3*scale.Width()
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(t))
}

// UnmarshalHeader decodes a Header from buf. It reads the Scale from
// the config byte first to know how wide the coordinate fields are,
// then requires len(buf) to cover HeaderSize(scale).
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < 2 {
		return Header{}, fmt.Errorf("protocol: short header, have %d bytes", len(buf))
	}
	scale := Scale(buf[0] & configScaleMask)
	size := HeaderSize(scale)
	if len(buf) < size {
		return Header{}, fmt.Errorf("protocol: short header for scale %s, want %d have %d", scale, size, len(buf))
	}
	h := Header{
		Type:       Type(buf[0] & configTypeMask >> configTypeShift),
		Scale:      scale,
		Confidence: Error(buf[1]),
		OriginTime: Time(binary.BigEndian.Uint64(buf[2:10])),
	}
	off := 10
	h.Origin, off = getCoordinates(buf, off, scale)
	h.LastHopTime = Time(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	h.LastHop, _ = getCoordinates(buf, off, scale)
	return h, nil
}

// putCoordinates writes c's three axes at off, each sized per scale,
// and returns the offset past the written bytes.
func putCoordinates(buf []byte, off int, c Coordinates, scale Scale) int {
	w := scale.Width()
	putAxis(buf[off:off+w], c.X, w)
	off += w
	putAxis(buf[off:off+w], c.Y, w)
	off += w
	putAxis(buf[off:off+w], c.Z, w)
	return off + w
}

// getCoordinates reads three scale-sized axes at off and returns the
// offset past the bytes read.
func getCoordinates(buf []byte, off int, scale Scale) (Coordinates, int) {
	w := scale.Width()
	var c Coordinates
	c.X = getAxis(buf[off:off+w], w)
	off += w
	c.Y = getAxis(buf[off:off+w], w)
	off += w
	c.Z = getAxis(buf[off:off+w], w)
	return c, off + w
}

func putAxis(buf []byte, v int64, width int) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(v))
	}
}

func getAxis(buf []byte, width int) int64 {
	switch width {
	case 1:
		return int64(int8(buf[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(buf)))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(buf)))
	default:
		return 0
	}
}
