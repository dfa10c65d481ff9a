package protocol

import "encoding/binary"

// MicroframeSize is the wire size of a Microframe in bytes: a 2-byte
// flags word (all-listen + count + high id bits), a 1-byte low id
// byte, a 4-byte hint, and a 2-byte CRC.
const MicroframeSize = 9

// MaxMFCount is the largest value the 11-bit countdown field can hold.
const MaxMFCount = 1<<11 - 1

// Microframe is the short preamble element a transmitter repeats NMF
// times before the data frame, so listeners can decide in one CCA
// sample whether a transmission is relevant to them without waking for
// the full frame.
type Microframe struct {
	// AllListen asks every node to stay awake for the data frame that
	// follows, bypassing the hint-based relevance check. The MAC sets it
	// from the buffer's Downlink flag (destination centered on the Sink).
	AllListen bool
	// Count is the number of microframes still to be sent before the
	// data frame, so a listener can compute how long to keep sampling.
	Count uint16
	// ID identifies the data frame this microframe train precedes, so a
	// listener already mid-reception of the same ID can ignore repeats.
	ID FrameID
	// Hint carries the sender's distance to the frame's destination, so
	// a listener that is farther away can go back to sleep immediately.
	Hint Hint
}

// Marshal encodes mf into a MicroframeSize-byte buffer, CRC included.
func (mf Microframe) Marshal() []byte {
	buf := make([]byte, MicroframeSize)
	mf.MarshalTo(buf)
	return buf
}

// MarshalTo encodes mf into buf, which must be at least MicroframeSize
// bytes long.
func (mf Microframe) MarshalTo(buf []byte) {
	_ = buf[MicroframeSize-1]

	flags := uint16(mf.Count&MaxMFCount) << 4
	flags |= uint16(mf.ID>>8) & 0xf
	if mf.AllListen {
		flags |= 1 << 15
	}
	binary.BigEndian.PutUint16(buf[0:2], flags)
	buf[2] = byte(mf.ID & 0xff)
	binary.BigEndian.PutUint32(buf[3:7], uint32(mf.Hint))
	binary.BigEndian.PutUint16(buf[7:9], crc16(buf[0:7]))
}

// UnmarshalMicroframe decodes a Microframe from buf, which must be at
// least MicroframeSize bytes long, and reports whether its CRC is valid.
func UnmarshalMicroframe(buf []byte) (mf Microframe, ok bool) {
	if len(buf) < MicroframeSize {
		return Microframe{}, false
	}
	want := binary.BigEndian.Uint16(buf[7:9])
	if crc16(buf[0:7]) != want {
		return Microframe{}, false
	}
	flags := binary.BigEndian.Uint16(buf[0:2])
	mf.AllListen = flags&(1<<15) != 0
	mf.Count = (flags >> 4) & MaxMFCount
	idHigh := FrameID(flags&0xf) << 8
	mf.ID = idHigh | FrameID(buf[2])
	mf.Hint = Hint(binary.BigEndian.Uint32(buf[3:7]))
	return mf, true
}

// crc16 computes the CCITT CRC-16 used to guard the Microframe fields,
// the same polynomial the data frame trailer uses.
func crc16(data []byte) uint16 {
	const poly = 0x1021
	crc := uint16(0xffff)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
