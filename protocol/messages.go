package protocol

import (
	"encoding/binary"
	"fmt"
)

// messageHeaderSize is the size, in bytes, of the fields Interest and
// Response carry right after their Region: a Unit, a precision/Error
// indicator, and a Mode byte. Command carries only the Unit there, and
// Control carries none of them.
const messageHeaderSize = 6

// Interest asks the network to advertise a Response from any node
// whose sensor matches Unit and whose position falls in Region,
// repeating every Period until Expiry.
type Interest struct {
	Region     Region
	Unit       Unit
	Mode       Mode
	Period     TimeOffset
	Expiry     Time
	Precision  Error
}

// InterestSize is Interest's fixed wire size.
const InterestSize = regionSize + messageHeaderSize + 8 + 8

// Marshal encodes i into an InterestSize-byte buffer.
func (i Interest) Marshal() []byte {
	buf := make([]byte, InterestSize)
	off := putRegion(buf, 0, i.Region)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(i.Unit))
	buf[off+4] = byte(i.Precision)
	buf[off+5] = byte(i.Mode)
	off += messageHeaderSize
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(i.Period))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(i.Expiry))
	return buf
}

// UnmarshalInterest decodes an Interest from buf.
func UnmarshalInterest(buf []byte) (Interest, error) {
	if len(buf) < InterestSize {
		return Interest{}, fmt.Errorf("protocol: short Interest, have %d want %d", len(buf), InterestSize)
	}
	var i Interest
	var off int
	i.Region, off = getRegion(buf, 0)
	i.Unit = Unit(binary.BigEndian.Uint32(buf[off : off+4]))
	i.Precision = Error(buf[off+4])
	i.Mode = Mode(buf[off+5])
	off += messageHeaderSize
	i.Period = TimeOffset(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	i.Expiry = Time(binary.BigEndian.Uint64(buf[off : off+8]))
	return i, nil
}

// Response carries a single reading back to whoever expressed the
// matching Interest. It echoes the Interest's own Region so the
// network pipeline can route it by distance the same way it routes an
// Interest, without needing to track per-flow reverse paths.
type Response struct {
	Region    Region
	Unit      Unit
	Precision Error
	Mode      Mode
	Value     Value
	Format    NumericFormat
}

// ResponseSize is Response's fixed wire size: an echoed Region, the
// message header, and an 8-byte Value slot wide enough for the
// largest NumericFormat.
const ResponseSize = regionSize + messageHeaderSize + 8

// Marshal encodes r into a ResponseSize-byte buffer. The Value is
// written using r.Format so only the matching bytes carry meaning.
func (r Response) Marshal() []byte {
	buf := make([]byte, ResponseSize)
	off := putRegion(buf, 0, r.Region)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(r.Unit))
	buf[off+4] = byte(r.Precision)
	buf[off+5] = byte(r.Mode)
	off += messageHeaderSize
	putValue(buf[off:], r.Format, r.Value)
	return buf
}

// UnmarshalResponse decodes a Response from buf, reading its Value
// under format (the Unit's NumericFormat, known to the caller from
// context since Units aren't self-describing about Value width).
func UnmarshalResponse(buf []byte, format NumericFormat) (Response, error) {
	if len(buf) < ResponseSize {
		return Response{}, fmt.Errorf("protocol: short Response, have %d want %d", len(buf), ResponseSize)
	}
	var r Response
	var off int
	r.Region, off = getRegion(buf, 0)
	r.Unit = Unit(binary.BigEndian.Uint32(buf[off : off+4]))
	r.Precision = Error(buf[off+4])
	r.Mode = Mode(buf[off+5])
	off += messageHeaderSize
	r.Format = format
	r.Value = getValue(buf[off:], format)
	return r, nil
}

// Command directly actuates every Responsive node within Region whose
// actuator matches Unit, carrying the actuation Value.
type Command struct {
	Region Region
	Unit   Unit
	Value  Value
	Format NumericFormat
}

// CommandSize is Command's fixed wire size.
const CommandSize = regionSize + 4 + 8

// Marshal encodes c into a CommandSize-byte buffer.
func (c Command) Marshal() []byte {
	buf := make([]byte, CommandSize)
	off := putRegion(buf, 0, c.Region)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(c.Unit))
	off += 4
	putValue(buf[off:], c.Format, c.Value)
	return buf
}

// UnmarshalCommand decodes a Command from buf.
func UnmarshalCommand(buf []byte, format NumericFormat) (Command, error) {
	if len(buf) < CommandSize {
		return Command{}, fmt.Errorf("protocol: short Command, have %d want %d", len(buf), CommandSize)
	}
	var c Command
	var off int
	c.Region, off = getRegion(buf, 0)
	c.Unit = Unit(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	c.Format = format
	c.Value = getValue(buf[off:], format)
	return c, nil
}

// ControlSubtype distinguishes the kinds of protocol-maintenance
// traffic Control carries.
type ControlSubtype uint8

const (
	// ControlKeepAlive refreshes an advertised Interested/Responsive's
	// lease without resending its full Interest/Response payload.
	ControlKeepAlive ControlSubtype = 0
	// ControlRevoke withdraws a previously advertised Interested or
	// Responsive binding, identified by FrameID.
	ControlRevoke ControlSubtype = 1
)

// Control carries protocol bookkeeping, not application data: keeping
// a binding alive or revoking one advertised earlier.
type Control struct {
	Subtype ControlSubtype
	Target  FrameID
}

// ControlSize is Control's fixed wire size.
const ControlSize = 1 + 2

// Marshal encodes c into a ControlSize-byte buffer.
func (c Control) Marshal() []byte {
	buf := make([]byte, ControlSize)
	buf[0] = byte(c.Subtype)
	binary.BigEndian.PutUint16(buf[1:3], uint16(c.Target))
	return buf
}

// UnmarshalControl decodes a Control from buf.
func UnmarshalControl(buf []byte) (Control, error) {
	if len(buf) < ControlSize {
		return Control{}, fmt.Errorf("protocol: short Control, have %d want %d", len(buf), ControlSize)
	}
	return Control{
		Subtype: ControlSubtype(buf[0]),
		Target:  FrameID(binary.BigEndian.Uint16(buf[1:3])),
	}, nil
}

// PeekUnit reads the Unit field shared by Interest, Response, and
// Command payloads, all of which place it immediately after the
// Region, without needing a NumericFormat the way a full Response
// decode does. The dispatcher uses this to learn a Response's Unit
// (and thus its Format) before it can decode the Value that follows.
func PeekUnit(payload []byte, msgType Type) (Unit, error) {
	switch msgType {
	case Interest, Response, Command:
		if len(payload) < regionSize+4 {
			return 0, fmt.Errorf("protocol: short %s payload, have %d bytes", msgType, len(payload))
		}
		return Unit(binary.BigEndian.Uint32(payload[regionSize : regionSize+4])), nil
	default:
		return 0, fmt.Errorf("protocol: message type %v carries no Unit", msgType)
	}
}

// regionSize is Region's fixed wire size: a 3-axis center at CM32
// width (the widest scale, since Region travels inside message
// payloads independent of the enclosing Header's Scale), a radius, and
// two timestamps.
const regionSize = 3*4 + 8 + 8 + 8

func putRegion(buf []byte, off int, r Region) int {
	off = putCoordinates(buf[off:], 0, r.Center, CM32) + off
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Radius))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.T0))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.T1))
	return off + 8
}

func getRegion(buf []byte, off int) (Region, int) {
	var r Region
	var localOff int
	r.Center, localOff = getCoordinates(buf[off:], 0, CM32)
	off += localOff
	r.Radius = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.T0 = Time(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	r.T1 = Time(binary.BigEndian.Uint64(buf[off : off+8]))
	return r, off + 8
}

func putValue(buf []byte, format NumericFormat, v Value) {
	switch format {
	case FormatI32:
		binary.BigEndian.PutUint32(buf[0:4], uint32(v.I32))
	case FormatI64:
		binary.BigEndian.PutUint64(buf[0:8], uint64(v.I64))
	case FormatF32:
		binary.BigEndian.PutUint32(buf[0:4], float32bits(v.F32))
	default:
		binary.BigEndian.PutUint64(buf[0:8], float64bits(v.D64))
	}
}

func getValue(buf []byte, format NumericFormat) Value {
	switch format {
	case FormatI32:
		return Value{I32: int32(binary.BigEndian.Uint32(buf[0:4]))}
	case FormatI64:
		return Value{I64: int64(binary.BigEndian.Uint64(buf[0:8]))}
	case FormatF32:
		return Value{F32: float32frombits(binary.BigEndian.Uint32(buf[0:4]))}
	default:
		return Value{D64: float64frombits(binary.BigEndian.Uint64(buf[0:8]))}
	}
}
