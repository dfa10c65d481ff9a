package protocol

import "fmt"

// MTU is the largest TSTP payload a Frame carries after its Header,
// chosen to leave room for an IEEE 802.15.4 frame's own overhead.
const MTU = 100

// Frame is a Header followed by up to MTU bytes of payload: a message
// encoded by Interest, Response, Command, or Control.
type Frame struct {
	Header  Header
	Payload []byte
}

// Marshal encodes f as Header bytes followed by Payload. Payload must
// already fit within MTU; Marshal does not truncate it.
func (f Frame) Marshal() ([]byte, error) {
	if len(f.Payload) > MTU {
		return nil, fmt.Errorf("protocol: payload of %d bytes exceeds MTU %d", len(f.Payload), MTU)
	}
	hdr := f.Header.Marshal()
	buf := make([]byte, len(hdr)+len(f.Payload))
	copy(buf, hdr)
	copy(buf[len(hdr):], f.Payload)
	return buf, nil
}

// UnmarshalFrame decodes a Header from the front of buf and treats the
// remainder as Payload.
func UnmarshalFrame(buf []byte) (Frame, error) {
	h, err := UnmarshalHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	size := HeaderSize(h.Scale)
	return Frame{Header: h, Payload: buf[size:]}, nil
}
