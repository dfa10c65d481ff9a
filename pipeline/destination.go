package pipeline

import (
	"fmt"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/protocol"
)

// Destination extracts the Region a buffer's payload is addressed to.
// Interest, Response, and Command all carry a Region at a fixed offset
// in their payload; Control carries none, since it targets a specific
// previously-advertised binding by FrameID rather than a place.
func Destination(buf *buffer.Buffer) (protocol.Region, error) {
	frame, err := protocol.UnmarshalFrame(buf.Bytes())
	if err != nil {
		return protocol.Region{}, err
	}
	switch frame.Header.Type {
	case protocol.Interest:
		msg, err := protocol.UnmarshalInterest(frame.Payload)
		if err != nil {
			return protocol.Region{}, err
		}
		return msg.Region, nil
	case protocol.Response:
		msg, err := protocol.UnmarshalResponse(frame.Payload, protocol.FormatD64)
		if err != nil {
			return protocol.Region{}, err
		}
		return msg.Region, nil
	case protocol.Command:
		msg, err := protocol.UnmarshalCommand(frame.Payload, protocol.FormatD64)
		if err != nil {
			return protocol.Region{}, err
		}
		return msg.Region, nil
	default:
		return protocol.Region{}, fmt.Errorf("pipeline: message type %v carries no routable region", frame.Header.Type)
	}
}
