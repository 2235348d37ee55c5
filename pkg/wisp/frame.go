package wisp

import (
	"encoding/binary"
	"fmt"
)

// Frame is one decoded protocol message.
type Frame struct {
	Type     PacketType
	StreamID uint32
	Payload  []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("%s[%d|%d bytes]", f.Type, f.StreamID, len(f.Payload))
}

// Decode parses one transport message into a frame. The payload aliases msg.
//
// Messages shorter than the header fail with ErrFormat. A frame with an
// undefined type is still returned, together with an error wrapping
// ErrUnknownType, so callers can log what they rejected.
func Decode(msg []byte) (Frame, error) {
	if len(msg) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrFormat, len(msg), HeaderSize)
	}

	f := Frame{
		Type:     PacketType(msg[0]),
		StreamID: binary.LittleEndian.Uint32(msg[1:5]),
		Payload:  msg[HeaderSize:],
	}
	if !f.Type.Known() {
		return f, fmt.Errorf("%w 0x%02x on stream %d", ErrUnknownType, uint8(f.Type), f.StreamID)
	}

	return f, nil
}

// Encode serializes any frame.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderSize+len(f.Payload))
	putHeader(out, f.Type, f.StreamID)
	copy(out[HeaderSize:], f.Payload)
	return out
}

// EncodeData builds a DATA frame. There is no length prefix.
func EncodeData(streamID uint32, payload []byte) []byte {
	return Encode(Frame{Type: PacketData, StreamID: streamID, Payload: payload})
}

// EncodeContinue builds a 9 byte CONTINUE frame granting credit.
func EncodeContinue(streamID, credit uint32) []byte {
	out := make([]byte, HeaderSize+4)
	putHeader(out, PacketContinue, streamID)
	binary.LittleEndian.PutUint32(out[HeaderSize:], credit)
	return out
}

// EncodeClose builds a CLOSE frame. Peers expect a fixed 9 byte frame, so the
// reason byte is followed by three zero bytes.
func EncodeClose(streamID uint32, reason CloseReason) []byte {
	out := make([]byte, HeaderSize+4)
	putHeader(out, PacketClose, streamID)
	out[HeaderSize] = byte(reason)
	return out
}

// DecodeContinue reads the credit of a CONTINUE payload.
func DecodeContinue(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%w: CONTINUE payload of %d bytes", ErrFormat, len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// DecodeClose reads the reason of a CLOSE payload; padding is ignored.
func DecodeClose(payload []byte) (CloseReason, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("%w: empty CLOSE payload", ErrFormat)
	}
	return CloseReason(payload[0]), nil
}

func putHeader(b []byte, t PacketType, streamID uint32) {
	b[0] = byte(t)
	binary.LittleEndian.PutUint32(b[1:HeaderSize], streamID)
}
