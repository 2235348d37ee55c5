// Package wisp implements the binary frame format of the Wisp protocol.
//
// Every message carried by the transport is exactly one frame:
//
//	+------+-----------+-----------------+
//	| TYPE | STREAM ID |     PAYLOAD     |
//	+------+-----------+-----------------+
//	|  1   |  4 (LE)   |    Variable     |
//	+------+-----------+-----------------+
//
// The payload length is implied by the message boundary. Stream ID 0 is
// reserved for the session itself and only ever carries the initial CONTINUE.
package wisp

import (
	"errors"
	"fmt"
)

// HeaderSize is the length of the type and stream ID prefix of every frame.
const HeaderSize = 5

// ControlStreamID addresses the session rather than a stream.
const ControlStreamID uint32 = 0

// PacketType identifies what a frame carries.
type PacketType uint8

// Frame types.
const (
	PacketConnect  PacketType = 0x01
	PacketData     PacketType = 0x02
	PacketContinue PacketType = 0x03
	PacketClose    PacketType = 0x04
)

// Known reports whether t is one of the four defined frame types.
func (t PacketType) Known() bool {
	return t >= PacketConnect && t <= PacketClose
}

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketData:
		return "DATA"
	case PacketContinue:
		return "CONTINUE"
	case PacketClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(t))
	}
}

// StreamType selects the kind of outbound socket a CONNECT asks for.
type StreamType uint8

// Stream types.
const (
	StreamTCP StreamType = 0x01
	StreamUDP StreamType = 0x02
)

func (t StreamType) String() string {
	switch t {
	case StreamTCP:
		return "tcp"
	case StreamUDP:
		return "udp"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// CloseReason is the single reason byte of a CLOSE frame.
type CloseReason uint8

// Close reasons.
const (
	CloseNormal CloseReason = 0x02
	CloseError  CloseReason = 0x03
)

func (r CloseReason) String() string {
	switch r {
	case CloseNormal:
		return "normal"
	case CloseError:
		return "error"
	default:
		return fmt.Sprintf("reason(0x%02x)", uint8(r))
	}
}

// ErrFormat marks a malformed frame, header or payload. Framing cannot be
// trusted after one, so sessions treat it as fatal.
var ErrFormat = errors.New("malformed wisp frame")

// ErrUnknownType is returned for frames whose type byte is not defined.
// It wraps ErrFormat.
var ErrUnknownType = fmt.Errorf("%w: unknown packet type", ErrFormat)
