package wisp

import (
	"encoding/binary"
	"fmt"

	"github.com/Astatine-Development/uWisp-Server/pkg/format"
)

// ConnectPayload is the payload of a CONNECT frame:
//
//	+-------------+--------+----------+
//	| STREAM TYPE |  PORT  | HOSTNAME |
//	+-------------+--------+----------+
//	|      1      | 2 (LE) | Variable |
//	+-------------+--------+----------+
type ConnectPayload struct {
	StreamType StreamType
	Port       uint16
	Hostname   string
}

// Addr is the dialable host:port of the target.
func (c ConnectPayload) Addr() string {
	return format.Addr(c.Hostname, c.Port)
}

func (c ConnectPayload) String() string {
	return fmt.Sprintf("%s://%s", c.StreamType, c.Addr())
}

// DecodeConnect parses a CONNECT payload. The hostname is taken verbatim;
// whether it names a reachable host is only discovered when dialing.
func DecodeConnect(payload []byte) (ConnectPayload, error) {
	if len(payload) < 3 {
		return ConnectPayload{}, fmt.Errorf("%w: CONNECT payload of %d bytes, need at least 3", ErrFormat, len(payload))
	}

	return ConnectPayload{
		StreamType: StreamType(payload[0]),
		Port:       binary.LittleEndian.Uint16(payload[1:3]),
		Hostname:   string(payload[3:]),
	}, nil
}

// EncodeConnect serializes a CONNECT payload.
func EncodeConnect(c ConnectPayload) []byte {
	out := make([]byte, 3+len(c.Hostname))
	out[0] = byte(c.StreamType)
	binary.LittleEndian.PutUint16(out[1:3], c.Port)
	copy(out[3:], c.Hostname)
	return out
}

// EncodeConnectFrame builds a complete CONNECT frame.
func EncodeConnectFrame(streamID uint32, c ConnectPayload) []byte {
	return Encode(Frame{Type: PacketConnect, StreamID: streamID, Payload: EncodeConnect(c)})
}
