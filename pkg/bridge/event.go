// Package bridge connects streams to real TCP and UDP sockets. Each socket
// reports what happens to it as a sequence of events: one EventOpen when it
// can be registered, EventConnect once the target is reachable, EventData per
// chunk or datagram in arrival order, and at most one terminal EventClose or
// EventError. Sockets closed locally report nothing further.
package bridge

import "fmt"

// EventKind tags an Event.
type EventKind uint8

// Socket events.
const (
	EventOpen EventKind = iota + 1
	EventConnect
	EventData
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventConnect:
		return "connect"
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Terminal reports whether no further events follow k.
func (k EventKind) Terminal() bool {
	return k == EventError || k == EventClose
}

// Event is one occurrence on a socket.
type Event struct {
	Kind   EventKind
	Socket *Socket
	Data   []byte // EventData only
	Err    error  // EventError only
}

// Handler consumes the events of a socket. Events of one socket are delivered
// sequentially; handlers of different sockets run concurrently.
type Handler func(Event)
