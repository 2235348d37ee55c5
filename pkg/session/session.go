// Package session runs the Wisp protocol for one transport connection.
//
// A session owns a stream table. Inbound frames open, feed and close streams;
// events of the streams' sockets are turned into outbound frames. Any
// malformed frame ends the whole session, since framing cannot be trusted
// afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Astatine-Development/uWisp-Server/pkg/bridge"
	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/stream"
	"github.com/Astatine-Development/uWisp-Server/pkg/wisp"

	"github.com/jpillora/sizestr"
)

// Transport delivers whole binary messages to the peer.
type Transport interface {
	// Send delivers msg as one message.
	Send(msg []byte) error
	Close() error
	IsOpen() bool
}

// Session is the protocol state of one transport connection.
type Session struct {
	name    string
	t       Transport
	cfg     *config.Server
	bridges *bridge.Set
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex

	mu     sync.Mutex
	table  *stream.Table
	closed bool
}

// New creates a session for t. name identifies it in logs.
func New(ctx context.Context, name string, t Transport, cfg *config.Server, bridges *bridge.Set) *Session {
	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		name:    name,
		t:       t,
		cfg:     cfg,
		bridges: bridges,
		logger:  cfg.Logger,
		ctx:     sctx,
		cancel:  cancel,
		table:   stream.NewTable(),
	}
}

// Open announces the initial credit on the control stream.
func (s *Session) Open() {
	s.send(wisp.EncodeContinue(wisp.ControlStreamID, stream.InitialCredit))
}

// HandleMessage processes one binary message from the peer. The payload is
// handed to sockets without copying, so msg must not be reused by the caller.
//
// A non-nil error means the session was torn down and the caller should
// stop reading.
func (s *Session) HandleMessage(msg []byte) (err error) {
	if s.Closed() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatching frame: %v", r)
		}
		if err != nil {
			_ = s.Close()
		}
	}()

	f, err := wisp.Decode(msg)
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}

	return s.dispatch(f)
}

func (s *Session) dispatch(f wisp.Frame) error {
	switch f.Type {
	case wisp.PacketConnect:
		return s.handleConnect(f)
	case wisp.PacketData:
		s.handleData(f)
	case wisp.PacketClose:
		s.handleClose(f)
	case wisp.PacketContinue:
		// only the server grants credit
	}
	return nil
}

func (s *Session) handleConnect(f wisp.Frame) error {
	c, err := wisp.DecodeConnect(f.Payload)
	if err != nil {
		return fmt.Errorf("stream %d: %w", f.StreamID, err)
	}

	s.logger.VerboseMsg("Session %s: stream %d connecting to %s", s.name, f.StreamID, c)

	switch c.StreamType {
	case wisp.StreamTCP:
		if !s.cfg.AllowTCP {
			s.refuse(f.StreamID, c)
			return nil
		}
		s.bridges.TCP.Open(s.ctx, c.Hostname, c.Port, s.handler(f.StreamID))
	case wisp.StreamUDP:
		if !s.cfg.AllowUDP {
			s.refuse(f.StreamID, c)
			return nil
		}
		s.bridges.UDP.Open(s.ctx, c.Hostname, c.Port, s.handler(f.StreamID))
	default:
		s.logger.VerboseMsg("Session %s: stream %d ignored, unsupported stream type %s", s.name, f.StreamID, c.StreamType)
	}

	return nil
}

func (s *Session) refuse(id uint32, c wisp.ConnectPayload) {
	s.logger.VerboseMsg("Session %s: stream %d refused, %s streams are disabled", s.name, id, c.StreamType)
	s.send(wisp.EncodeClose(id, wisp.CloseError))
}

func (s *Session) handleData(f wisp.Frame) {
	s.mu.Lock()
	e, ok := s.table.Get(f.StreamID)
	if !ok {
		s.mu.Unlock()
		return
	}
	sock := e.Socket
	_, exhausted, _ := s.table.ConsumeCredit(f.StreamID)
	s.mu.Unlock()

	// A full queue fails the socket, which then closes only this stream.
	if err := sock.Write(f.Payload); err != nil {
		s.logger.VerboseMsg("Session %s: stream %d: %s", s.name, f.StreamID, err)
		return
	}

	if exhausted {
		// The next window is granted once the target took this one.
		id := f.StreamID
		_ = sock.AfterWrites(func() {
			s.sendOwned(id, sock, wisp.EncodeContinue(id, stream.InitialCredit))
		})
	}
}

func (s *Session) handleClose(f wisp.Frame) {
	// removed under sendMu, so no stream frame can follow
	s.sendMu.Lock()
	s.mu.Lock()
	e, ok := s.table.Remove(f.StreamID)
	s.mu.Unlock()
	s.sendMu.Unlock()
	if !ok {
		return
	}

	_ = e.Socket.Close()

	reason := "unknown"
	if r, err := wisp.DecodeClose(f.Payload); err == nil {
		reason = r.String()
	}
	s.logClosed(e, "closed by peer ("+reason+")")
}

func (s *Session) handler(id uint32) bridge.Handler {
	return func(ev bridge.Event) {
		s.handleEvent(id, ev)
	}
}

// handleEvent turns a socket event into frames and table updates.
func (s *Session) handleEvent(id uint32, ev bridge.Event) {
	sock := ev.Socket

	if ev.Kind.Terminal() {
		s.finishStream(id, ev)
		return
	}

	switch ev.Kind {
	case bridge.EventOpen:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = sock.Close()
			return
		}
		if old, ok := s.table.Get(id); ok {
			_ = old.Socket.Close()
			s.logger.VerboseMsg("Session %s: stream %d replaced by a new CONNECT", s.name, id)
		}
		s.table.Insert(id, sock.Kind(), sock, sock.Target())
		s.mu.Unlock()

	case bridge.EventConnect:
		if s.sendOwned(id, sock, wisp.EncodeContinue(id, stream.InitialCredit)) {
			s.logger.VerboseMsg("Session %s: stream %d connected to %s", s.name, id, sock.Target())
		}

	case bridge.EventData:
		s.sendOwned(id, sock, wisp.EncodeData(id, ev.Data))
	}
}

// finishStream removes a stream whose socket ended and reports it with the
// matching CLOSE.
func (s *Session) finishStream(id uint32, ev bridge.Event) {
	sock := ev.Socket

	reason, how := wisp.CloseNormal, "closed by target"
	if ev.Kind == bridge.EventError {
		reason, how = wisp.CloseError, fmt.Sprintf("failed: %s", ev.Err)
	}

	s.sendMu.Lock()
	s.mu.Lock()
	e, ok := s.table.RemoveIf(id, sock)
	s.mu.Unlock()
	if ok {
		s.sendLocked(wisp.EncodeClose(id, reason))
	}
	s.sendMu.Unlock()
	if !ok {
		return
	}

	s.logClosed(e, how)
	_ = sock.Close()
}

// sendOwned sends msg if sock still owns stream id, and reports whether it
// did. A frame sent this way never follows a CLOSE for the stream.
func (s *Session) sendOwned(id uint32, sock stream.Socket, msg []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.owns(id, sock) {
		return false
	}
	s.sendLocked(msg)
	return true
}

func (s *Session) owns(id uint32, sock stream.Socket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Get(id)
	return ok && e.Socket == sock
}

// send delivers one frame. Delivery is best effort: once the transport is
// gone the session is being torn down anyway.
func (s *Session) send(msg []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.sendLocked(msg)
}

func (s *Session) sendLocked(msg []byte) {
	if !s.t.IsOpen() {
		return
	}
	if err := s.t.Send(msg); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.VerboseMsg("Session %s: dropping frame: %s", s.name, err)
	}
}

func (s *Session) logClosed(e *stream.Entry, how string) {
	if !s.logger.Verbose() {
		return
	}

	msg := fmt.Sprintf("Session %s: stream %d (%s %s) %s", s.name, e.ID, e.Kind, e.Target, how)
	if sock, ok := e.Socket.(*bridge.Socket); ok {
		sent, received := sock.Stats()
		msg += fmt.Sprintf(", sent %s, received %s", sizestr.ToString(sent), sizestr.ToString(received))
	}
	s.logger.VerboseMsg("%s", msg)
}

// Close tears the session down: every socket is closed, the table is
// cleared and the transport is closed. Pending dials and lookups are
// cancelled and can no longer register streams. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.table.Drain()
	s.mu.Unlock()

	s.cancel()
	for _, e := range entries {
		_ = e.Socket.Close()
	}
	if len(entries) > 0 {
		s.logger.VerboseMsg("Session %s: closed %d streams", s.name, len(entries))
	}

	return s.t.Close()
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Streams returns the number of live streams.
func (s *Session) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Len()
}

// Has reports whether stream id is live.
func (s *Session) Has(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.table.Get(id)
	return ok
}
