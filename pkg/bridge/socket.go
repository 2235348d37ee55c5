package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Astatine-Development/uWisp-Server/pkg/stream"
	"github.com/Astatine-Development/uWisp-Server/pkg/wisp"
)

var (
	// ErrClosed is returned when writing to a socket that is gone.
	ErrClosed = errors.New("socket closed")
	// ErrQueueFull is returned when a write finds the queue full. The socket
	// fails with it and reports EventError.
	ErrQueueFull = errors.New("write queue full")
)

// queueSize holds two credit windows: a peer may start the next window as
// soon as the CONTINUE for the previous one is out.
const queueSize = 2 * int(stream.InitialCredit)

// Socket is the outbound side of one stream. Writes are queued and sent by a
// dedicated goroutine, so writing never waits for a slow or still connecting
// target. A write that finds the queue full fails the socket instead.
type Socket struct {
	kind    wisp.StreamType
	target  string
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	queue    chan write
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	conn    net.Conn
	closed  bool  // closed locally, events are suppressed
	failErr error // first write error, reported instead of the read error

	sent     atomic.Int64
	received atomic.Int64
}

// write is one queued item: a payload, or a callback run once every payload
// queued before it has reached the target.
type write struct {
	p    []byte
	done func()
}

func newSocket(ctx context.Context, kind wisp.StreamType, target string, h Handler) *Socket {
	sctx, cancel := context.WithCancel(ctx)
	return &Socket{
		kind:    kind,
		target:  target,
		handler: h,
		ctx:     sctx,
		cancel:  cancel,
		queue:   make(chan write, queueSize),
		done:    make(chan struct{}),
	}
}

// Kind returns whether this is a TCP or UDP socket.
func (s *Socket) Kind() wisp.StreamType {
	return s.kind
}

// Target returns the host:port the socket connects to.
func (s *Socket) Target() string {
	return s.target
}

// Stats returns the bytes written to and read from the target so far.
func (s *Socket) Stats() (sent, received int64) {
	return s.sent.Load(), s.received.Load()
}

// Write queues p to be sent to the target. For UDP sockets every call is one
// datagram. p must not be modified afterwards. Write never blocks; if the
// queue is full the socket fails with ErrQueueFull.
func (s *Socket) Write(p []byte) error {
	return s.enqueue(write{p: p})
}

// AfterWrites runs fn on the writer goroutine once everything queued so far
// has been written to the target. fn never runs if the socket ends first.
func (s *Socket) AfterWrites(fn func()) error {
	return s.enqueue(write{done: fn})
}

func (s *Socket) enqueue(w write) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.queue <- w:
		return nil
	default:
	}

	err := fmt.Errorf("%w: %d writes pending for %s", ErrQueueFull, len(s.queue), s.target)
	s.abort(err)
	return err
}

// Close terminates the socket. It is safe to call more than once, and no
// events are delivered after it returns.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.shutdown()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Socket) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr != nil
}

func (s *Socket) shutdown() {
	s.doneOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// attach hands the established connection to the socket. It returns false,
// and closes conn, if the socket was closed or failed in the meantime. A
// failed socket reports its error first.
func (s *Socket) attach(conn net.Conn) bool {
	s.mu.Lock()
	closed, failErr := s.closed, s.failErr
	if !closed && failErr == nil {
		s.conn = conn
	}
	s.mu.Unlock()

	if closed || failErr != nil {
		_ = conn.Close()
		if !closed {
			s.finish(failErr)
		}
		return false
	}
	return true
}

func (s *Socket) emit(ev Event) {
	if s.isClosed() {
		return
	}
	ev.Socket = s
	s.handler(ev)
}

// pump relays the target's output as events until the connection ends.
func (s *Socket) pump(conn net.Conn, bufSize int) {
	go s.drain(conn)

	buf := make([]byte, bufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.received.Add(int64(n))
			s.emit(Event{Kind: EventData, Data: chunk})
		}
		if err != nil {
			s.finish(err)
			return
		}
	}
}

// drain sends queued writes to the target.
func (s *Socket) drain(conn net.Conn) {
	for {
		select {
		case w := <-s.queue:
			if w.done != nil {
				if !s.failed() {
					w.done()
				}
				continue
			}
			if _, err := conn.Write(w.p); err != nil {
				s.abort(fmt.Errorf("writing to %s: %w", s.target, err))
				return
			}
			s.sent.Add(int64(len(w.p)))
		case <-s.done:
			return
		}
	}
}

// abort records err and closes the connection, which ends pump. A dial in
// progress is cancelled and reports err when it returns.
func (s *Socket) abort(err error) {
	s.mu.Lock()
	if s.failErr == nil {
		s.failErr = err
	}
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

// finish emits the single terminal event and releases the connection.
// A clean EOF is a normal close, anything else an error.
func (s *Socket) finish(err error) {
	s.mu.Lock()
	if s.failErr != nil {
		err = s.failErr
	}
	conn := s.conn
	s.mu.Unlock()

	s.shutdown()
	if conn != nil {
		_ = conn.Close()
	}

	if errors.Is(err, io.EOF) {
		s.emit(Event{Kind: EventClose})
		return
	}
	s.emit(Event{Kind: EventError, Err: err})
}
