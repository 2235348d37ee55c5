package bridge

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/format"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/wisp"
)

const tcpBufferSize = 64 * 1024

// TCP opens stream sockets.
type TCP struct {
	dial    config.TCPDialerFunc
	timeout time.Duration
	dump    *log.Dump
}

// NewTCP returns a TCP bridge using the dialer from deps. dump may be nil.
func NewTCP(deps *config.Dependencies, timeout time.Duration, dump *log.Dump) *TCP {
	return &TCP{
		dial:    config.GetTCPDialerFunc(deps),
		timeout: timeout,
		dump:    dump,
	}
}

// Open starts connecting to host:port and returns at once. EventOpen is
// delivered before Open returns; the outcome of the connection attempt
// arrives later as EventConnect or EventError.
func (b *TCP) Open(ctx context.Context, host string, port uint16, h Handler) *Socket {
	s := newSocket(ctx, wisp.StreamTCP, format.Addr(host, port), h)
	s.emit(Event{Kind: EventOpen})

	go b.connect(s)

	return s
}

func (b *TCP) connect(s *Socket) {
	ctx, cancel := context.WithTimeout(s.ctx, b.timeout)
	conn, err := b.dial(ctx, "tcp", s.target)
	cancel()
	if err != nil {
		s.finish(fmt.Errorf("dialing %s: %w", s.target, err))
		return
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
	}

	conn = b.dump.Wrap(conn)
	if !s.attach(conn) {
		return
	}

	s.emit(Event{Kind: EventConnect})
	s.pump(conn, tcpBufferSize)
}
