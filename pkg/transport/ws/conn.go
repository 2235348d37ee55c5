package ws

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/log"

	"github.com/coder/websocket"
)

// Conn adapts a WebSocket connection to message-oriented reads and sends.
type Conn struct {
	ws     *websocket.Conn
	ctx    context.Context
	remote string
	closed atomic.Bool
}

func newConn(ctx context.Context, c *websocket.Conn, remote string) *Conn {
	return &Conn{ws: c, ctx: ctx, remote: remote}
}

// Read returns the next binary message. Text messages are ignored.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, msg, err := c.ws.Read(ctx)
		if err != nil {
			c.closed.Store(true)
			return nil, err
		}
		if typ != websocket.MessageBinary {
			continue
		}
		return msg, nil
	}
}

// Send writes msg as one binary message.
func (c *Conn) Send(msg []byte) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	return c.ws.Write(c.ctx, websocket.MessageBinary, msg)
}

// Close performs the closing handshake. Only the first call has an effect.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// IsOpen reports whether the connection can still carry messages.
func (c *Conn) IsOpen() bool {
	return !c.closed.Load()
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// keepAlive pings the peer every half of idle. A peer that does not answer
// within that time is disconnected.
func (c *Conn) keepAlive(ctx context.Context, idle time.Duration, logger *log.Logger) {
	interval := idle / 2
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		pctx, cancel := context.WithTimeout(ctx, interval)
		err := c.ws.Ping(pctx)
		cancel()
		if err != nil {
			if ctx.Err() == nil && c.closed.CompareAndSwap(false, true) {
				logger.VerboseMsg("Connection %s timed out: %s", c.remote, err)
				_ = c.ws.CloseNow()
			}
			return
		}
	}
}
