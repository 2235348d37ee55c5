// Package transport defines what the server needs from a message transport.
//
// A transport accepts connections that carry whole binary messages and hands
// each one to a Handler. The ws subpackage implements it with WebSockets,
// plain (ws) or over TLS (wss):
//
//	l, err := ws.NewListener(ctx, cfg)
//	err = l.Serve(handler)
//
// Listeners limit concurrent connections, answering HTTP 503 when full, and
// keep idle connections alive with pings.
package transport

import "context"

// Conn is one accepted connection.
type Conn interface {
	// Read returns the next binary message. Other message kinds are skipped.
	Read(ctx context.Context) ([]byte, error)
	// Send delivers msg as one binary message. It is safe for concurrent use.
	Send(msg []byte) error
	Close() error
	IsOpen() bool
	RemoteAddr() string
}

// Handler processes an accepted connection and returns when done.
// The connection will be closed after the handler returns.
type Handler func(ctx context.Context, conn Conn) error
