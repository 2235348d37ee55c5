// Package server runs the Wisp gateway: it accepts WebSocket connections and
// runs one session per connection.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Astatine-Development/uWisp-Server/pkg/bridge"
	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/session"
	"github.com/Astatine-Development/uWisp-Server/pkg/transport"
	"github.com/Astatine-Development/uWisp-Server/pkg/transport/ws"

	"github.com/coder/websocket"
)

// Server is a bound gateway sharing one set of bridges across sessions.
type Server struct {
	ctx     context.Context
	cfg     *config.Server
	l       *ws.Listener
	dump    *log.Dump
	bridges *bridge.Set
}

// New binds the listener and prepares the bridges. Call Serve to start
// accepting sessions and Close to release everything.
func New(ctx context.Context, cfg *config.Server) (*Server, error) {
	s := &Server{ctx: ctx, cfg: cfg}

	if cfg.DumpFile != "" {
		dump, err := log.OpenDump(cfg.DumpFile)
		if err != nil {
			return nil, fmt.Errorf("opening dump file: %w", err)
		}
		s.dump = dump
	}

	l, err := ws.NewListener(ctx, cfg)
	if err != nil {
		_ = s.dump.Close()
		return nil, fmt.Errorf("ws.NewListener(): %w", err)
	}
	s.l = l

	s.bridges = bridge.NewSet(cfg, s.dump)

	return s, nil
}

// URL returns the address clients connect to.
func (s *Server) URL() string {
	return fmt.Sprintf("%s://%s", s.cfg.Protocol, s.l.Addr())
}

// Listener returns the underlying WebSocket listener.
func (s *Server) Listener() *ws.Listener {
	return s.l
}

// Serve accepts sessions until the context is cancelled.
func (s *Server) Serve() error {
	s.cfg.Logger.InfoMsg("Listening on %s", s.URL())
	return s.l.Serve(s.handle)
}

// Close stops the listener and closes the dump file.
func (s *Server) Close() error {
	return errors.Join(s.l.Close(), s.dump.Close())
}

// Serve runs a server for cfg until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Server) error {
	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Serve()
}

func (s *Server) handle(ctx context.Context, conn transport.Conn) error {
	s.cfg.Logger.InfoMsg("New session from %s", conn.RemoteAddr())
	defer s.cfg.Logger.InfoMsg("Session from %s ended", conn.RemoteAddr())

	sess := session.New(ctx, conn.RemoteAddr(), conn, s.cfg, s.bridges)
	defer sess.Close()

	sess.Open()

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if sess.Closed() || ctx.Err() != nil || websocket.CloseStatus(err) != -1 {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		if err := sess.HandleMessage(msg); err != nil {
			return err
		}
	}
}
