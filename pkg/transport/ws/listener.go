// Package ws serves Wisp sessions over WebSocket (ws) and WebSocket over TLS (wss).
package ws

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/crypto"
	"github.com/Astatine-Development/uWisp-Server/pkg/format"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/semaphore"
	"github.com/Astatine-Development/uWisp-Server/pkg/transport"

	"github.com/coder/websocket"
)

// Listener accepts WebSocket upgrades on any path.
type Listener struct {
	ctx    context.Context
	cfg    *config.Server
	logger *log.Logger

	nl    net.Listener
	roots *x509.CertPool
	sem   *semaphore.ConnSemaphore

	handler transport.Handler
}

// NewListener binds the address from cfg. For wss an ephemeral certificate
// is generated.
func NewListener(ctx context.Context, cfg *config.Server) (*Listener, error) {
	addr := format.Addr(cfg.Host, uint16(cfg.Port))

	nl, roots, err := createNetListener(addr, cfg.Host, cfg.Protocol == config.ProtoWSS)
	if err != nil {
		return nil, err
	}

	return &Listener{
		ctx:    ctx,
		cfg:    cfg,
		logger: cfg.Logger,
		nl:     nl,
		roots:  roots,
		sem:    semaphore.New(cfg.MaxConnections),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// CertPool returns the CA that signed the wss certificate, or nil for ws.
func (l *Listener) CertPool() *x509.CertPool {
	return l.roots
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.nl.Close()
}

// Serve handles connections until the listener's context is cancelled.
func (l *Listener) Serve(handler transport.Handler) error {
	l.handler = handler

	server := &http.Server{
		Handler: l,

		// Timeouts for long-lived sessions
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       0, // Unlimited after headers
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return serveWithContext(l.ctx, server, l.nl)
}

// ServeHTTP upgrades the request, or answers 503 when all slots are taken.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !l.sem.TryAcquire() {
		l.logger.VerboseMsg("Rejecting %s: %d connections open", r.RemoteAddr, l.sem.InUse())
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer l.sem.Release()

	c, err := websocket.Accept(w, r, l.acceptOptions())
	if err != nil {
		l.logger.ErrorMsg("websocket.Accept(): %s", err)
		return
	}
	c.SetReadLimit(l.cfg.MaxMessageSize)

	ctx, cancel := context.WithCancel(l.ctx)
	defer cancel()

	conn := newConn(ctx, c, r.RemoteAddr)
	defer func() { _ = conn.Close() }()

	if l.cfg.KeepAlive > 0 {
		go conn.keepAlive(ctx, l.cfg.KeepAlive, l.logger)
	}

	// Prevent panic from leaking resources
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorMsg("Handler panic: %v", r)
		}
	}()

	if err := l.handler(ctx, conn); err != nil {
		l.logger.ErrorMsg("Connection %s: %s", conn.RemoteAddr(), err)
	}
}

func (l *Listener) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	}
	if len(l.cfg.OriginPatterns) == 0 || slices.Contains(l.cfg.OriginPatterns, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = l.cfg.OriginPatterns
	}
	return opts
}

// createNetListener creates a TCP listener with optional TLS.
func createNetListener(addr, host string, useTLS bool) (net.Listener, *x509.CertPool, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	var nl net.Listener
	nl, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("net.ListenTCP(tcp, %s): %w", tcpAddr.String(), err)
	}

	if !useTLS {
		return nl, nil, nil
	}

	tl, roots, err := wrapWithTLS(nl, host)
	if err != nil {
		_ = nl.Close()
		return nil, nil, fmt.Errorf("wrap with TLS: %w", err)
	}
	return tl, roots, nil
}

// wrapWithTLS wraps a listener with TLS using an ephemeral certificate.
func wrapWithTLS(nl net.Listener, host string) (net.Listener, *x509.CertPool, error) {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if host != "" && !slices.Contains(hosts, host) {
		hosts = append([]string{host}, hosts...)
	}

	roots, cert, err := crypto.GenerateCertificates(hosts...)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto.GenerateCertificates(): %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	return tls.NewListener(nl, tlsCfg), roots, nil
}

// serveWithContext runs the HTTP server with context cancellation support.
func serveWithContext(ctx context.Context, server *http.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		_ = listener.Close()
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("serving after cancellation: %w", err)

	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("http.Server.Serve(): %w", err)
	}
}
