package ws

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/transport"

	"github.com/coder/websocket"
)

func testConfig(mutate ...func(*config.Server)) *config.Server {
	cfg := config.NewServer()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	for _, m := range mutate {
		m(cfg)
	}
	return cfg
}

// serve starts a listener for cfg and returns it with its URL. The server is
// stopped when the test ends.
func serve(t *testing.T, cfg *config.Server, handler transport.Handler) (*Listener, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	l, err := NewListener(ctx, cfg)
	if err != nil {
		cancel()
		t.Fatalf("NewListener() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- l.Serve(handler)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})

	return l, cfg.Protocol.String() + "://" + l.Addr().String()
}

func echoHandler(ctx context.Context, conn transport.Conn) error {
	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			return nil
		}
		if err := conn.Send(msg); err != nil {
			return err
		}
	}
}

func TestNewListener(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	tests := []struct {
		name    string
		host    string
		proto   config.Protocol
		wantErr bool
	}{
		{
			name:  "valid address without TLS",
			host:  "127.0.0.1",
			proto: config.ProtoWS,
		},
		{
			name:  "valid address with TLS",
			host:  "127.0.0.1",
			proto: config.ProtoWSS,
		},
		{
			name:  "wildcard address",
			host:  "",
			proto: config.ProtoWS,
		},
		{
			name:    "invalid address",
			host:    "[::1",
			proto:   config.ProtoWS,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(func(c *config.Server) {
				c.Host = tc.host
				c.Protocol = tc.proto
			})
			l, err := NewListener(context.Background(), cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewListener() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			defer l.Close()

			if (l.CertPool() != nil) != (tc.proto == config.ProtoWSS) {
				t.Errorf("CertPool() = %v for %s", l.CertPool(), tc.proto)
			}
		})
	}
}

func TestListener_Echo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	_, url := serve(t, testConfig(), echoHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, url+"/any/path", nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	defer c.CloseNow()

	// text messages are skipped by the server
	if err := c.Write(ctx, websocket.MessageText, []byte("ignored")); err != nil {
		t.Fatalf("Write(text) error = %v", err)
	}
	if err := c.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write(binary) error = %v", err)
	}

	typ, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if typ != websocket.MessageBinary {
		t.Errorf("message type = %v, want binary", typ)
	}
	if !bytes.Equal(msg, []byte{1, 2, 3}) {
		t.Errorf("message = %v, want [1 2 3]", msg)
	}
}

func TestListener_WSS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	cfg := testConfig(func(c *config.Server) { c.Protocol = config.ProtoWSS })
	l, url := serve(t, cfg, echoHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url, l.CertPool())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.Send([]byte("hello")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(msg) != "hello" {
		t.Errorf("Read() = %q, want hello", msg)
	}
}

func TestListener_ConnectionLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	handler := func(ctx context.Context, conn transport.Conn) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	cfg := testConfig(func(c *config.Server) { c.MaxConnections = 1 })
	_, url := serve(t, cfg, handler)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c1, resp1, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("first Dial() error = %v", err)
	}
	defer c1.CloseNow()
	if resp1.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("first status = %d, want %d", resp1.StatusCode, http.StatusSwitchingProtocols)
	}

	<-started

	c2, resp2, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		c2.CloseNow()
		t.Fatal("second connection should have been rejected")
	}
	if resp2 == nil || resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second response = %v, want status 503", resp2)
	}
}

func TestListener_ReadLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	readErr := make(chan error, 1)
	handler := func(ctx context.Context, conn transport.Conn) error {
		_, err := conn.Read(ctx)
		readErr <- err
		return nil
	}

	cfg := testConfig(func(c *config.Server) { c.MaxMessageSize = 16 })
	_, url := serve(t, cfg, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	defer c.CloseNow()

	_ = c.Write(ctx, websocket.MessageBinary, bytes.Repeat([]byte{0xff}, 64))

	select {
	case err := <-readErr:
		if err == nil {
			t.Fatal("Read() accepted a message over the limit")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
	}
}

func TestListener_OriginPatterns(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	cfg := testConfig(func(c *config.Server) { c.OriginPatterns = []string{"allowed.example"} })
	_, url := serve(t, cfg, echoHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		origin string
		wantOK bool
	}{
		{"https://allowed.example", true},
		{"https://evil.example", false},
	}

	for _, tc := range tests {
		c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{tc.origin}},
		})
		if (err == nil) != tc.wantOK {
			t.Errorf("Dial with origin %s: error = %v, want ok %v", tc.origin, err, tc.wantOK)
		}
		if c != nil {
			c.CloseNow()
		}
	}
}

func TestListener_KeepAlive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	readErr := make(chan error, 1)
	handler := func(ctx context.Context, conn transport.Conn) error {
		_, err := conn.Read(ctx)
		readErr <- err
		return nil
	}

	cfg := testConfig(func(c *config.Server) { c.KeepAlive = 200 * time.Millisecond })
	_, url := serve(t, cfg, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A client that never reads cannot answer pings.
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	defer c.CloseNow()

	select {
	case err := <-readErr:
		if err == nil {
			t.Fatalf("Read() error = %v, want connection closed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("idle connection was not closed")
	}
}
