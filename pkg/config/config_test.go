package config

import (
	"testing"
	"time"
)

func TestProtocol_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		protocol Protocol
		want     string
	}{
		{"WebSocket", ProtoWS, "ws"},
		{"WebSocket Secure", ProtoWSS, "wss"},
		{"Invalid", Protocol(999), ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.protocol.String(); got != tc.want {
				t.Errorf("Protocol.String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestServer_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(c *Server)
		wantErrs int
	}{
		{
			name:     "defaults with port",
			mutate:   func(c *Server) {},
			wantErrs: 0,
		},
		{
			name:     "bad protocol",
			mutate:   func(c *Server) { c.Protocol = Protocol(7) },
			wantErrs: 1,
		},
		{
			name:     "bad port",
			mutate:   func(c *Server) { c.Port = 70000 },
			wantErrs: 1,
		},
		{
			name:     "zero timeout",
			mutate:   func(c *Server) { c.Timeout = 0 },
			wantErrs: 1,
		},
		{
			name:     "tiny message size",
			mutate:   func(c *Server) { c.MaxMessageSize = 4 },
			wantErrs: 1,
		},
		{
			name:     "negative keepalive",
			mutate:   func(c *Server) { c.KeepAlive = -time.Second },
			wantErrs: 1,
		},
		{
			name:     "keepalive disabled",
			mutate:   func(c *Server) { c.KeepAlive = 0 },
			wantErrs: 0,
		},
		{
			name:     "no connections",
			mutate:   func(c *Server) { c.MaxConnections = 0 },
			wantErrs: 1,
		},
		{
			name:     "no stream types",
			mutate:   func(c *Server) { c.AllowTCP, c.AllowUDP = false, false },
			wantErrs: 1,
		},
		{
			name: "everything wrong",
			mutate: func(c *Server) {
				c.Port = 0
				c.Timeout = -1
				c.MaxConnections = -1
			},
			wantErrs: 3,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewServer()
			cfg.Port = 8080
			tc.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != tc.wantErrs {
				t.Errorf("Validate() = %v, want %d errors", errs, tc.wantErrs)
			}
		})
	}
}

func TestNewServer_Defaults(t *testing.T) {
	t.Parallel()

	cfg := NewServer()
	if cfg.MaxMessageSize != 16*1024*1024 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.KeepAlive != 32*time.Second {
		t.Errorf("KeepAlive = %s", cfg.KeepAlive)
	}
	if !cfg.AllowTCP || !cfg.AllowUDP {
		t.Error("both stream types should be allowed by default")
	}
	if len(cfg.OriginPatterns) != 1 || cfg.OriginPatterns[0] != "*" {
		t.Errorf("OriginPatterns = %v", cfg.OriginPatterns)
	}
}
