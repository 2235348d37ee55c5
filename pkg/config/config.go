// Package config holds the server configuration assembled from CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/log"
)

// Protocol is the transport the server listens with.
type Protocol int

// ProtoWS is plain WebSocket, ProtoWSS is WebSocket over TLS.
const (
	ProtoWS  Protocol = 1
	ProtoWSS Protocol = 2
)

func (p Protocol) String() string {
	switch p {
	case ProtoWS:
		return "ws"
	case ProtoWSS:
		return "wss"
	default:
		return ""
	}
}

// Defaults for the transport limits. The message size and idle timeout match
// what Wisp clients expect from existing servers.
const (
	DefaultMaxMessageSize = 16 * 1024 * 1024
	DefaultKeepAlive      = 32 * time.Second
	DefaultTimeout        = 10 * time.Second
	DefaultMaxConnections = 100
)

// Server configures the gateway.
type Server struct {
	Protocol Protocol
	Host     string
	Port     int
	Verbose  bool

	// Timeout bounds dialing and resolving a stream target.
	Timeout time.Duration
	// MaxMessageSize is the largest WebSocket message accepted.
	MaxMessageSize int64
	// KeepAlive is the idle timeout of a session; pings go out every half of it.
	// Zero disables pings.
	KeepAlive time.Duration
	// MaxConnections limits concurrent sessions; further upgrades get HTTP 503.
	MaxConnections int
	// OriginPatterns lists the allowed browser origins, "*" allows all.
	OriginPatterns []string

	AllowTCP bool
	AllowUDP bool

	// DumpFile, if set, receives a copy of all outbound TCP traffic.
	DumpFile string

	Logger *log.Logger
	Deps   *Dependencies
}

// NewServer returns a configuration with defaults applied.
func NewServer() *Server {
	return &Server{
		Protocol:       ProtoWS,
		Timeout:        DefaultTimeout,
		MaxMessageSize: DefaultMaxMessageSize,
		KeepAlive:      DefaultKeepAlive,
		MaxConnections: DefaultMaxConnections,
		OriginPatterns: []string{"*"},
		AllowTCP:       true,
		AllowUDP:       true,
	}
}

// Validate checks the Server configuration for errors and returns all of them.
func (c *Server) Validate() []error {
	var errors []error

	if c.Protocol != ProtoWS && c.Protocol != ProtoWSS {
		errors = append(errors, fmt.Errorf("protocol must be ws or wss"))
	}

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("port: %s", err))
	}

	if c.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("timeout must be positive"))
	}

	if c.MaxMessageSize < 9 {
		errors = append(errors, fmt.Errorf("max message size must fit a 9 byte frame, got %d", c.MaxMessageSize))
	}

	if c.KeepAlive < 0 {
		errors = append(errors, fmt.Errorf("keepalive must not be negative"))
	}

	if c.MaxConnections < 1 {
		errors = append(errors, fmt.Errorf("max connections must be at least 1"))
	}

	if !c.AllowTCP && !c.AllowUDP {
		errors = append(errors, fmt.Errorf("at least one of TCP and UDP streams must be allowed"))
	}

	return errors
}
