package config

import (
	"context"
	"net"
)

// Dependencies contains injectable dependencies for testing and customization.
// All fields are optional and will use default implementations if nil.
type Dependencies struct {
	TCPDialer TCPDialerFunc
	UDPDialer UDPDialerFunc
	Resolver  ResolverFunc
}

// TCPDialerFunc opens a TCP connection to addr ("host:port").
type TCPDialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// UDPDialerFunc opens a UDP socket associated with raddr. network is
// "udp4" or "udp6" and matches the address family of raddr.
type UDPDialerFunc func(ctx context.Context, network string, raddr *net.UDPAddr) (net.Conn, error)

// ResolverFunc resolves a hostname to its IP addresses.
type ResolverFunc func(ctx context.Context, host string) ([]string, error)

// GetTCPDialerFunc returns the TCP dialer function from dependencies, or a default implementation.
// If deps is nil or deps.TCPDialer is nil, returns a function that uses a net.Dialer.
func GetTCPDialerFunc(deps *Dependencies) TCPDialerFunc {
	if deps != nil && deps.TCPDialer != nil {
		return deps.TCPDialer
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
}

// GetUDPDialerFunc returns the UDP dialer function from dependencies, or a default implementation.
// If deps is nil or deps.UDPDialer is nil, returns a function that uses a net.Dialer.
func GetUDPDialerFunc(deps *Dependencies) UDPDialerFunc {
	if deps != nil && deps.UDPDialer != nil {
		return deps.UDPDialer
	}
	return func(ctx context.Context, network string, raddr *net.UDPAddr) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, raddr.String())
	}
}

// GetResolverFunc returns the resolver function from dependencies, or a default implementation.
// If deps is nil or deps.Resolver is nil, returns a function that uses net.DefaultResolver.
func GetResolverFunc(deps *Dependencies) ResolverFunc {
	if deps != nil && deps.Resolver != nil {
		return deps.Resolver
	}
	return net.DefaultResolver.LookupHost
}
