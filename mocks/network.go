// Package mocks provides an in-memory network for tests. Hosts, TCP services
// and UDP services are registered by address; the network hands out the
// dialers and resolver a server takes through config.Dependencies.
package mocks

import (
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/format"
)

// TCPHandler serves one accepted connection.
type TCPHandler func(conn net.Conn)

// UDPHandler answers one datagram. A nil reply sends nothing.
type UDPHandler func(req []byte) (reply []byte)

// Network simulates name resolution and TCP/UDP services without real sockets.
type Network struct {
	mu    sync.Mutex
	hosts map[string]string
	tcp   map[string]TCPHandler
	udp   map[string]UDPHandler
	dials []string
	open  map[*conn]struct{}
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		hosts: make(map[string]string),
		tcp:   make(map[string]TCPHandler),
		udp:   make(map[string]UDPHandler),
		open:  make(map[*conn]struct{}),
	}
}

// AddHost makes name resolve to ip.
func (n *Network) AddHost(name, ip string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts[name] = ip
}

// ServeTCP registers h for connections to ip:port.
func (n *Network) ServeTCP(ip string, port uint16, h TCPHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tcp[format.Addr(ip, port)] = h
}

// ServeUDP registers h for datagrams to ip:port.
func (n *Network) ServeUDP(ip string, port uint16, h UDPHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.udp[format.Addr(ip, port)] = h
}

// Deps returns dependencies routing all dials and lookups into the network.
func (n *Network) Deps() *config.Dependencies {
	return &config.Dependencies{
		TCPDialer: n.DialTCP,
		UDPDialer: n.DialUDP,
		Resolver:  n.LookupHost,
	}
}

// Dials returns every address dialed so far, in order.
func (n *Network) Dials() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.dials...)
}

// OpenConns returns the number of dialed connections not yet closed by the dialer's side.
func (n *Network) OpenConns() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.open)
}

// LookupHost resolves registered names. IP literals resolve to themselves.
func (n *Network) LookupHost(ctx context.Context, host string) ([]string, error) {
	if _, err := netip.ParseAddr(host); err == nil {
		return []string{host}, nil
	}

	n.mu.Lock()
	ip, ok := n.hosts[host]
	n.mu.Unlock()
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return []string{ip}, nil
}

// DialTCP connects to a registered TCP service. Unknown addresses are refused.
func (n *Network) DialTCP(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := n.LookupHost(ctx, host)
	if err != nil {
		return nil, &net.OpError{Op: "dial", Net: network, Err: err}
	}
	target := net.JoinHostPort(ips[0], port)

	n.mu.Lock()
	h, ok := n.tcp[target]
	n.mu.Unlock()
	if !ok {
		n.record(addr)
		return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
	}

	client, server := net.Pipe()
	go h(server)

	return n.track(addr, client), nil
}

// DialUDP associates with a UDP service. Like a real UDP socket it succeeds
// for any address; datagrams to unknown services are dropped.
func (n *Network) DialUDP(ctx context.Context, network string, raddr *net.UDPAddr) (net.Conn, error) {
	addr := raddr.String()

	n.mu.Lock()
	h, ok := n.udp[addr]
	n.mu.Unlock()
	if !ok {
		h = func([]byte) []byte { return nil }
	}

	client, server := net.Pipe()
	go serveDatagrams(server, h)

	return n.track(addr, client), nil
}

func serveDatagrams(conn net.Conn, h UDPHandler) {
	defer conn.Close()

	buf := make([]byte, 65535)
	for {
		k, err := conn.Read(buf)
		if err != nil {
			return
		}
		if reply := h(buf[:k]); reply != nil {
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

func (n *Network) record(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dials = append(n.dials, addr)
}

func (n *Network) track(addr string, c net.Conn) *conn {
	tc := &conn{Conn: c, network: n}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.dials = append(n.dials, addr)
	n.open[tc] = struct{}{}

	return tc
}

func (n *Network) release(c *conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.open, c)
}

// conn removes itself from the open set when closed.
type conn struct {
	net.Conn
	network *Network
	once    sync.Once
}

func (c *conn) Close() error {
	c.once.Do(func() { c.network.release(c) })
	return c.Conn.Close()
}

// EchoTCP writes everything read back to the peer.
func EchoTCP(conn net.Conn) {
	defer conn.Close()
	_, _ = io.Copy(conn, conn)
}

// EchoUDP answers every datagram with itself.
func EchoUDP(req []byte) []byte {
	return append([]byte(nil), req...)
}
