package bridge

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/format"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/wisp"
)

const udpBufferSize = 65535

// UDP opens datagram sockets. A UDP socket is bound to one remote address,
// so the target must be resolved first to pick the IPv4 or IPv6 family.
type UDP struct {
	dial    config.UDPDialerFunc
	lookup  config.ResolverFunc
	timeout time.Duration
	logger  *log.Logger
}

// NewUDP returns a UDP bridge using the dialer and resolver from deps.
func NewUDP(deps *config.Dependencies, timeout time.Duration, logger *log.Logger) *UDP {
	return &UDP{
		dial:    config.GetUDPDialerFunc(deps),
		lookup:  config.GetResolverFunc(deps),
		timeout: timeout,
		logger:  logger,
	}
}

// Open resolves host and creates the socket in the background. If the host
// cannot be resolved to an IPv4 or IPv6 address, or the socket cannot be
// created, the attempt is dropped without any event.
func (b *UDP) Open(ctx context.Context, host string, port uint16, h Handler) *Socket {
	s := newSocket(ctx, wisp.StreamUDP, format.Addr(host, port), h)

	go b.connect(s, host, port)

	return s
}

func (b *UDP) connect(s *Socket, host string, port uint16) {
	ip, err := b.resolve(s.ctx, host)
	if err != nil {
		b.logger.VerboseMsg("UDP %s dropped: %s", s.target, err)
		_ = s.Close()
		return
	}

	network := "udp4"
	if ip.Is6() {
		network = "udp6"
	}
	raddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, port))

	ctx, cancel := context.WithTimeout(s.ctx, b.timeout)
	conn, err := b.dial(ctx, network, raddr)
	cancel()
	if err != nil {
		b.logger.VerboseMsg("UDP %s dropped: dialing %s: %s", s.target, raddr, err)
		_ = s.Close()
		return
	}

	if !s.attach(conn) {
		return
	}

	s.emit(Event{Kind: EventOpen})
	s.emit(Event{Kind: EventConnect})
	s.pump(conn, udpBufferSize)
}

// resolve returns the address to associate with. Literals are used as they
// are; names take the first IPv4 address, or the first IPv6 address when
// there is no IPv4 one.
func (b *UDP) resolve(ctx context.Context, host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.Unmap(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	addrs, err := b.lookup(ctx, host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolving %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("resolving %s: no addresses", host)
	}

	var v6 netip.Addr
	for _, a := range addrs {
		ip, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		ip = ip.Unmap()
		if ip.Is4() {
			return ip, nil
		}
		if !v6.IsValid() {
			v6 = ip
		}
	}
	if v6.IsValid() {
		return v6, nil
	}

	return netip.Addr{}, fmt.Errorf("%s resolved to %q, which is neither IPv4 nor IPv6", host, addrs[0])
}
