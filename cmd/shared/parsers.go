package shared

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
)

var transportRe = regexp.MustCompile(`^(ws|wss)://(\[[0-9a-fA-F:.]+\]|[^:\[\]]*):(\d+)$`)

// ParseTransport parses a transport string in the format "protocol://host:port"
// where protocol is ws or wss. The host can be empty or "*" to bind to all
// interfaces, IPv6 hosts are given in brackets. Returns the protocol, host,
// port, and any parsing error.
func ParseTransport(s string) (proto config.Protocol, host string, port int, err error) {
	matches := transportRe.FindStringSubmatch(s)

	if len(matches) != 4 {
		err = parsingError(s)
		return
	}

	switch matches[1] {
	case "ws":
		proto = config.ProtoWS
	case "wss":
		proto = config.ProtoWSS
	default:
		err = parsingError(s)
		return
	}
	host = matches[2]
	if host == "*" { // also counts as all interfaces
		host = ""
	}
	if len(host) > 1 && host[0] == '[' {
		host = host[1 : len(host)-1]
	}

	port, err = strconv.Atoi(matches[3])
	if err != nil || port < 1 || port > 65535 {
		err = parsingError(s)
		return
	}

	return
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'protocol://host:port', where protocol = ws|wss", s)
}
