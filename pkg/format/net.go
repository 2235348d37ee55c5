// Package format renders network addresses for dialing and logging.
package format

import (
	"strconv"
	"strings"
)

// Addr joins host and port into a dialable address. IPv6 literals are
// bracketed, hosts that already carry brackets are left as they are.
func Addr(host string, port uint16) string {
	p := strconv.Itoa(int(port))
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") { // IPv6
		return "[" + host + "]:" + p
	}
	return host + ":" + p
}
