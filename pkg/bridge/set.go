package bridge

import (
	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
)

// Set bundles the bridges a session dispatches CONNECT frames to.
type Set struct {
	TCP *TCP
	UDP *UDP
}

// NewSet builds both bridges from the server configuration. dump may be nil.
func NewSet(cfg *config.Server, dump *log.Dump) *Set {
	return &Set{
		TCP: NewTCP(cfg.Deps, cfg.Timeout, dump),
		UDP: NewUDP(cfg.Deps, cfg.Timeout, cfg.Logger),
	}
}
