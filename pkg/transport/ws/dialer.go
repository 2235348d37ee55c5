package ws

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"

	"github.com/coder/websocket"
)

// Dial connects to a Wisp server at url (ws:// or wss://). roots, if not nil,
// are the CAs trusted for wss; otherwise the system roots apply.
// ctx bounds the handshake and the lifetime of the connection.
func Dial(ctx context.Context, url string, roots *x509.CertPool) (*Conn, error) {
	opts := &websocket.DialOptions{
		CompressionMode: websocket.CompressionDisabled,
	}
	if roots != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: roots},
			},
		}
	}

	c, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial(%s): %w", url, err)
	}
	c.SetReadLimit(config.DefaultMaxMessageSize)

	return newConn(ctx, c, url), nil
}
