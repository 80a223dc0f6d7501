// Package bridge implements the messaging gateway over a websocket to a
// sidecar process that owns the actual platform client. The wire protocol is
// JSON frames; requests that expect an answer carry a correlation id.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kelasbot/internal/transport"
	"kelasbot/pkg/logx"
)

type Config struct {
	URL            string
	SendRatePerSec float64
}

type Gateway struct {
	url       string
	handshake time.Duration
	ratePer   float64
	log       logx.Logger
}

func NewGateway(cfg Config, handshake time.Duration, log logx.Logger) *Gateway {
	if handshake <= 0 {
		handshake = 15 * time.Second
	}
	return &Gateway{
		url:       cfg.URL,
		handshake: handshake,
		ratePer:   cfg.SendRatePerSec,
		log:       log,
	}
}

// Connect dials the bridge and performs the connect handshake. The returned
// connection owns fresh channels; a failed dial leaves nothing behind.
func (g *Gateway) Connect(ctx context.Context, creds []byte) (transport.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: g.handshake,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, resp, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bridge dial %s: status %d: %w", g.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bridge dial %s: %w", g.url, err)
	}

	c := newConn(ws, g.ratePer, g.log)
	c.start()

	f := Frame{Type: frameConnect, Connect: &ConnectPayload{Creds: creds}}
	if err := c.enqueue(ctx, f); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("bridge handshake: %w", err)
	}
	return c, nil
}
