package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/auth"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/hub"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/market"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/metrics"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/protocol"
)

const (
	maxMessageSize = 512 * 1024
)

// Client is the per-connection protocol state machine:
// Connecting -> Authenticating -> Authenticated -> Closed. It runs one
// goroutine for inbound frames and one for outbound writes, joined by a
// buffered send channel.
type Client struct {
	conn     net.Conn
	hub      *hub.Hub
	sessions auth.Store
	feed     *market.Feed
	logger   *zap.Logger
	send     chan []byte

	mu         sync.Mutex
	closed     bool
	closeFrame []byte

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h *hub.Hub, sessions auth.Store, feed *market.Feed, logger *zap.Logger) *Client {
	return &Client{
		conn:       conn,
		hub:        h,
		sessions:   sessions,
		feed:       feed,
		logger:     logger,
		send:       make(chan []byte, 256),
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

func (c *Client) ID() string { return c.conn.RemoteAddr().String() }

// Start runs the authentication handshake with the already-extracted
// bearer token and, on success, registers the connection and begins
// relaying. Authentication failures send exactly one explanatory payload
// and close with the policy-violation code.
func (c *Client) Start(token string) {
	go c.writePump()

	if token == "" {
		c.reject("Authentication required")
		return
	}

	identity, ok, err := c.sessions.Verify(context.Background(), token)
	if err != nil {
		c.logger.Error("Session verification fault", zap.String("client", c.ID()), zap.Error(err))
		c.reject("Authentication failed")
		return
	}
	if !ok {
		c.reject("Invalid authentication token")
		return
	}

	// The snapshot is the first outbound payload; the hub enqueues it
	// before the connection joins the fan-out set, so no price update
	// can slot in ahead of it.
	c.hub.Register(c, identity, protocol.SnapshotMessage{Type: protocol.TypeInitialPrices, Data: c.feed.AllPrices()})

	go c.readPump()
}

func (c *Client) reject(reason string) {
	metrics.AuthFailuresTotal.Inc()
	c.logger.Info("Connection rejected", zap.String("client", c.ID()), zap.String("reason", reason))
	c.SendJSON(protocol.ErrorMessage{Error: reason})
	c.closeWith(ws.StatusPolicyViolation, reason)
}

// Close shuts the outbound channel; writePump drains it, writes the
// close frame and tears down the transport. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) closeWith(code ws.StatusCode, reason string) {
	frame := ws.MustCompileFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeFrame = frame
	close(c.send)
}

func (c *Client) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode outbound message", zap.Error(err))
		return
	}
	c.SendBytes(b)
}

// SendBytes enqueues one outbound frame. Sends to a closed or saturated
// connection are dropped, never surfaced to the caller.
func (c *Client) SendBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		metrics.DroppedMessagesTotal.Inc()
		return
	}

	select {
	case c.send <- b:
	default:
		metrics.DroppedMessagesTotal.Inc()
		c.logger.Warn("Send buffer full, dropping frame", zap.String("client", c.ID()))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			return
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		case ws.OpText:
			c.hub.HandleMessage(c, payload)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.mu.Lock()
				frame := c.closeFrame
				c.mu.Unlock()
				if frame != nil {
					c.conn.Write(frame)
				} else {
					c.conn.Write(ws.CompiledClose)
				}
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
