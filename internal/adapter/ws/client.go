package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// ErrSendBufferFull is returned when a client cannot keep up with pushes.
var ErrSendBufferFull = errors.New("ws: send buffer full")

// Client is one live websocket connection. It implements realtime.Conn.
type Client struct {
	id       string
	identity string
	role     domain.Role

	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(id, identity string, role domain.Role, conn *websocket.Conn, logger zerolog.Logger) *Client {
	return &Client{
		id:       id,
		identity: identity,
		role:     role,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger,
		closed:   make(chan struct{}),
	}
}

// ID returns the unique connection id. A reconnect gets a new one.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated party id.
func (c *Client) Identity() string { return c.identity }

// Role returns the role the party connected as.
func (c *Client) Role() domain.Role { return c.role }

// Send queues an event frame for delivery. It never blocks: a client that
// cannot drain its buffer loses the frame and gets resynced by the snapshot
// on reconnect.
func (c *Client) Send(event string, payload any) error {
	frame, err := json.Marshal(Response{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().
			Str("identity", c.identity).
			Str("event", event).
			Msg("send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

// SendError reports an operation failure back to this client.
func (c *Client) SendError(op string, err error) {
	_ = c.Send("error", ErrorPayload{Op: op, Message: err.Error()})
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// readPump reads frames and dispatches them until the connection drops.
func (c *Client) readPump(h *Handler) {
	defer func() {
		h.disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Str("identity", c.identity).Msg("websocket read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendError("", errors.New("invalid message format"))
			continue
		}

		h.dispatch(c, &msg)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
