package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame. The channel is
	// push-only; clients send nothing but keepalives.
	maxInboundSize = 512

	// capacity of the per-client outbound queue.
	sendQueueSize = 256
)

// Client represents one live push channel of an authenticated user. A user
// with several simultaneous connections has several Clients.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// UserID is the authenticated owner of this channel.
	UserID string

	// a buffered channel used to queue events waiting to be sent to the client.
	send chan []byte

	// closeOnce makes Close idempotent: emit pruning and transport
	// disconnect may race to close the same channel.
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		UserID: userID,
		send:   make(chan []byte, sendQueueSize),
		logger: logx.Logger().With().Str("component", "chat").Str("user_id", userID).Logger(),
	}
}

// SendEvent marshals the event and queues it for delivery. It fails without
// blocking when the outbound queue is full or closed; the caller treats that
// as a dead channel.
func (c *Client) SendEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", ev.Type).Msg("Failed to marshal event")
		return err
	}

	return c.enqueue(data)
}

// enqueue performs a non-blocking send to the outbound queue.
func (c *Client) enqueue(data []byte) (err error) {
	defer func() {
		if recover() != nil {
			err = fmt.Errorf("client channel closed")
		}
	}()

	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("client send queue full")
	}
}

// Close shuts the outbound queue down, which terminates WritePump and closes
// the underlying connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump consumes the connection until the transport signals closure. The
// client has no inbound protocol beyond keepalives, so frames are read and
// discarded; the read deadline refreshed by Pong handling is what detects a
// dead peer. On return the client is removed from the registry.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Live channel closed unexpectedly")
			}
			return
		}
	}
}

// WritePump drains the outbound queue onto the WebSocket connection and
// keeps the heartbeat alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
