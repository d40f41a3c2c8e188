package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/config"
	"github.com/dennisdiepolder/callbridge/internal/metrics"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a middleman between one agent or supplier connection and the hub
type Client struct {
	// Connection ID, the participant's identity for its lifetime
	id string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound frames
	send chan []byte

	config *config.Config

	logger zerolog.Logger

	// done is closed when the read pump exits
	done chan struct{}

	// closeOnce ensures send channel is closed only once
	closeOnce sync.Once

	// Set when the hub drops the client for a full send buffer
	evicted atomic.Bool
}

// NewClient creates a new Client with a fresh connection ID
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger) *Client {
	clientID := uuid.New().String()
	return &Client{
		id:     clientID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		config: cfg,
		logger: logger.With().Str("conn_id", clientID).Logger(),
		done:   make(chan struct{}),
	}
}

// ID returns the connection ID
func (c *Client) ID() string {
	return c.id
}

// readPump pumps messages from the websocket connection to the hub
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage decodes one frame and hands it to the hub
func (c *Client) handleMessage(message []byte) {
	var env types.Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
		metrics.Get().RecordEventError()
		c.logger.Debug().Err(err).Msg("failed to parse message envelope")
		return
	}

	select {
	case c.hub.inbound <- inboundMessage{clientID: c.id, env: env}:
	case <-c.hub.done:
	}
}

// writePump pumps messages from the hub to the websocket connection, one
// frame per notification
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the client's send channel (idempotent)
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// safeSend queues a frame without blocking, recovering if the channel was closed
func (c *Client) safeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
