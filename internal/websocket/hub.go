package websocket

import (
	"encoding/json"
	"sync"

	"github.com/dennisdiepolder/callbridge/internal/metrics"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

// Processor applies client events to the matching state and returns the
// notifications they produce, in delivery order
type Processor interface {
	Handle(connID string, env types.Envelope) ([]types.Outbound, error)
	Disconnect(connID string) []types.Outbound
}

// inboundMessage is one decoded frame from a client
type inboundMessage struct {
	clientID string
	env      types.Envelope
}

// Hub maintains the set of active clients and serializes everything that
// touches matching state: registrations, inbound events and disconnects are
// all handled by the single Run loop.
type Hub struct {
	// Registered clients
	clients map[string]*Client // connID -> client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound events from the clients
	inbound chan inboundMessage

	// Closed by Stop; Run closes done on exit
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	processor Processor

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(processor Processor, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		processor:  processor,
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main loop. It returns after Stop is called.
func (h *Hub) Run() {
	m := metrics.Get()
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()

			m.RecordWebSocketConnect()
			h.logger.Info().
				Str("conn_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			existing, ok := h.clients[client.id]
			if ok && existing == client {
				delete(h.clients, client.id)
			}
			total := len(h.clients)
			h.mu.Unlock()

			if !ok || existing != client {
				continue
			}

			client.Close()
			m.RecordWebSocketDisconnect()
			h.deliver(h.processor.Disconnect(client.id))

			h.logger.Info().
				Str("conn_id", client.id).
				Int("total_clients", total).
				Msg("client disconnected")

		case msg := <-h.inbound:
			// A frame read before the client closed can still be buffered
			// after its unregister was handled; the participant is gone by then.
			if !h.active(msg.clientID) {
				h.logger.Debug().
					Str("conn_id", msg.clientID).
					Str("event", msg.env.Event).
					Msg("dropping event from departed client")
				continue
			}
			m.RecordEvent(msg.env.Event)
			out, err := h.processor.Handle(msg.clientID, msg.env)
			if err != nil {
				m.RecordEventError()
				h.logger.Debug().
					Err(err).
					Str("conn_id", msg.clientID).
					Str("event", msg.env.Event).
					Msg("discarding event")
				continue
			}
			h.deliver(out)

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				client.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info().Msg("hub stopped")
			return
		}
	}
}

// Stop closes every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// active reports whether events from a client should still reach the processor
func (h *Hub) active(id string) bool {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	return ok && !client.evicted.Load()
}

// SendTo marshals one notification and queues it for a client.
// Returns false when the client is unknown or its buffer is full. A client
// whose buffer is full is evicted: it has missed state the engine assumes it
// holds, so its connection is closed and the usual disconnect cleanup runs.
func (h *Hub) SendTo(id, event string, data interface{}) bool {
	m := metrics.Get()

	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal notification")
		return false
	}
	frame, err := json.Marshal(types.Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal envelope")
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok || !client.safeSend(frame) {
		m.RecordNotificationDropped()
		h.logger.Warn().
			Str("conn_id", id).
			Str("event", event).
			Bool("connected", ok).
			Msg("dropping notification")
		if ok {
			h.evict(client)
		}
		return false
	}

	m.RecordNotificationSent()
	return true
}

// ForceDisconnect closes a client's connection. The read pump then unregisters
// it, so the matching state is cleaned up exactly as for a dropped connection.
func (h *Hub) ForceDisconnect(id string) bool {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	if client.conn != nil {
		client.conn.Close()
	}
	h.logger.Info().Str("conn_id", id).Msg("client force-disconnected")
	return true
}

// evict closes a client that fell behind. It stays registered until its read
// pump unregisters it, but no further events from it are processed.
func (h *Hub) evict(client *Client) {
	if !client.evicted.CompareAndSwap(false, true) {
		return
	}

	client.Close()
	if client.conn != nil {
		client.conn.Close()
	}
	metrics.Get().RecordSlowClientEvicted()
	h.logger.Warn().Str("conn_id", client.id).Msg("evicting slow client")
}

// deliver sends notifications in order
func (h *Hub) deliver(out []types.Outbound) {
	for _, o := range out {
		h.SendTo(o.To, o.Event, o.Data)
	}
}
