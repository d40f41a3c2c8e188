package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second

	initialReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay     = 30 * time.Second
)

var errNotConnected = errors.New("not connected")

// behavior is the role-specific half of a participant
type behavior interface {
	onConnect()
	handle(env types.Envelope)
	onDisconnect()
}

// participant owns one WebSocket connection to the server and keeps it alive
type participant struct {
	name      string
	serverURL string
	stats     *counters
	logger    zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func newParticipant(name, serverURL string, stats *counters, logger zerolog.Logger) *participant {
	return &participant{
		name:      name,
		serverURL: serverURL,
		stats:     stats,
		logger:    logger.With().Str("participant", name).Logger(),
	}
}

// wsURL maps the server's HTTP base URL to its WebSocket endpoint
func wsURL(serverURL string) string {
	u := strings.TrimSuffix(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// run connects, hands every inbound frame to b and reconnects with
// exponential backoff until ctx is cancelled
func (p *participant) run(ctx context.Context, b behavior) {
	delay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(p.serverURL), nil)
		if err != nil {
			p.stats.dialFailures.Add(1)
			p.logger.Debug().Err(err).Dur("retry_in", delay).Msg("connection failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxReconnectDelay)
			continue
		}
		delay = initialReconnectDelay

		p.setConn(conn)
		p.stats.connected.Add(1)
		b.onConnect()

		p.readLoop(ctx, conn, b)

		p.setConn(nil)
		conn.Close()
		p.stats.connected.Add(-1)
		b.onDisconnect()
	}
}

func (p *participant) readLoop(ctx context.Context, conn *websocket.Conn, b behavior) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		p.mu.Unlock()
		conn.Close()
	})
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				p.logger.Debug().Err(err).Msg("connection lost")
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			p.logger.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		b.handle(env)
	}
}

func (p *participant) setConn(conn *websocket.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

// send writes one envelope; data may be nil for events without a body
func (p *participant) send(event string, data interface{}) error {
	env := types.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", event, err)
		}
		env.Data = raw
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return errNotConnected
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

// sendDescription relays an offer or answer to the partner
func (p *participant) sendDescription(event, to string, desc webrtc.SessionDescription) error {
	sdp, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	if err := p.send(event, types.SignalPayload{To: to, SDP: sdp}); err != nil {
		return err
	}
	p.stats.signalsSent.Add(1)
	return nil
}

// sendCandidate trickles one local ICE candidate to the partner
func (p *participant) sendCandidate(to string, c webrtc.ICECandidateInit) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := p.send(types.EventWebRTCCandidate, types.SignalPayload{To: to, Candidate: raw}); err != nil {
		p.logger.Debug().Err(err).Msg("failed to send candidate")
		return
	}
	p.stats.signalsSent.Add(1)
}
