package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/config"
	"github.com/dennisdiepolder/callbridge/internal/matching"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		PongWait:       5 * time.Second,
		PingPeriod:     4 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 65536,
	}
}

func startServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	engine, err := matching.NewEngine(matching.Options{}, zerolog.Nop())
	require.NoError(t, err)

	hub := NewHub(engine, zerolog.Nop())
	go hub.Run()

	srv := httptest.NewServer(NewHandler(hub, testConfig(), zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	env := map[string]interface{}{"event": event}
	if data != nil {
		env["data"] = data
	}
	require.NoError(t, conn.WriteJSON(env))
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env types.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, want, env.Event)

	var data map[string]interface{}
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return data
}

func TestCallFlowOverWebSocket(t *testing.T) {
	_, srv := startServer(t)

	agent := dial(t, srv)
	supplier := dial(t, srv)

	sendEvent(t, agent, types.EventAgentRegister, map[string]string{"name": "Alice"})
	reg := readEvent(t, agent, types.EventAgentRegistered)
	assert.Equal(t, "Alice", reg["name"])
	assert.Equal(t, float64(0), reg["queueLength"])

	sendEvent(t, supplier, types.EventSupplierCall, nil)
	incoming := readEvent(t, agent, types.EventIncomingCall)
	requested := readEvent(t, supplier, types.EventCallRequested)

	supplierID, _ := incoming["supplierId"].(string)
	agentID, _ := requested["agentId"].(string)
	require.NotEmpty(t, supplierID)
	require.NotEmpty(t, agentID)

	sendEvent(t, agent, types.EventAgentAccept, map[string]string{"supplierId": supplierID})
	accepted := readEvent(t, supplier, types.EventCallAccepted)
	assert.Equal(t, agentID, accepted["agentId"])
	started := readEvent(t, agent, types.EventCallStarted)
	assert.Equal(t, supplierID, started["supplierId"])

	// signaling is relayed verbatim with the sender stamped in
	sdp := map[string]string{"type": "offer", "sdp": "v=0"}
	sendEvent(t, supplier, types.EventWebRTCOffer, map[string]interface{}{"to": agentID, "sdp": sdp})
	offer := readEvent(t, agent, types.EventWebRTCOffer)
	assert.Equal(t, supplierID, offer["from"])
	assert.Equal(t, map[string]interface{}{"type": "offer", "sdp": "v=0"}, offer["sdp"])

	cand := map[string]string{"candidate": "candidate:1 1 udp 1 10.0.0.1 9 typ host"}
	sendEvent(t, agent, types.EventWebRTCCandidate, map[string]interface{}{"to": supplierID, "candidate": cand})
	relayed := readEvent(t, supplier, types.EventWebRTCCandidate)
	assert.Equal(t, agentID, relayed["from"])
	assert.NotNil(t, relayed["candidate"])

	sendEvent(t, supplier, types.EventEndCall, map[string]string{"partnerId": agentID})
	ended := readEvent(t, agent, types.EventCallEnded)
	assert.Equal(t, supplierID, ended["by"])
}

func TestSupplierDisconnectNotifiesAgent(t *testing.T) {
	hub, srv := startServer(t)

	agent := dial(t, srv)
	supplier := dial(t, srv)

	sendEvent(t, agent, types.EventAgentRegister, nil)
	readEvent(t, agent, types.EventAgentRegistered)

	sendEvent(t, supplier, types.EventSupplierCall, nil)
	incoming := readEvent(t, agent, types.EventIncomingCall)
	readEvent(t, supplier, types.EventCallRequested)

	supplier.Close()

	gone := readEvent(t, agent, types.EventSupplierDisconnected)
	assert.Equal(t, incoming["supplierId"], gone["supplierId"])

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestForceDisconnectRequeuesSupplier(t *testing.T) {
	hub, srv := startServer(t)

	agent := dial(t, srv)
	supplier := dial(t, srv)

	sendEvent(t, agent, types.EventAgentRegister, map[string]string{"name": "Alice"})
	readEvent(t, agent, types.EventAgentRegistered)

	sendEvent(t, supplier, types.EventSupplierCall, nil)
	readEvent(t, agent, types.EventIncomingCall)
	requested := readEvent(t, supplier, types.EventCallRequested)

	agentID, _ := requested["agentId"].(string)
	require.True(t, hub.ForceDisconnect(agentID))

	readEvent(t, supplier, types.EventAgentDisconnected)
	status := readEvent(t, supplier, types.EventQueueStatus)
	assert.Equal(t, float64(1), status["position"])
}

func TestUnknownEventIsIgnored(t *testing.T) {
	_, srv := startServer(t)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendEvent(t, conn, "make-coffee", nil)

	// the connection survives and still works
	sendEvent(t, conn, types.EventSupplierCall, nil)
	status := readEvent(t, conn, types.EventQueueStatus)
	assert.Equal(t, float64(1), status["position"])
}

func TestOriginCheck(t *testing.T) {
	_, srv := startServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
