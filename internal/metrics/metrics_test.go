package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

func TestGetReturnsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("expected the same instance")
	}
}

func TestCounters(t *testing.T) {
	m := newMetrics()

	m.RecordEvent("supplier-call")
	m.RecordEvent("supplier-call")
	m.RecordEvent("agent-accept")
	m.RecordEventError()
	m.RecordWebSocketConnect()
	m.RecordWebSocketConnect()
	m.RecordWebSocketDisconnect()
	m.RecordNotificationSent()
	m.RecordNotificationDropped()

	if m.EventsReceivedTotal != 3 {
		t.Errorf("expected 3 events, got %d", m.EventsReceivedTotal)
	}
	if m.EventCount("supplier-call") != 2 {
		t.Errorf("expected 2 supplier-call events, got %d", m.EventCount("supplier-call"))
	}
	if m.GetActiveConnections() != 1 {
		t.Errorf("expected 1 active connection, got %d", m.GetActiveConnections())
	}
	if m.NotificationsDroppedTotal != 1 {
		t.Errorf("expected 1 dropped notification, got %d", m.NotificationsDroppedTotal)
	}
}

func TestHandlerOutput(t *testing.T) {
	m := newMetrics()
	m.RecordEvent("end-call")
	m.RecordSampleCycle(5 * time.Millisecond)
	m.RecordHTTPRequest("/health", 200, time.Millisecond)
	m.UpdateEngineStats(types.Snapshot{
		Agents: []types.AgentInfo{
			{AgentID: "a1", State: types.AgentInCall},
			{AgentID: "a2", State: types.AgentIdle},
		},
		Queue:        []types.QueueEntry{{SupplierID: "s2"}},
		Pairings:     map[string]string{"a1": "s1", "s1": "a1"},
		ServiceLevel: types.ServiceLevel{CurrentSL: 87.5},
		Totals:       types.EngineTotals{Offers: 4},
	})

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`callbridge_events_total{event="end-call"} 1`,
		"callbridge_agents_total 2",
		`callbridge_agents_by_state{state="in_call"} 1`,
		"callbridge_queue_depth 1",
		"callbridge_active_pairs 1",
		"callbridge_service_level_percent 87.500000",
		"callbridge_offers_total 4",
		"callbridge_sample_cycles_total 1",
		`callbridge_http_requests_total{endpoint="/health",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}
