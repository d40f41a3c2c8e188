package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/alerts"
	"github.com/dennisdiepolder/callbridge/internal/storage"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type fakeHub struct {
	connected map[string]bool
	closed    []string
}

func (f *fakeHub) ForceDisconnect(id string) bool {
	if !f.connected[id] {
		return false
	}
	f.closed = append(f.closed, id)
	return true
}

func (f *fakeHub) ClientCount() int { return len(f.connected) }

type fakeSource struct {
	snap types.Snapshot
}

func (f *fakeSource) Snapshot() types.Snapshot { return f.snap }

type failingStore struct {
	*storage.NoopStore
}

func (failingStore) GetCallRecords(string) ([]types.CallRecord, error) {
	return nil, errors.New("dynamo down")
}

func (failingStore) TruncateAll() error { return errors.New("dynamo down") }

func TestDisconnect(t *testing.T) {
	hub := &fakeHub{connected: map[string]bool{"conn-1": true}}
	h := NewConnectionsHandler(hub, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/internal/connections/{connId}/disconnect", h.Disconnect)

	tests := []struct {
		connID     string
		wantStatus int
	}{
		{"conn-1", http.StatusOK},
		{"conn-2", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/internal/connections/"+tt.connID+"/disconnect", nil)
		r.ServeHTTP(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: expected status %d, got %d", tt.connID, tt.wantStatus, rec.Code)
		}
	}

	if len(hub.closed) != 1 || hub.closed[0] != "conn-1" {
		t.Errorf("expected conn-1 closed, got %v", hub.closed)
	}
}

func TestGetCalls(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SaveCallRecord(types.CallRecord{DateKey: "2026-03-01", CallID: "c1", AgentID: "a1", SupplierID: "s1"})
	store.SaveCallRecord(types.CallRecord{DateKey: "2026-03-01", CallID: "c2", AgentID: "a2", SupplierID: "s1"})
	store.SaveCallRecord(types.CallRecord{DateKey: "2026-03-02", CallID: "c3", AgentID: "a1", SupplierID: "s2"})

	h := NewCallHistoryHandler(store, zerolog.Nop())

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all calls for a day", "?date=2026-03-01", http.StatusOK, 2},
		{"by agent", "?date=2026-03-01&agentId=a2", http.StatusOK, 1},
		{"by supplier", "?date=2026-03-01&supplierId=s1", http.StatusOK, 2},
		{"empty day", "?date=2026-01-01", http.StatusOK, 0},
		{"missing date", "", http.StatusBadRequest, 0},
		{"bad date", "?date=yesterday", http.StatusBadRequest, 0},
		{"both filters", "?date=2026-03-01&agentId=a1&supplierId=s1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetCalls(rec, httptest.NewRequest(http.MethodGet, "/internal/calls"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var records []types.CallRecord
			if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if len(records) != tt.wantCount {
				t.Errorf("expected %d records, got %d", tt.wantCount, len(records))
			}
		})
	}
}

func TestCallsStoreErrors(t *testing.T) {
	h := NewCallHistoryHandler(failingStore{storage.NewNoopStore()}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetCalls(rec, httptest.NewRequest(http.MethodGet, "/internal/calls?date=2026-03-01", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.WipeCalls(rec, httptest.NewRequest(http.MethodDelete, "/internal/calls", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestWipeCalls(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SaveCallRecord(types.CallRecord{DateKey: "2026-03-01", CallID: "c1"})

	h := NewCallHistoryHandler(store, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.WipeCalls(rec, httptest.NewRequest(http.MethodDelete, "/internal/calls", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if records, _ := store.GetCallRecords("2026-03-01"); len(records) != 0 {
		t.Errorf("expected store to be empty, got %d", len(records))
	}
}

func TestGetStats(t *testing.T) {
	now := time.Now()
	src := &fakeSource{snap: types.Snapshot{
		Timestamp: now,
		Agents: []types.AgentInfo{
			{AgentID: "a1", State: types.AgentOffered, StateStart: now.Add(-time.Minute), PartnerID: "s1"},
			{AgentID: "a2", State: types.AgentIdle, StateStart: now},
		},
		Queue:    []types.QueueEntry{{SupplierID: "s2", Position: 1, WaitSecs: 5}},
		Pairings: map[string]string{"a1": "s1", "s1": "a1"},
	}}
	hub := &fakeHub{connected: map[string]bool{"a1": true, "a2": true, "s1": true, "s2": true}}

	h := NewStatsHandler(src, hub, alerts.Thresholds{OfferUnanswered: 30 * time.Second, QueueWait: time.Minute})
	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/internal/stats", nil))

	var body struct {
		Connections   int            `json:"connections"`
		AlertCount    int            `json:"alertCount"`
		AgentsByState map[string]int `json:"agentsByState"`
		Queue         []types.QueueEntry
		Pairings      map[string]string
		Agents        []types.AgentInfo
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}

	if body.Connections != 4 {
		t.Errorf("expected 4 connections, got %d", body.Connections)
	}
	if body.AlertCount != 1 {
		t.Errorf("expected 1 alert, got %d", body.AlertCount)
	}
	if body.AgentsByState["offered"] != 1 || body.AgentsByState["idle"] != 1 {
		t.Errorf("unexpected state breakdown %v", body.AgentsByState)
	}
	if len(body.Queue) != 1 || body.Pairings["s1"] != "a1" {
		t.Errorf("unexpected queue/pairings %+v %+v", body.Queue, body.Pairings)
	}
	if len(body.Agents[0].Alerts) != 1 {
		t.Errorf("expected alert on a1, got %+v", body.Agents[0].Alerts)
	}
}

func TestSimProxy(t *testing.T) {
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/status":
			w.Write([]byte(`{"running":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/start":
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer sim.Close()

	h := NewAdminHandler(sim.URL, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetSimStatus(rec, httptest.NewRequest(http.MethodGet, "/internal/sim/status", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != `{"running":false}` {
		t.Errorf("unexpected status response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sim/start", strings.NewReader(`{"agents":2}`))
	h.StartSim(rec, req)
	if rec.Code != http.StatusAccepted || rec.Body.String() != `{"agents":2}` {
		t.Errorf("unexpected start response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.StopSim(rec, httptest.NewRequest(http.MethodPost, "/internal/sim/stop", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected upstream 404 to pass through, got %d", rec.Code)
	}
}

func TestSimProxyUnavailable(t *testing.T) {
	h := NewAdminHandler("http://127.0.0.1:1", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetSimStatus(rec, httptest.NewRequest(http.MethodGet, "/internal/sim/status", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}
