package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/sim"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type fakeSim struct {
	running bool
	started []sim.Scenario
	stats   sim.Stats
}

func (f *fakeSim) Start(sc sim.Scenario) error {
	if f.running {
		return sim.ErrAlreadyRunning
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	f.running = true
	f.started = append(f.started, sc)
	return nil
}

func (f *fakeSim) Stop() error {
	if !f.running {
		return sim.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeSim) Status() sim.Status { return sim.Status{Running: f.running} }

func (f *fakeSim) Stats() sim.Stats { return f.stats }

func setupTestAPI(running bool) (*fakeSim, *mux.Router) {
	fs := &fakeSim{running: running, stats: sim.Stats{CallsEnded: 7, Queued: 2}}
	api := NewAPI(fs, sim.DefaultScenario(), zerolog.Nop())

	router := mux.NewRouter()
	api.SetupRoutes(router)
	return fs, router
}

func do(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	_, router := setupTestAPI(false)

	w := do(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %s", body["status"])
	}
}

func TestStatusHandler(t *testing.T) {
	_, router := setupTestAPI(false)

	w := do(router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["running"] != false {
		t.Fatalf("expected running=false, got %v", body["running"])
	}
}

func TestStartHandler(t *testing.T) {
	fs, router := setupTestAPI(false)

	w := do(router, http.MethodPost, "/start", `{"agents": 50, "talkTime": "3s"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["agents"] != float64(50) {
		t.Fatalf("expected agents=50, got %v", body["agents"])
	}

	sc := fs.started[0]
	if sc.TalkTime.D() != 3*time.Second {
		t.Errorf("expected talk time override, got %s", sc.TalkTime)
	}
	if sc.Suppliers != sim.DefaultScenario().Suppliers {
		t.Errorf("expected default suppliers, got %d", sc.Suppliers)
	}
}

func TestStartHandler_EmptyBodyUsesBase(t *testing.T) {
	fs, router := setupTestAPI(false)

	w := do(router, http.MethodPost, "/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fs.started[0].Agents != sim.DefaultScenario().Agents {
		t.Errorf("expected base scenario, got %+v", fs.started[0])
	}
}

func TestStartHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		body    string
		want    int
	}{
		{"already running", true, `{"agents": 5}`, http.StatusConflict},
		{"invalid scenario", false, `{"rejectRate": 3}`, http.StatusBadRequest},
		{"malformed body", false, `{"agents":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := setupTestAPI(tt.running)
			w := do(router, http.MethodPost, "/start", tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestStopHandler(t *testing.T) {
	_, router := setupTestAPI(true)

	if w := do(router, http.MethodPost, "/stop", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(router, http.MethodPost, "/stop", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 once stopped, got %d", w.Code)
	}
}

func TestConfigHandler(t *testing.T) {
	fs, router := setupTestAPI(false)

	w := do(router, http.MethodPut, "/config", `{"suppliers": 40, "callGap": "1s"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/config", "")
	var sc sim.Scenario
	if err := json.NewDecoder(w.Body).Decode(&sc); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if sc.Suppliers != 40 || sc.CallGap.D() != time.Second {
		t.Errorf("expected updated config, got %+v", sc)
	}

	// the next start runs the updated base
	do(router, http.MethodPost, "/start", "")
	if fs.started[0].Suppliers != 40 {
		t.Errorf("expected start to use updated base, got %d", fs.started[0].Suppliers)
	}

	if w := do(router, http.MethodPut, "/config", `{"suppliers": 1}`); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", w.Code)
	}
}

func TestConfigHandler_Invalid(t *testing.T) {
	_, router := setupTestAPI(false)

	if w := do(router, http.MethodPut, "/config", `{"agents": -3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	_, router := setupTestAPI(true)

	w := do(router, http.MethodGet, "/stats", "")
	var st sim.Stats
	json.NewDecoder(w.Body).Decode(&st)
	if st.CallsEnded != 7 {
		t.Errorf("expected callsEnded=7, got %d", st.CallsEnded)
	}

	w = do(router, http.MethodGet, "/metrics", "")
	body := w.Body.String()
	for _, line := range []string{"callsim_running 1", "callsim_calls_ended_total 7", "callsim_queued_total 2"} {
		if !strings.Contains(body, line) {
			t.Errorf("expected %q in metrics output:\n%s", line, body)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, router := setupTestAPI(false)

	if w := do(router, http.MethodGet, "/start", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
