package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/sim"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Simulation is the part of the simulator the control API drives
type Simulation interface {
	Start(sc sim.Scenario) error
	Stop() error
	Status() sim.Status
	Stats() sim.Stats
}

// API provides the HTTP control interface for the simulator
type API struct {
	sim    Simulation
	mu     sync.RWMutex
	base   sim.Scenario
	logger zerolog.Logger
}

// NewAPI creates a control API; base is the scenario /start runs when the
// request body does not override it
func NewAPI(s Simulation, base sim.Scenario, logger zerolog.Logger) *API {
	return &API{
		sim:    s,
		base:   base,
		logger: logger,
	}
}

// SetupRoutes configures HTTP routes
func (api *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/status", api.statusHandler).Methods("GET")
	router.HandleFunc("/start", api.startHandler).Methods("POST")
	router.HandleFunc("/stop", api.stopHandler).Methods("POST")
	router.HandleFunc("/config", api.configHandler).Methods("GET", "PUT")
	router.HandleFunc("/stats", api.statsHandler).Methods("GET")
	router.HandleFunc("/metrics", api.metricsHandler).Methods("GET")
}

func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (api *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.sim.Status())
}

// startHandler starts a run. Fields present in the JSON body override the
// base scenario for this run only.
func (api *API) startHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	sc := api.base
	api.mu.RUnlock()

	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := api.sim.Start(sc); err != nil {
		switch {
		case errors.Is(err, sim.ErrAlreadyRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, sim.ErrInvalidScenario):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			api.logger.Error().Err(err).Msg("failed to start simulation")
			http.Error(w, "failed to start simulation", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "simulation started",
		"agents":    sc.Agents,
		"suppliers": sc.Suppliers,
	})
}

func (api *API) stopHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.sim.Stop(); err != nil {
		if errors.Is(err, sim.ErrNotRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		api.logger.Error().Err(err).Msg("failed to stop simulation")
		http.Error(w, "failed to stop simulation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "simulation stopped"})
}

// configHandler gets or replaces the base scenario
func (api *API) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		api.mu.RLock()
		sc := api.base
		api.mu.RUnlock()
		writeJSON(w, http.StatusOK, sc)
		return
	}

	if api.sim.Status().Running {
		http.Error(w, "cannot change config while simulation is running", http.StatusConflict)
		return
	}

	api.mu.RLock()
	sc := api.base
	api.mu.RUnlock()

	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := sc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.mu.Lock()
	api.base = sc
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "configuration updated"})
}

func (api *API) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.sim.Stats())
}

// metricsHandler returns the run counters in Prometheus text format
func (api *API) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := api.sim.Stats()
	running := 0
	if api.sim.Status().Running {
		running = 1
	}

	metrics := map[string]int64{
		"callsim_running":              int64(running),
		"callsim_connected":            st.Connected,
		"callsim_dial_failures_total":  st.DialFailures,
		"callsim_registrations_total":  st.Registrations,
		"callsim_call_requests_total":  st.CallRequests,
		"callsim_queued_total":         st.Queued,
		"callsim_offers_total":         st.Offers,
		"callsim_accepts_total":        st.Accepts,
		"callsim_rejects_total":        st.Rejects,
		"callsim_calls_accepted_total": st.CallsAccepted,
		"callsim_calls_ended_total":    st.CallsEnded,
		"callsim_agents_lost_total":    st.AgentsLost,
		"callsim_signals_sent_total":   st.SignalsSent,
		"callsim_peers_connected":      st.PeersConnected,
		"callsim_peers_failed_total":   st.PeersFailed,
		"callsim_data_messages_total":  st.DataMessages,
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, name := range names {
		fmt.Fprintf(w, "%s %d\n", name, metrics[name])
	}
}

// Start serves the API on addr until ctx is cancelled
func (api *API) Start(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	api.SetupRoutes(router)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Msg("control API started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
