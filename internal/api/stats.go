package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/callbridge/internal/alerts"
	"github.com/dennisdiepolder/callbridge/internal/types"
)

// SnapshotSource provides the current matching state
type SnapshotSource interface {
	Snapshot() types.Snapshot
}

// ClientCounter reports how many WebSocket connections are open
type ClientCounter interface {
	ClientCount() int
}

// StatsResponse is the body of GET /internal/stats
type StatsResponse struct {
	types.Snapshot
	Connections   int                      `json:"connections"`
	AgentsByState map[types.AgentState]int `json:"agentsByState"`
	AlertCount    int                      `json:"alertCount"`
}

// StatsHandler serves a live view of agents, queue and pairings
type StatsHandler struct {
	source     SnapshotSource
	clients    ClientCounter
	thresholds alerts.Thresholds
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(source SnapshotSource, clients ClientCounter, th alerts.Thresholds) *StatsHandler {
	return &StatsHandler{
		source:     source,
		clients:    clients,
		thresholds: th,
	}
}

// GetStats handles GET /internal/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	alertCount := alerts.Apply(&snap, h.thresholds)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		Snapshot:      snap,
		Connections:   h.clients.ClientCount(),
		AgentsByState: snap.AgentsByState(),
		AlertCount:    alertCount,
	})
}
