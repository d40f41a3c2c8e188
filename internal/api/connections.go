package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Disconnecter closes a live connection by ID
type Disconnecter interface {
	ForceDisconnect(id string) bool
}

// ConnectionsHandler provides REST endpoints for connection control actions
type ConnectionsHandler struct {
	hub    Disconnecter
	logger zerolog.Logger
}

// NewConnectionsHandler creates a new ConnectionsHandler
func NewConnectionsHandler(hub Disconnecter, logger zerolog.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		hub:    hub,
		logger: logger.With().Str("component", "connections").Logger(),
	}
}

// Disconnect handles POST /internal/connections/{connId}/disconnect.
// The matching engine cleans up exactly as if the peer had dropped.
func (h *ConnectionsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "connId")
	if connID == "" {
		http.Error(w, "connId is required", http.StatusBadRequest)
		return
	}

	if !h.hub.ForceDisconnect(connID) {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}

	h.logger.Info().
		Str("conn_id", connID).
		Msg("force-disconnected connection via API")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "connection closed",
		"connId":  connID,
	})
}
