package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/storage"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

// CallHistoryHandler serves persisted call records
type CallHistoryHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewCallHistoryHandler creates a new CallHistoryHandler
func NewCallHistoryHandler(store storage.Store, logger zerolog.Logger) *CallHistoryHandler {
	return &CallHistoryHandler{
		store:  store,
		logger: logger.With().Str("component", "call_history").Logger(),
	}
}

// GetCalls returns call records for one day, optionally narrowed to one agent or supplier
// GET /internal/calls?date=YYYY-MM-DD[&agentId=...|&supplierId=...]
func (h *CallHistoryHandler) GetCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date := q.Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	agentID, supplierID := q.Get("agentId"), q.Get("supplierId")

	var (
		records []types.CallRecord
		err     error
	)
	switch {
	case agentID != "" && supplierID != "":
		http.Error(w, "agentId and supplierId are mutually exclusive", http.StatusBadRequest)
		return
	case agentID != "":
		records, err = h.store.GetAgentCallsByDate(agentID, date)
	case supplierID != "":
		records, err = h.store.GetSupplierCallsByDate(supplierID, date)
	default:
		records, err = h.store.GetCallRecords(date)
	}
	if err != nil {
		h.logger.Error().Err(err).
			Str("date", date).
			Str("agent_id", agentID).
			Str("supplier_id", supplierID).
			Msg("failed to get call records")
		http.Error(w, "failed to retrieve calls", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.CallRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// WipeCalls truncates the call record store
// DELETE /internal/calls
func (h *CallHistoryHandler) WipeCalls(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate call records")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("call records truncated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "call records truncated",
	})
}
