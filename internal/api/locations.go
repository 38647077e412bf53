package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// LocationHandler provides REST endpoints for device location reports
type LocationHandler struct {
	tracker *tracking.Tracker
	logger  zerolog.Logger
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(tracker *tracking.Tracker, logger zerolog.Logger) *LocationHandler {
	return &LocationHandler{
		tracker: tracker,
		logger:  logger.With().Str("component", "location_handler").Logger(),
	}
}

// UpdateLocation handles POST /api/tenants/{tenantId}/agents/{agentId}/location
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	agentID := chi.URLParam(r, "agentId")
	if tenantID == "" || agentID == "" {
		http.Error(w, "tenantId and agentId are required", http.StatusBadRequest)
		return
	}

	var report types.LocationReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	report.AgentID = agentID

	result, err := h.tracker.UpdateLocation(r.Context(), tenantID, report)
	if err != nil {
		h.writeUpdateError(w, err, tenantID, agentID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// UpdateBatch handles POST /api/tenants/{tenantId}/locations/batch
//
// Items are processed independently so one bad report never blocks the rest
// of the batch.
func (h *LocationHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}

	var reports []types.LocationReport
	if err := json.NewDecoder(r.Body).Decode(&reports); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(reports) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	result := h.tracker.UpdateMultipleAgentLocations(r.Context(), tenantID, reports)

	h.logger.Debug().
		Str("tenant_id", tenantID).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailureCount).
		Msg("batch processed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetHistory handles GET /api/tenants/{tenantId}/agents/{agentId}/history?from=&to=
//
// from/to are RFC3339 timestamps; both default to an open bound.
func (h *LocationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	agentID := chi.URLParam(r, "agentId")
	if tenantID == "" || agentID == "" {
		http.Error(w, "tenantId and agentId are required", http.StatusBadRequest)
		return
	}

	from, ok := parseTimeParam(w, r, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to", time.Now())
	if !ok {
		return
	}

	entries, err := h.tracker.GetPositionHistory(r.Context(), tenantID, agentID, from, to)
	if err != nil {
		h.writeUpdateError(w, err, tenantID, agentID)
		return
	}

	if entries == nil {
		entries = []types.PositionHistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// writeUpdateError maps pipeline errors onto HTTP status codes
func (h *LocationHandler) writeUpdateError(w http.ResponseWriter, err error, tenantID, agentID string) {
	switch {
	case tracking.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tracking.ErrAgentNotFound):
		http.Error(w, "agent not found", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("agent_id", agentID).
			Msg("location update failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// parseTimeParam reads an RFC3339 query parameter, writing a 400 on bad input
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, name+" must be RFC3339", http.StatusBadRequest)
		return time.Time{}, false
	}
	return parsed, true
}
