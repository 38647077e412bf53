package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/cluster"
	"github.com/helpgrid/fieldtrack/backend/internal/config"
	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// MapHandler provides REST endpoints for the live map: on-demand cluster
// views and nearest-agent lookups for dispatchers
type MapHandler struct {
	repo   tracking.Repository
	config *config.Config
	logger zerolog.Logger
}

// NewMapHandler creates a new MapHandler
func NewMapHandler(repo tracking.Repository, cfg *config.Config, logger zerolog.Logger) *MapHandler {
	return &MapHandler{
		repo:   repo,
		config: cfg,
		logger: logger.With().Str("component", "map_handler").Logger(),
	}
}

// GetClusters handles GET /api/tenants/{tenantId}/map/clusters
//
// Query: north, south, east, west (optional, all four or none) and zoom.
func (h *MapHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}

	zoom := h.config.DefaultZoom
	if raw := r.URL.Query().Get("zoom"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "zoom must be an integer", http.StatusBadRequest)
			return
		}
		zoom = parsed
	}

	bounds, ok := parseBounds(w, r)
	if !ok {
		return
	}

	agents, err := h.repo.ListAgents(r.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to list agents")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	clusters := cluster.Build(agents, bounds, zoom, time.Now(), h.config.StatusConfig())
	if clusters == nil {
		clusters = []types.Cluster{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clusters)
}

// GetNearest handles GET /api/tenants/{tenantId}/agents/nearest
//
// Query: lat, lng (required), count (default 5), maxDistance in meters
// (default 10000). Only available agents are considered.
func (h *MapHandler) GetNearest(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}

	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		http.Error(w, "lat is required and must be a number", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		http.Error(w, "lng is required and must be a number", http.StatusBadRequest)
		return
	}

	target := geo.Point{Lat: lat, Lng: lng}
	if !target.Valid() {
		http.Error(w, "lat/lng out of range", http.StatusBadRequest)
		return
	}

	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count <= 0 {
			http.Error(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	maxDistance := 10000.0
	if raw := r.URL.Query().Get("maxDistance"); raw != "" {
		maxDistance, err = strconv.ParseFloat(raw, 64)
		if err != nil || maxDistance <= 0 {
			http.Error(w, "maxDistance must be a positive number", http.StatusBadRequest)
			return
		}
	}

	agents, err := h.repo.ListAgents(r.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to list agents")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	nearest := cluster.Nearest(target, agents, count, maxDistance)
	if nearest == nil {
		nearest = []types.NearbyAgent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nearest)
}

// GetAgents handles GET /api/tenants/{tenantId}/agents
func (h *MapHandler) GetAgents(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}

	agents, err := h.repo.ListAgents(r.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to list agents")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if agents == nil {
		agents = []types.FieldAgent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}

// GetAgent handles GET /api/tenants/{tenantId}/agents/{agentId}
func (h *MapHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	agentID := chi.URLParam(r, "agentId")
	if tenantID == "" || agentID == "" {
		http.Error(w, "tenantId and agentId are required", http.StatusBadRequest)
		return
	}

	agent, err := h.repo.FindAgentByID(r.Context(), tenantID, agentID)
	if err != nil {
		if errors.Is(err, tracking.ErrAgentNotFound) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("agent_id", agentID).
			Msg("failed to load agent")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agent)
}

// parseBounds reads the four viewport edges; all four present or none
func parseBounds(w http.ResponseWriter, r *http.Request) (*geo.Bounds, bool) {
	q := r.URL.Query()
	raw := [4]string{q.Get("north"), q.Get("south"), q.Get("east"), q.Get("west")}

	present := 0
	for _, v := range raw {
		if v != "" {
			present++
		}
	}
	if present == 0 {
		return nil, true
	}
	if present != 4 {
		http.Error(w, "north, south, east and west must all be provided together", http.StatusBadRequest)
		return nil, false
	}

	var vals [4]float64
	for i, v := range raw {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "viewport edges must be numbers", http.StatusBadRequest)
			return nil, false
		}
		vals[i] = parsed
	}

	return &geo.Bounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}, true
}
