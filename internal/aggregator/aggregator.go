package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/alerts"
	"github.com/helpgrid/fieldtrack/backend/internal/cluster"
	"github.com/helpgrid/fieldtrack/backend/internal/config"
	"github.com/helpgrid/fieldtrack/backend/internal/metrics"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
	"github.com/helpgrid/fieldtrack/backend/internal/websocket"
)

// Aggregator periodically snapshots agent positions into map clusters and
// broadcasts them to connected dashboards
type Aggregator struct {
	repo    tracking.Repository
	hub     *websocket.Hub
	config  *config.Config
	tenants []string
	logger  zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(repo tracking.Repository, hub *websocket.Hub, cfg *config.Config, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		repo:    repo,
		hub:     hub,
		config:  cfg,
		tenants: cfg.SnapshotTenants,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start begins snapshotting agent state and broadcasting map updates
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.config.SnapshotInterval)
	defer ticker.Stop()

	m := metrics.Get()
	a.logger.Info().
		Dur("interval", a.config.SnapshotInterval).
		Strs("tenants", a.tenants).
		Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()
			clusterCount := 0

			for _, tenantID := range a.tenants {
				count, err := a.snapshotTenant(ctx, tenantID)
				if err != nil {
					a.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("snapshot cycle failed")
					m.RecordSnapshotError()
					continue
				}
				clusterCount += count
			}

			m.RecordSnapshotCycle(time.Since(cycleStart), clusterCount)
		}
	}
}

// snapshotTenant builds and broadcasts one tenant's map snapshot. Returns the
// number of clusters broadcast.
func (a *Aggregator) snapshotTenant(ctx context.Context, tenantID string) (int, error) {
	now := time.Now()

	agents, err := a.repo.ListAgents(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if len(agents) == 0 {
		return 0, nil
	}

	statusCfg := a.config.StatusConfig()

	// Refresh operational alerts before the snapshot goes out
	alerts.CheckAgentAlerts(agents, now, statusCfg)

	m := metrics.Get()
	m.UpdateAgentStats(agents)

	clusters := cluster.Build(agents, nil, a.config.DefaultZoom, now, statusCfg)

	snapshot := types.MapSnapshot{
		Type:      "map_snapshot",
		Timestamp: now,
		ZoomLevel: a.config.DefaultZoom,
		Clusters:  clusters,
		Summary:   summarize(agents),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, err
	}

	a.logger.Debug().
		Str("tenant_id", tenantID).
		Int("agents", len(agents)).
		Int("clusters", len(clusters)).
		Int("clients", a.hub.ClientCount()).
		Msg("snapshot broadcast")

	a.hub.Broadcast(data)
	return len(clusters), nil
}

// summarize counts agents per status for the snapshot header
func summarize(agents []types.FieldAgent) map[types.AgentStatus]int {
	summary := make(map[types.AgentStatus]int)
	for _, agent := range agents {
		summary[agent.Status]++
	}
	return summary
}
