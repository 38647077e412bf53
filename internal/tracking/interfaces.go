package tracking

import (
	"context"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Repository is the storage contract the pipeline requires from its
// collaborator. Repository errors are propagated unmodified; retry policy
// belongs to the adapter behind this interface.
type Repository interface {
	// FindAgentByID returns the agent or ErrAgentNotFound
	FindAgentByID(ctx context.Context, tenantID, agentID string) (*types.FieldAgent, error)

	// UpdateAgentPosition stores the agent's current position and device info
	UpdateAgentPosition(ctx context.Context, tenantID, agentID string, position types.AgentPosition, device types.DeviceInfo) error

	// UpdateAgentStatus stores a status change together with its start time
	UpdateAgentStatus(ctx context.Context, tenantID, agentID string, status types.AgentStatus, statusSince time.Time) error

	// AppendPositionHistory appends to the immutable position log
	AppendPositionHistory(ctx context.Context, tenantID, agentID string, point geo.Point, timestamp time.Time) error

	// CheckGeofences returns the IDs of the geofences the agent's current
	// position falls inside. Geofence definitions are owned elsewhere.
	CheckGeofences(ctx context.Context, tenantID, agentID string) ([]string, error)

	// GetPositionHistory returns history entries in [from, to], oldest first.
	// Callers bound the window; the pipeline does not enforce a maximum.
	GetPositionHistory(ctx context.Context, tenantID, agentID string, from, to time.Time) ([]types.PositionHistoryEntry, error)

	// ListAgents returns a snapshot of all agents for a tenant
	ListAgents(ctx context.Context, tenantID string) ([]types.FieldAgent, error)
}

// EventSink receives audit events produced by the pipeline. The pipeline
// never persists or publishes events itself.
type EventSink interface {
	Emit(ctx context.Context, event types.LocationEvent)
}

// NoopSink discards audit events
type NoopSink struct{}

func (NoopSink) Emit(_ context.Context, _ types.LocationEvent) {}
