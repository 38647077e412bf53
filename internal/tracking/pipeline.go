// Package tracking orchestrates inbound GPS location reports: validation,
// staleness guarding, position/status persistence, geofence evaluation and
// audit event emission.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/metrics"
	"github.com/helpgrid/fieldtrack/backend/internal/status"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Tracker is the location update pipeline
type Tracker struct {
	repo   Repository
	sink   EventSink
	cfg    status.Config
	locks  *keyLocks
	logger zerolog.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewTracker creates a new Tracker. A nil sink discards audit events.
func NewTracker(repo Repository, sink EventSink, cfg status.Config, logger zerolog.Logger) *Tracker {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Tracker{
		repo:   repo,
		sink:   sink,
		cfg:    cfg,
		locks:  newKeyLocks(),
		logger: logger.With().Str("component", "tracker").Logger(),
		now:    time.Now,
	}
}

// UpdateLocation applies a single location report for an agent.
//
// Reports carrying a timestamp at or before the stored position are
// accepted as a no-op on position (device telemetry still updates) rather
// than rejected; mobile networks deliver out of order routinely.
func (t *Tracker) UpdateLocation(ctx context.Context, tenantID string, report types.LocationReport) (*types.LocationUpdateResult, error) {
	m := metrics.Get()
	m.RecordReportReceived()

	if err := validateReport(report); err != nil {
		m.RecordReportRejected()
		return nil, err
	}

	// serialize per agent: the status recompute below reads then writes
	// the agent's own prior state
	mu := t.locks.lock(tenantID + "/" + report.AgentID)
	defer mu.Unlock()

	agent, err := t.repo.FindAgentByID(ctx, tenantID, report.AgentID)
	if err != nil {
		if err == ErrAgentNotFound {
			m.RecordReportRejected()
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("find agent: %w", err)
	}

	now := t.now()

	// staleness guard: never let the current position regress
	if agent.Position != nil && !report.Timestamp.After(agent.Position.Timestamp) {
		if err := t.applyTelemetry(ctx, tenantID, agent, report, now); err != nil {
			return nil, err
		}
		m.RecordReportStale()
		t.logger.Debug().
			Str("agent_id", report.AgentID).
			Time("report_ts", report.Timestamp).
			Time("stored_ts", agent.Position.Timestamp).
			Msg("stale report, position unchanged")
		return &types.LocationUpdateResult{Agent: agent, Stale: true}, nil
	}

	oldPosition := agent.Position

	newPosition := types.AgentPosition{
		Point: geo.Point{
			Lat:            report.Lat,
			Lng:            report.Lng,
			AccuracyMeters: report.AccuracyMeters,
		},
		HeadingDegrees: report.HeadingDegrees,
		SpeedKmh:       report.SpeedKmh,
		Timestamp:      report.Timestamp,
	}

	agent.Position = &newPosition
	agent.Device.LastPingAt = now
	if report.BatteryLevel != nil {
		agent.Device.BatteryLevel = *report.BatteryLevel
	}
	if report.SignalStrength != nil {
		agent.Device.SignalStrength = *report.SignalStrength
	}

	if err := t.repo.UpdateAgentPosition(ctx, tenantID, agent.ID, newPosition, agent.Device); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}
	if err := t.repo.AppendPositionHistory(ctx, tenantID, agent.ID, newPosition.Point, report.Timestamp); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	result := &types.LocationUpdateResult{Agent: agent}

	// recompute status from the updated agent view
	newStatus := status.Determine(agent, now, agent.HasActiveRoute(), t.cfg)
	if newStatus != agent.Status {
		if err := t.repo.UpdateAgentStatus(ctx, tenantID, agent.ID, newStatus, now); err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		agent.Status = newStatus
		agent.StatusSince = now
		result.StatusChanged = true
		result.NewStatus = &newStatus
		m.RecordStatusChange()
	}

	geofenceIDs, err := t.repo.CheckGeofences(ctx, tenantID, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("check geofences: %w", err)
	}
	result.GeofenceIDs = geofenceIDs
	m.RecordGeofenceHits(len(geofenceIDs))

	t.sink.Emit(ctx, types.LocationEvent{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		AgentID:        agent.ID,
		OldPosition:    oldPosition,
		NewPosition:    newPosition,
		StatusChanged:  result.StatusChanged,
		NewStatus:      result.NewStatus,
		AccuracyMeters: report.AccuracyMeters,
		SpeedKmh:       report.SpeedKmh,
		HeadingDegrees: report.HeadingDegrees,
		OccurredAt:     now,
	})

	m.RecordReportAccepted()
	return result, nil
}

// applyTelemetry updates device liveness for a stale report. The ping still
// proves the device is alive even when the fix itself is old.
func (t *Tracker) applyTelemetry(ctx context.Context, tenantID string, agent *types.FieldAgent, report types.LocationReport, now time.Time) error {
	agent.Device.LastPingAt = now
	if report.BatteryLevel != nil {
		agent.Device.BatteryLevel = *report.BatteryLevel
	}
	if report.SignalStrength != nil {
		agent.Device.SignalStrength = *report.SignalStrength
	}
	if err := t.repo.UpdateAgentPosition(ctx, tenantID, agent.ID, *agent.Position, agent.Device); err != nil {
		return fmt.Errorf("update telemetry: %w", err)
	}
	return nil
}

// UpdateMultipleAgentLocations applies reports independently; one report's
// failure never aborts the rest. This is the bulk sync path for offline
// mobile clients and runs to completion over all supplied reports.
func (t *Tracker) UpdateMultipleAgentLocations(ctx context.Context, tenantID string, reports []types.LocationReport) types.BatchUpdateResult {
	batch := types.BatchUpdateResult{
		Results: make([]types.AgentUpdateOutcome, 0, len(reports)),
	}

	for _, report := range reports {
		outcome := types.AgentUpdateOutcome{AgentID: report.AgentID}

		result, err := t.UpdateLocation(ctx, tenantID, report)
		if err != nil {
			outcome.Error = err.Error()
			batch.FailureCount++
			t.logger.Warn().
				Str("agent_id", report.AgentID).
				Err(err).
				Msg("batch report failed")
		} else {
			outcome.Success = true
			outcome.Result = result
			batch.SuccessCount++
		}

		batch.Results = append(batch.Results, outcome)
	}

	metrics.Get().RecordBatch(batch.SuccessCount, batch.FailureCount)
	return batch
}

// GetPositionHistory exposes the append-only log for a bounded time window
func (t *Tracker) GetPositionHistory(ctx context.Context, tenantID, agentID string, from, to time.Time) ([]types.PositionHistoryEntry, error) {
	entries, err := t.repo.GetPositionHistory(ctx, tenantID, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get position history: %w", err)
	}
	return entries, nil
}

// DetermineAgentStatus evaluates the inference engine against an agent
// without persisting anything (dry-run / what-if evaluation).
func (t *Tracker) DetermineAgentStatus(agent *types.FieldAgent, hasActiveRoute bool) types.AgentStatus {
	return status.Determine(agent, t.now(), hasActiveRoute, t.cfg)
}

func validateReport(report types.LocationReport) error {
	if report.AgentID == "" {
		return &ValidationError{Field: "agentId", Reason: "required"}
	}
	if report.Lat < -90 || report.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("%.6f outside [-90,90]", report.Lat)}
	}
	if report.Lng < -180 || report.Lng > 180 {
		return &ValidationError{Field: "lng", Reason: fmt.Sprintf("%.6f outside [-180,180]", report.Lng)}
	}
	if report.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	return nil
}
