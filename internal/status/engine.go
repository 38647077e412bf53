// Package status infers an agent's operational status from current facts.
//
// Status is recomputed from the agent's fields on every evaluation rather
// than kept as a stored transition table; the prior status only matters for
// StatusSince bookkeeping, which the update pipeline owns.
package status

import (
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Config holds the tunable thresholds for status inference
type Config struct {
	// OfflineThreshold is how long a device may stay silent before the
	// agent is classified offline
	OfflineThreshold time.Duration

	// MovingSpeedKmh is the minimum speed that counts as in transit
	MovingSpeedKmh float64

	// StationarySpeedKmh is the maximum speed that counts as stopped
	StationarySpeedKmh float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		OfflineThreshold:   5 * time.Minute,
		MovingSpeedKmh:     5.0,
		StationarySpeedKmh: 1.0,
	}
}

// Determine returns the agent's status at the given instant.
//
// The checks are ordered by priority, first match wins:
//  1. stale device ping -> offline (a stale device cannot be trusted for
//     any other classification)
//  2. active route ETA past the SLA deadline -> sla_at_risk
//  3. off duty -> on_break
//  4. moving with an active route -> in_transit
//  5. stopped at an assigned customer site -> in_service
//  6. available
func Determine(agent *types.FieldAgent, now time.Time, hasActiveRoute bool, cfg Config) types.AgentStatus {
	if now.Sub(agent.Device.LastPingAt) > cfg.OfflineThreshold {
		return types.StatusOffline
	}

	if agent.SlaDeadlineAt != nil && hasActiveRoute && agent.Route != nil {
		eta := time.Duration(agent.Route.EtaSeconds) * time.Second
		if eta > agent.SlaDeadlineAt.Sub(now) {
			return types.StatusSlaAtRisk
		}
	}

	if !agent.IsOnDuty {
		return types.StatusOnBreak
	}

	speed := 0.0
	if agent.Position != nil {
		speed = agent.Position.SpeedKmh
	}

	if speed > cfg.MovingSpeedKmh && hasActiveRoute {
		return types.StatusInTransit
	}

	if speed < cfg.StationarySpeedKmh && agent.AssignedTicketID != "" && agent.CustomerSiteID != "" {
		return types.StatusInService
	}

	return types.StatusAvailable
}

// IsWithinWorkingHours reports whether now falls inside the agent's shift
// window, comparing hour-and-minute of day only. Overnight shifts (start
// later than end) wrap around midnight. Agents without a shift window are
// always considered within working hours.
//
// This predicate is exposed for filtering and reporting; it does not take
// part in the Determine decision order.
func IsWithinWorkingHours(agent *types.FieldAgent, now time.Time) bool {
	if agent.ShiftStartAt == nil || agent.ShiftEndAt == nil {
		return true
	}

	nowTotal := now.Hour()*60 + now.Minute()
	startTotal := agent.ShiftStartAt.Hour()*60 + agent.ShiftStartAt.Minute()
	endTotal := agent.ShiftEndAt.Hour()*60 + agent.ShiftEndAt.Minute()

	if startTotal > endTotal {
		// overnight shift, e.g. 22:00-06:00
		return nowTotal >= startTotal || nowTotal <= endTotal
	}
	return nowTotal >= startTotal && nowTotal <= endTotal
}
