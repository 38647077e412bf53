package status

import (
	"testing"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

func baseAgent(now time.Time) *types.FieldAgent {
	return &types.FieldAgent{
		ID:       "agent-1",
		Name:     "Test Agent",
		IsOnDuty: true,
		Device: types.DeviceInfo{
			BatteryLevel:   80,
			SignalStrength: 90,
			LastPingAt:     now,
		},
		Position: &types.AgentPosition{
			Point:     geo.Point{Lat: 52.52, Lng: 13.405},
			Timestamp: now,
		},
	}
}

func TestDetermine(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	deadline := now.Add(10 * time.Minute)

	tests := []struct {
		name           string
		modify         func(*types.FieldAgent)
		hasActiveRoute bool
		want           types.AgentStatus
	}{
		{
			name:   "default is available",
			modify: func(a *types.FieldAgent) {},
			want:   types.StatusAvailable,
		},
		{
			name: "stale ping means offline",
			modify: func(a *types.FieldAgent) {
				a.Device.LastPingAt = now.Add(-10 * time.Minute)
			},
			want: types.StatusOffline,
		},
		{
			name: "offline dominates everything else",
			modify: func(a *types.FieldAgent) {
				a.Device.LastPingAt = now.Add(-10 * time.Minute)
				a.IsOnDuty = false
				a.SlaDeadlineAt = &deadline
				a.Route = &types.AgentRoute{ID: "r1", EtaSeconds: 3600}
				a.Position.SpeedKmh = 40
			},
			hasActiveRoute: true,
			want:           types.StatusOffline,
		},
		{
			name: "eta past deadline means sla_at_risk",
			modify: func(a *types.FieldAgent) {
				a.SlaDeadlineAt = &deadline
				a.Route = &types.AgentRoute{ID: "r1", EtaSeconds: 1200} // 20 min vs 10 min left
			},
			hasActiveRoute: true,
			want:           types.StatusSlaAtRisk,
		},
		{
			name: "eta within deadline is not at risk",
			modify: func(a *types.FieldAgent) {
				a.SlaDeadlineAt = &deadline
				a.Route = &types.AgentRoute{ID: "r1", EtaSeconds: 300}
			},
			hasActiveRoute: true,
			want:           types.StatusAvailable,
		},
		{
			name: "sla risk requires an active route",
			modify: func(a *types.FieldAgent) {
				a.SlaDeadlineAt = &deadline
				a.Route = &types.AgentRoute{ID: "r1", EtaSeconds: 1200}
			},
			hasActiveRoute: false,
			want:           types.StatusAvailable,
		},
		{
			name: "off duty means on_break",
			modify: func(a *types.FieldAgent) {
				a.IsOnDuty = false
			},
			want: types.StatusOnBreak,
		},
		{
			name: "moving with route means in_transit",
			modify: func(a *types.FieldAgent) {
				a.Route = &types.AgentRoute{ID: "r1", EtaSeconds: 600}
				a.Position.SpeedKmh = 30
			},
			hasActiveRoute: true,
			want:           types.StatusInTransit,
		},
		{
			name: "moving without route is never in_transit",
			modify: func(a *types.FieldAgent) {
				a.Position.SpeedKmh = 30
			},
			hasActiveRoute: false,
			want:           types.StatusAvailable,
		},
		{
			name: "stopped at assigned site means in_service",
			modify: func(a *types.FieldAgent) {
				a.Position.SpeedKmh = 0.2
				a.AssignedTicketID = "ticket-9"
				a.CustomerSiteID = "site-4"
			},
			want: types.StatusInService,
		},
		{
			name: "stopped without assignment stays available",
			modify: func(a *types.FieldAgent) {
				a.Position.SpeedKmh = 0
			},
			want: types.StatusAvailable,
		},
		{
			name: "no position fix counts as stationary",
			modify: func(a *types.FieldAgent) {
				a.Position = nil
				a.AssignedTicketID = "ticket-9"
				a.CustomerSiteID = "site-4"
			},
			want: types.StatusInService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := baseAgent(now)
			tt.modify(agent)

			got := Determine(agent, now, tt.hasActiveRoute, cfg)
			if got != tt.want {
				t.Errorf("Determine() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetermineNoRouteNeverInTransit(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	// sweep speeds; without a route, in_transit must never come out
	for speed := 0.0; speed <= 120; speed += 10 {
		agent := baseAgent(now)
		agent.Position.SpeedKmh = speed

		if got := Determine(agent, now, false, cfg); got == types.StatusInTransit {
			t.Errorf("speed %.0f km/h without route produced in_transit", speed)
		}
	}
}

func TestIsWithinWorkingHours(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name       string
		start, end *time.Time
		now        time.Time
		want       bool
	}{
		{
			name: "no shift window is always within",
			now:  at(3, 0),
			want: true,
		},
		{
			name:  "inside day shift",
			start: ptr(at(9, 0)),
			end:   ptr(at(17, 0)),
			now:   at(12, 30),
			want:  true,
		},
		{
			name:  "before day shift",
			start: ptr(at(9, 0)),
			end:   ptr(at(17, 0)),
			now:   at(8, 59),
			want:  false,
		},
		{
			name:  "overnight shift late evening",
			start: ptr(at(22, 0)),
			end:   ptr(at(6, 0)),
			now:   at(23, 30),
			want:  true,
		},
		{
			name:  "overnight shift early morning",
			start: ptr(at(22, 0)),
			end:   ptr(at(6, 0)),
			now:   at(5, 0),
			want:  true,
		},
		{
			name:  "overnight shift midday gap",
			start: ptr(at(22, 0)),
			end:   ptr(at(6, 0)),
			now:   at(12, 0),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &types.FieldAgent{ShiftStartAt: tt.start, ShiftEndAt: tt.end}
			if got := IsWithinWorkingHours(agent, tt.now); got != tt.want {
				t.Errorf("IsWithinWorkingHours() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
