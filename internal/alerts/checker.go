package alerts

import (
	"fmt"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/sla"
	"github.com/helpgrid/fieldtrack/backend/internal/status"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

const lowBatteryThreshold = 15

// CheckAgentAlerts evaluates alert rules for a slice of agents,
// mutating each agent's Alerts field in place.
func CheckAgentAlerts(agents []types.FieldAgent, now time.Time, cfg status.Config) {
	for i := range agents {
		agents[i].Alerts = nil

		risk := sla.ForAgent(&agents[i], now)
		stale := now.Sub(agents[i].Device.LastPingAt) > cfg.OfflineThreshold

		if risk.IsAtRisk && stale {
			// an unreachable agent running late is the worst case: nobody
			// can be told to hurry up
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "sla_breach_unreachable",
				Severity: types.AlertCritical,
				Message:  fmt.Sprintf("SLA at risk (%s) and device silent for %s", risk.Level, formatDuration(now.Sub(agents[i].Device.LastPingAt))),
			})
		} else if risk.IsAtRisk {
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "sla_at_risk",
				Severity: types.AlertWarning,
				Message:  fmt.Sprintf("ETA %.0fmin vs %.0fmin remaining", risk.EtaMinutes, risk.MinutesRemaining),
			})
		} else if stale {
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "offline_long",
				Severity: types.AlertWarning,
				Message:  fmt.Sprintf("No device ping for %s", formatDuration(now.Sub(agents[i].Device.LastPingAt))),
			})
		}

		if agents[i].Device.BatteryLevel < lowBatteryThreshold {
			agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
				Rule:     "battery_low",
				Severity: types.AlertWarning,
				Message:  fmt.Sprintf("Battery at %d%%", agents[i].Device.BatteryLevel),
			})
		}
	}
}

// NeedsAttention reports whether the agent is in a state a dispatcher must
// act on immediately: SLA at risk while the device has gone silent.
func NeedsAttention(agent *types.FieldAgent, now time.Time, cfg status.Config) bool {
	risk := sla.ForAgent(agent, now)
	stale := now.Sub(agent.Device.LastPingAt) > cfg.OfflineThreshold
	return risk.IsAtRisk && stale
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
