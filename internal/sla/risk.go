// Package sla computes SLA-breach risk from live ETA vs. deadline.
package sla

import (
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Risk is the result of an SLA risk evaluation. It is a pure classification;
// callers decide whether to persist it.
type Risk struct {
	IsAtRisk         bool            `json:"isAtRisk"`
	MinutesRemaining float64         `json:"minutesRemaining"`
	EtaMinutes       float64         `json:"etaMinutes"`
	Level            types.RiskLevel `json:"riskLevel"`
}

// Overrun thresholds in minutes for the risk level classification
const (
	highOverrunMinutes   = 30.0
	mediumOverrunMinutes = 15.0
)

// Calculate classifies SLA-breach risk at the given instant. If either the
// deadline or the ETA is absent there is nothing to measure and the result
// is no risk.
func Calculate(deadline *time.Time, etaSeconds *int, now time.Time) Risk {
	if deadline == nil || etaSeconds == nil {
		return Risk{Level: types.RiskNone}
	}

	minutesRemaining := deadline.Sub(now).Minutes()
	if minutesRemaining < 0 {
		minutesRemaining = 0
	}

	etaMinutes := float64(*etaSeconds) / 60.0

	risk := Risk{
		MinutesRemaining: minutesRemaining,
		EtaMinutes:       etaMinutes,
		Level:            types.RiskNone,
	}

	if etaMinutes <= minutesRemaining {
		return risk
	}

	risk.IsAtRisk = true
	overrun := etaMinutes - minutesRemaining
	switch {
	case overrun > highOverrunMinutes:
		risk.Level = types.RiskHigh
	case overrun > mediumOverrunMinutes:
		risk.Level = types.RiskMedium
	default:
		risk.Level = types.RiskLow
	}
	return risk
}

// ForAgent evaluates the agent's current route ETA against its SLA deadline
func ForAgent(agent *types.FieldAgent, now time.Time) Risk {
	var eta *int
	if agent.Route != nil {
		eta = &agent.Route.EtaSeconds
	}
	return Calculate(agent.SlaDeadlineAt, eta, now)
}
