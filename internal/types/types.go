package types

import (
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
)

// AgentStatus represents the current operational status of a field agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusInTransit AgentStatus = "in_transit"
	StatusInService AgentStatus = "in_service"
	StatusOnBreak   AgentStatus = "on_break"
	StatusSlaAtRisk AgentStatus = "sla_at_risk"
	StatusOffline   AgentStatus = "offline"
)

// AllStatuses returns all defined agent statuses
var AllStatuses = []AgentStatus{
	StatusAvailable,
	StatusInTransit,
	StatusInService,
	StatusOnBreak,
	StatusSlaAtRisk,
	StatusOffline,
}

// RiskLevel classifies how badly an agent's ETA overruns its SLA deadline
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ClusterSeverity is the rolled-up severity of a map cluster
type ClusterSeverity string

const (
	SeverityNormal   ClusterSeverity = "normal"
	SeverityWarning  ClusterSeverity = "warning"
	SeverityCritical ClusterSeverity = "critical"
)

// AlertSeverity represents the severity of an agent alert
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// AgentAlert represents an alert condition for an agent
type AgentAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// DeviceInfo holds the mobile device telemetry that drives offline detection
type DeviceInfo struct {
	BatteryLevel   int       `json:"batteryLevel"`   // 0-100
	SignalStrength int       `json:"signalStrength"` // 0-100
	LastPingAt     time.Time `json:"lastPingAt"`
}

// Waypoint is a single ordered stop on an agent's route
type Waypoint struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Order       int     `json:"order"`
	IsCompleted bool    `json:"isCompleted"`
}

// AgentRoute is the active navigation route owned by an agent.
// It is replaced wholesale on route reassignment, never patched.
type AgentRoute struct {
	ID             string     `json:"id"`
	EtaSeconds     int        `json:"etaSeconds"`
	DistanceMeters int        `json:"distanceMeters"`
	Waypoints      []Waypoint `json:"waypoints"`
}

// AgentPosition is the last accepted GPS fix plus motion data
type AgentPosition struct {
	geo.Point
	HeadingDegrees float64   `json:"headingDegrees"`
	SpeedKmh       float64   `json:"speedKmh"`
	Timestamp      time.Time `json:"timestamp"`
}

// FieldAgent is the aggregate root for a tracked field technician.
//
// StatusSince advances only when Status actually changes; no-op status writes
// must preserve it, because dwell-time inference depends on it.
// Position.Timestamp is monotonically non-decreasing per agent.
type FieldAgent struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Team   string   `json:"team"`
	Skills []string `json:"skills,omitempty"`

	Status      AgentStatus `json:"status"`
	StatusSince time.Time   `json:"statusSince"`

	Position *AgentPosition `json:"position,omitempty"`
	Route    *AgentRoute    `json:"currentRoute,omitempty"`
	Device   DeviceInfo     `json:"device"`

	AssignedTicketID string     `json:"assignedTicketId,omitempty"`
	CustomerSiteID   string     `json:"customerSiteId,omitempty"`
	SlaDeadlineAt    *time.Time `json:"slaDeadlineAt,omitempty"`

	ShiftStartAt *time.Time `json:"shiftStartAt,omitempty"`
	ShiftEndAt   *time.Time `json:"shiftEndAt,omitempty"`
	IsOnDuty     bool       `json:"isOnDuty"`

	Alerts []AgentAlert `json:"alerts,omitempty"`
}

// HasActiveRoute reports whether the agent currently owns a route
func (a *FieldAgent) HasActiveRoute() bool {
	return a.Route != nil
}

// HasLocation reports whether the agent has reported at least one position
func (a *FieldAgent) HasLocation() bool {
	return a.Position != nil
}

// Location returns the agent's last known point; zero value if none reported
func (a *FieldAgent) Location() geo.Point {
	if a.Position == nil {
		return geo.Point{}
	}
	return a.Position.Point
}

// Cluster is a rendering-time grouping of nearby agents at a zoom level
type Cluster struct {
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Count       int             `json:"count"`
	MaxSeverity ClusterSeverity `json:"maxSeverity"`
	Agents      []FieldAgent    `json:"agents"`
}

// NearbyAgent pairs an agent with its distance from a query point
type NearbyAgent struct {
	Agent          FieldAgent `json:"agent"`
	DistanceMeters float64    `json:"distanceMeters"`
}

// PositionHistoryEntry is one immutable entry in the append-only position log
type PositionHistoryEntry struct {
	AgentID   string    `json:"agentId"`
	Point     geo.Point `json:"point"`
	Timestamp time.Time `json:"timestamp"`
}
