package types

import "time"

// LocationReport is a single inbound GPS position report from a device
type LocationReport struct {
	AgentID        string    `json:"agentId"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
	HeadingDegrees float64   `json:"headingDegrees,omitempty"`
	SpeedKmh       float64   `json:"speedKmh,omitempty"`
	BatteryLevel   *int      `json:"batteryLevel,omitempty"`
	SignalStrength *int      `json:"signalStrength,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// LocationUpdateResult is the outcome of applying a single location report
type LocationUpdateResult struct {
	Agent         *FieldAgent  `json:"agent"`
	Stale         bool         `json:"stale"`
	StatusChanged bool         `json:"statusChanged"`
	NewStatus     *AgentStatus `json:"newStatus,omitempty"`
	GeofenceIDs   []string     `json:"geofenceIds,omitempty"`
}

// AgentUpdateOutcome is the per-report result within a batch update
type AgentUpdateOutcome struct {
	AgentID string                `json:"agentId"`
	Success bool                  `json:"success"`
	Error   string                `json:"error,omitempty"`
	Result  *LocationUpdateResult `json:"result,omitempty"`
}

// BatchUpdateResult summarizes a bulk location sync from an offline client
type BatchUpdateResult struct {
	SuccessCount int                  `json:"successCount"`
	FailureCount int                  `json:"failureCount"`
	Results      []AgentUpdateOutcome `json:"results"`
}

// LocationEvent is the audit record emitted after each accepted report.
// The pipeline produces it; persistence and publishing belong to the caller.
type LocationEvent struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	AgentID        string         `json:"agentId"`
	OldPosition    *AgentPosition `json:"oldPosition,omitempty"`
	NewPosition    AgentPosition  `json:"newPosition"`
	StatusChanged  bool           `json:"statusChanged"`
	NewStatus      *AgentStatus   `json:"newStatus,omitempty"`
	AccuracyMeters *float64       `json:"accuracyMeters,omitempty"`
	SpeedKmh       float64        `json:"speedKmh"`
	HeadingDegrees float64        `json:"headingDegrees"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

// MapSnapshot is the payload broadcast to dashboard clients every tick
type MapSnapshot struct {
	Type      string              `json:"type"` // always "map_snapshot"
	Timestamp time.Time           `json:"timestamp"`
	ZoomLevel int                 `json:"zoomLevel"`
	Clusters  []Cluster           `json:"clusters"`
	Summary   map[AgentStatus]int `json:"statusBreakdown"`
}

// ViewportRequest is sent by a dashboard client to scope its snapshots
type ViewportRequest struct {
	Type      string  `json:"type"` // "viewport"
	North     float64 `json:"north"`
	South     float64 `json:"south"`
	East      float64 `json:"east"`
	West      float64 `json:"west"`
	ZoomLevel int     `json:"zoomLevel"`
}
