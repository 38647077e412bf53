package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Location report metrics
	ReportsReceivedTotal int64
	ReportsAcceptedTotal int64
	ReportsStaleTotal    int64
	ReportsRejectedTotal int64

	// Inference metrics
	StatusChangesTotal  int64
	GeofenceEventsTotal int64

	// Batch metrics
	BatchReportsSucceededTotal int64
	BatchReportsFailedTotal    int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	activeConnections            int64

	// Aggregation metrics
	SnapshotCyclesTotal    int64
	SnapshotErrorsTotal    int64
	lastSnapshotDuration   time.Duration
	lastSnapshotClusterCnt int

	// Agent metrics
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			agentsByStatus:    make(map[types.AgentStatus]int),
			httpRequestsTotal: make(map[string]map[int]int64),
			startTime:         time.Now(),
		}
	})
	return instance
}

// RecordReportReceived increments the reports received counter
func (m *Metrics) RecordReportReceived() {
	m.mu.Lock()
	m.ReportsReceivedTotal++
	m.mu.Unlock()
}

// RecordReportAccepted increments the reports accepted counter
func (m *Metrics) RecordReportAccepted() {
	m.mu.Lock()
	m.ReportsAcceptedTotal++
	m.mu.Unlock()
}

// RecordReportStale increments the stale (no-op) report counter
func (m *Metrics) RecordReportStale() {
	m.mu.Lock()
	m.ReportsStaleTotal++
	m.mu.Unlock()
}

// RecordReportRejected increments the rejected report counter
func (m *Metrics) RecordReportRejected() {
	m.mu.Lock()
	m.ReportsRejectedTotal++
	m.mu.Unlock()
}

// RecordStatusChange increments the inferred status change counter
func (m *Metrics) RecordStatusChange() {
	m.mu.Lock()
	m.StatusChangesTotal++
	m.mu.Unlock()
}

// RecordGeofenceHits adds to the geofence containment counter
func (m *Metrics) RecordGeofenceHits(n int) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	m.GeofenceEventsTotal += int64(n)
	m.mu.Unlock()
}

// RecordBatch records the outcome of a bulk location sync
func (m *Metrics) RecordBatch(succeeded, failed int) {
	m.mu.Lock()
	m.BatchReportsSucceededTotal += int64(succeeded)
	m.BatchReportsFailedTotal += int64(failed)
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordSnapshotCycle records one live-map aggregation cycle
func (m *Metrics) RecordSnapshotCycle(duration time.Duration, clusters int) {
	m.mu.Lock()
	m.SnapshotCyclesTotal++
	m.lastSnapshotDuration = duration
	m.lastSnapshotClusterCnt = clusters
	m.mu.Unlock()
}

// RecordSnapshotError increments the aggregation error counter
func (m *Metrics) RecordSnapshotError() {
	m.mu.Lock()
	m.SnapshotErrorsTotal++
	m.mu.Unlock()
}

// UpdateAgentStats updates agent distribution metrics
func (m *Metrics) UpdateAgentStats(agents []types.FieldAgent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)

	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("fieldtrack_uptime_seconds", time.Since(m.startTime).Seconds())

		// Report metrics
		write("fieldtrack_reports_received_total", m.ReportsReceivedTotal)
		write("fieldtrack_reports_accepted_total", m.ReportsAcceptedTotal)
		write("fieldtrack_reports_stale_total", m.ReportsStaleTotal)
		write("fieldtrack_reports_rejected_total", m.ReportsRejectedTotal)

		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("fieldtrack_reports_per_second", float64(m.ReportsReceivedTotal)/uptimeSeconds)
		}

		// Inference metrics
		write("fieldtrack_status_changes_total", m.StatusChangesTotal)
		write("fieldtrack_geofence_events_total", m.GeofenceEventsTotal)

		// Batch metrics
		write("fieldtrack_batch_reports_succeeded_total", m.BatchReportsSucceededTotal)
		write("fieldtrack_batch_reports_failed_total", m.BatchReportsFailedTotal)

		// WebSocket metrics
		write("fieldtrack_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("fieldtrack_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("fieldtrack_websocket_active_connections", m.activeConnections)
		write("fieldtrack_websocket_messages_total", m.WebSocketMessagesTotal)

		// Snapshot metrics
		write("fieldtrack_snapshot_cycles_total", m.SnapshotCyclesTotal)
		write("fieldtrack_snapshot_errors_total", m.SnapshotErrorsTotal)
		write("fieldtrack_snapshot_duration_seconds", m.lastSnapshotDuration.Seconds())
		write("fieldtrack_snapshot_clusters", m.lastSnapshotClusterCnt)

		// Agent metrics
		write("fieldtrack_agents_total", m.totalAgents)
		for status, count := range m.agentsByStatus {
			write("fieldtrack_agents_by_status", count, "status", string(status))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("fieldtrack_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
