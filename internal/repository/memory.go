package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// Geofence is a circular region definition held by the repository. The
// tracking core only ever sees the IDs a position falls inside.
type Geofence struct {
	ID           string    `json:"id"`
	Center       geo.Point `json:"center"`
	RadiusMeters float64   `json:"radiusMeters"`
}

// Memory is an in-process repository used for local development and tests
type Memory struct {
	mu        sync.RWMutex
	agents    map[string]map[string]*types.FieldAgent            // tenantID -> agentID -> agent
	history   map[string]map[string][]types.PositionHistoryEntry // tenantID -> agentID -> entries
	geofences map[string][]Geofence                              // tenantID -> fences
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		agents:    make(map[string]map[string]*types.FieldAgent),
		history:   make(map[string]map[string][]types.PositionHistoryEntry),
		geofences: make(map[string][]Geofence),
	}
}

// PutAgent stores or replaces an agent (provisioning path, outside the
// tracking core's lifecycle)
func (m *Memory) PutAgent(tenantID string, agent types.FieldAgent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agents[tenantID] == nil {
		m.agents[tenantID] = make(map[string]*types.FieldAgent)
	}
	copied := agent
	m.agents[tenantID][agent.ID] = &copied
}

// SetGeofences replaces a tenant's geofence definitions
func (m *Memory) SetGeofences(tenantID string, fences []Geofence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geofences[tenantID] = fences
}

func (m *Memory) FindAgentByID(_ context.Context, tenantID, agentID string) (*types.FieldAgent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[tenantID][agentID]
	if !ok {
		return nil, tracking.ErrAgentNotFound
	}
	copied := *agent
	return &copied, nil
}

func (m *Memory) UpdateAgentPosition(_ context.Context, tenantID, agentID string, position types.AgentPosition, device types.DeviceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[tenantID][agentID]
	if !ok {
		return tracking.ErrAgentNotFound
	}
	agent.Position = &position
	agent.Device = device
	return nil
}

func (m *Memory) UpdateAgentStatus(_ context.Context, tenantID, agentID string, status types.AgentStatus, statusSince time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[tenantID][agentID]
	if !ok {
		return tracking.ErrAgentNotFound
	}
	agent.Status = status
	agent.StatusSince = statusSince
	return nil
}

func (m *Memory) AppendPositionHistory(_ context.Context, tenantID, agentID string, point geo.Point, timestamp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.history[tenantID] == nil {
		m.history[tenantID] = make(map[string][]types.PositionHistoryEntry)
	}
	m.history[tenantID][agentID] = append(m.history[tenantID][agentID], types.PositionHistoryEntry{
		AgentID:   agentID,
		Point:     point,
		Timestamp: timestamp,
	})
	return nil
}

func (m *Memory) CheckGeofences(_ context.Context, tenantID, agentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[tenantID][agentID]
	if !ok {
		return nil, tracking.ErrAgentNotFound
	}
	if agent.Position == nil {
		return nil, nil
	}

	var inside []string
	for _, fence := range m.geofences[tenantID] {
		if geo.Distance(agent.Position.Point, fence.Center) <= fence.RadiusMeters {
			inside = append(inside, fence.ID)
		}
	}
	return inside, nil
}

func (m *Memory) GetPositionHistory(_ context.Context, tenantID, agentID string, from, to time.Time) ([]types.PositionHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []types.PositionHistoryEntry
	for _, entry := range m.history[tenantID][agentID] {
		if entry.Timestamp.Before(from) || entry.Timestamp.After(to) {
			continue
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (m *Memory) ListAgents(_ context.Context, tenantID string) ([]types.FieldAgent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]types.FieldAgent, 0, len(m.agents[tenantID]))
	for _, agent := range m.agents[tenantID] {
		agents = append(agents, *agent)
	}
	// stable order so clustering over a snapshot is deterministic
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}
