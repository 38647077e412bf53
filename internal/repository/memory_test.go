package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

func TestMemoryFindAgentByID(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	repo.PutAgent("tenant-1", types.FieldAgent{ID: "agent-1", Name: "Ana"})

	agent, err := repo.FindAgentByID(ctx, "tenant-1", "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Name != "Ana" {
		t.Errorf("expected name Ana, got %s", agent.Name)
	}

	// unknown agent
	if _, err := repo.FindAgentByID(ctx, "tenant-1", "ghost"); err != tracking.ErrAgentNotFound {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}

	// tenants are isolated
	if _, err := repo.FindAgentByID(ctx, "tenant-2", "agent-1"); err != tracking.ErrAgentNotFound {
		t.Errorf("expected ErrAgentNotFound across tenants, got %v", err)
	}
}

func TestMemoryFindReturnsCopy(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	repo.PutAgent("tenant-1", types.FieldAgent{ID: "agent-1", Status: types.StatusAvailable})

	agent, _ := repo.FindAgentByID(ctx, "tenant-1", "agent-1")
	agent.Status = types.StatusOffline

	again, _ := repo.FindAgentByID(ctx, "tenant-1", "agent-1")
	if again.Status != types.StatusAvailable {
		t.Error("mutating a returned agent leaked into the store")
	}
}

func TestMemoryUpdateStatusPreservesOtherFields(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	now := time.Now()

	repo.PutAgent("tenant-1", types.FieldAgent{ID: "agent-1", Name: "Ana", Status: types.StatusAvailable})

	if err := repo.UpdateAgentStatus(ctx, "tenant-1", "agent-1", types.StatusInTransit, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent, _ := repo.FindAgentByID(ctx, "tenant-1", "agent-1")
	if agent.Status != types.StatusInTransit {
		t.Errorf("status = %s, want in_transit", agent.Status)
	}
	if !agent.StatusSince.Equal(now) {
		t.Errorf("statusSince = %v, want %v", agent.StatusSince, now)
	}
	if agent.Name != "Ana" {
		t.Errorf("name clobbered: %s", agent.Name)
	}
}

func TestMemoryPositionHistoryRange(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	repo.PutAgent("tenant-1", types.FieldAgent{ID: "agent-1"})

	// append out of order; queries must come back oldest first
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		err := repo.AppendPositionHistory(ctx, "tenant-1", "agent-1",
			geo.Point{Lat: 52.52, Lng: 13.405}, base.Add(offset))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	entries, err := repo.GetPositionHistory(ctx, "tenant-1", "agent-1", base, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(entries))
	}
	if !entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Error("entries not sorted oldest first")
	}
}

func TestMemoryCheckGeofences(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	repo.PutAgent("tenant-1", types.FieldAgent{
		ID: "agent-1",
		Position: &types.AgentPosition{
			Point:     geo.Point{Lat: 52.5200, Lng: 13.4050},
			Timestamp: time.Now(),
		},
	})
	repo.SetGeofences("tenant-1", []Geofence{
		{ID: "hq", Center: geo.Point{Lat: 52.5205, Lng: 13.4050}, RadiusMeters: 200},
		{ID: "depot", Center: geo.Point{Lat: 52.60, Lng: 13.40}, RadiusMeters: 100},
	})

	inside, err := repo.CheckGeofences(ctx, "tenant-1", "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inside) != 1 || inside[0] != "hq" {
		t.Errorf("expected [hq], got %v", inside)
	}
}

func TestMemoryListAgentsSorted(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		repo.PutAgent("tenant-1", types.FieldAgent{ID: id})
	}

	agents, err := repo.ListAgents(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	for i, want := range []string{"a", "b", "c"} {
		if agents[i].ID != want {
			t.Errorf("agents[%d] = %s, want %s", i, agents[i].ID, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	os.Clearenv()

	cfg := LoadConfig()
	if cfg.Mode != ModeMemory {
		t.Errorf("default mode = %s, want memory", cfg.Mode)
	}
	if cfg.AgentsTable != "fieldtrack-agents" {
		t.Errorf("unexpected agents table default: %s", cfg.AgentsTable)
	}

	os.Setenv("REPO_MODE", "local")
	os.Setenv("DYNAMO_AGENTS_TABLE", "custom-agents")
	defer os.Clearenv()

	cfg = LoadConfig()
	if cfg.Mode != ModeLocal {
		t.Errorf("mode = %s, want local", cfg.Mode)
	}
	if cfg.AgentsTable != "custom-agents" {
		t.Errorf("agents table = %s, want custom-agents", cfg.AgentsTable)
	}
}
