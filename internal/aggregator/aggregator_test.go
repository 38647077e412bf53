package aggregator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/config"
	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/repository"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
	"github.com/helpgrid/fieldtrack/backend/internal/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		SnapshotInterval:   50 * time.Millisecond,
		DefaultZoom:        12,
		SnapshotTenants:    []string{"tenant-1"},
		OfflineThreshold:   5 * time.Minute,
		MovingSpeedKmh:     5,
		StationarySpeedKmh: 1,
	}
}

func seedAgent(repo *repository.Memory, id string, lat, lng float64) {
	now := time.Now()
	repo.PutAgent("tenant-1", types.FieldAgent{
		ID:       id,
		Name:     "Agent " + id,
		Status:   types.StatusAvailable,
		IsOnDuty: true,
		Position: &types.AgentPosition{
			Point:     geo.Point{Lat: lat, Lng: lng},
			Timestamp: now,
		},
		Device: types.DeviceInfo{BatteryLevel: 80, LastPingAt: now},
	})
}

func TestSnapshotTenant(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	repo := repository.NewMemory()
	hub := websocket.NewHub(logger)

	seedAgent(repo, "a-1", 52.5200, 13.4050)
	seedAgent(repo, "a-2", 52.5201, 13.4051)

	agg := NewAggregator(repo, hub, testConfig(), logger)

	count, err := agg.snapshotTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count == 0 {
		t.Error("expected at least one cluster to be broadcast")
	}
}

func TestSnapshotTenantNoAgents(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	repo := repository.NewMemory()
	hub := websocket.NewHub(logger)

	agg := NewAggregator(repo, hub, testConfig(), logger)

	count, err := agg.snapshotTenant(context.Background(), "tenant-empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 clusters for empty tenant, got %d", count)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	repo := repository.NewMemory()
	hub := websocket.NewHub(logger)

	agg := NewAggregator(repo, hub, testConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("aggregator did not stop after context cancel")
	}
}

func TestSummarize(t *testing.T) {
	agents := []types.FieldAgent{
		{ID: "a", Status: types.StatusAvailable},
		{ID: "b", Status: types.StatusAvailable},
		{ID: "c", Status: types.StatusInTransit},
	}

	summary := summarize(agents)
	if summary[types.StatusAvailable] != 2 {
		t.Errorf("expected 2 available, got %d", summary[types.StatusAvailable])
	}
	if summary[types.StatusInTransit] != 1 {
		t.Errorf("expected 1 in_transit, got %d", summary[types.StatusInTransit])
	}
}
