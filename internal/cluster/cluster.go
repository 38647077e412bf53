// Package cluster groups agents into zoom-dependent spatial clusters for
// map rendering and answers nearest-agent queries.
package cluster

import (
	"sort"
	"time"

	"github.com/helpgrid/fieldtrack/backend/internal/alerts"
	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/status"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// RadiusForZoom returns the cluster radius in meters for a map zoom level.
// Higher zoom means tighter clusters.
func RadiusForZoom(zoom int) float64 {
	switch {
	case zoom >= 16:
		return 50
	case zoom >= 14:
		return 100
	case zoom >= 12:
		return 500
	case zoom >= 10:
		return 1000
	default:
		return 5000
	}
}

// Build groups agents into clusters for the given viewport and zoom level.
// Agents without a location, or outside the bounds when bounds are given,
// are skipped.
//
// The algorithm is a greedy single pass: each unassigned agent seeds a
// cluster and absorbs every remaining unassigned agent within the zoom
// radius of the seed. Clusters are not re-centered while absorbing, so the
// partition depends on input order. Callers that need a deterministic
// result sort agents by ID first; Build itself never reorders its input.
func Build(agents []types.FieldAgent, bounds *geo.Bounds, zoom int, now time.Time, cfg status.Config) []types.Cluster {
	radius := RadiusForZoom(zoom)

	candidates := make([]types.FieldAgent, 0, len(agents))
	for _, agent := range agents {
		if !agent.HasLocation() {
			continue
		}
		if bounds != nil && !bounds.Contains(agent.Location()) {
			continue
		}
		candidates = append(candidates, agent)
	}

	assigned := make([]bool, len(candidates))
	clusters := make([]types.Cluster, 0)

	for i := range candidates {
		if assigned[i] {
			continue
		}

		seed := candidates[i].Location()
		members := []types.FieldAgent{candidates[i]}
		assigned[i] = true

		for j := i + 1; j < len(candidates); j++ {
			if assigned[j] {
				continue
			}
			if geo.Distance(seed, candidates[j].Location()) <= radius {
				members = append(members, candidates[j])
				assigned[j] = true
			}
		}

		clusters = append(clusters, makeCluster(members, now, cfg))
	}

	return clusters
}

// makeCluster computes the arithmetic-mean center and severity roll-up.
// The mean is not geodesic-correct, which is acceptable at rendering scale.
func makeCluster(members []types.FieldAgent, now time.Time, cfg status.Config) types.Cluster {
	var sumLat, sumLng float64
	severity := types.SeverityNormal

	for i := range members {
		loc := members[i].Location()
		sumLat += loc.Lat
		sumLng += loc.Lng

		if alerts.NeedsAttention(&members[i], now, cfg) {
			severity = types.SeverityCritical
		} else if severity == types.SeverityNormal && members[i].Status == types.StatusSlaAtRisk {
			severity = types.SeverityWarning
		}
	}

	n := float64(len(members))
	return types.Cluster{
		Lat:         sumLat / n,
		Lng:         sumLng / n,
		Count:       len(members),
		MaxSeverity: severity,
		Agents:      members,
	}
}

// Nearest returns up to maxCount available agents with a location within
// maxDistanceMeters of the target, sorted ascending by distance.
func Nearest(target geo.Point, agents []types.FieldAgent, maxCount int, maxDistanceMeters float64) []types.NearbyAgent {
	nearby := make([]types.NearbyAgent, 0)

	for _, agent := range agents {
		if agent.Status != types.StatusAvailable || !agent.HasLocation() {
			continue
		}
		d := geo.Distance(target, agent.Location())
		if d > maxDistanceMeters {
			continue
		}
		nearby = append(nearby, types.NearbyAgent{Agent: agent, DistanceMeters: d})
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})

	if maxCount > 0 && len(nearby) > maxCount {
		nearby = nearby[:maxCount]
	}
	return nearby
}
