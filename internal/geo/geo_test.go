package geo

import (
	"math"
	"testing"
)

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		want      float64 // meters
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Lat: 52.52, Lng: 13.405},
			b:         Point{Lat: 52.52, Lng: 13.405},
			want:      0,
			tolerance: 0.001,
		},
		{
			name:      "berlin to munich",
			a:         Point{Lat: 52.5200, Lng: 13.4050},
			b:         Point{Lat: 48.1351, Lng: 11.5820},
			want:      504000,
			tolerance: 5000,
		},
		{
			name:      "one degree of latitude",
			a:         Point{Lat: 0, Lng: 0},
			b:         Point{Lat: 1, Lng: 0},
			want:      111195,
			tolerance: 100,
		},
		{
			name:      "short hop across a city block",
			a:         Point{Lat: 52.5200, Lng: 13.4050},
			b:         Point{Lat: 52.5209, Lng: 13.4050},
			want:      100,
			tolerance: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Distance() = %.1f, want %.1f (±%.1f)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 52.52, Lng: 13.405}, {Lat: 48.1351, Lng: 11.582}},
		{{Lat: -33.8688, Lng: 151.2093}, {Lat: 51.5074, Lng: -0.1278}},
		{{Lat: 0, Lng: 0}, {Lat: 0.001, Lng: 0.001}},
	}

	for _, pair := range pairs {
		ab := Distance(pair[0], pair[1])
		ba := Distance(pair[1], pair[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("distance not symmetric: %.9f vs %.9f", ab, ba)
		}
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"valid", Point{Lat: 52.52, Lng: 13.405}, true},
		{"lat too high", Point{Lat: 90.1, Lng: 0}, false},
		{"lat too low", Point{Lat: -90.1, Lng: 0}, false},
		{"lng too high", Point{Lat: 0, Lng: 180.1}, false},
		{"lng too low", Point{Lat: 0, Lng: -180.1}, false},
		{"poles and antimeridian edges are valid", Point{Lat: 90, Lng: -180}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{North: 53, South: 52, East: 14, West: 13}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{Lat: 52.5, Lng: 13.5}, true},
		{"on north edge", Point{Lat: 53, Lng: 13.5}, true},
		{"on west edge", Point{Lat: 52.5, Lng: 13}, true},
		{"north of bounds", Point{Lat: 53.1, Lng: 13.5}, false},
		{"east of bounds", Point{Lat: 52.5, Lng: 14.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}
