// Package offline estimates travel costs from great-circle distances when no
// routing provider is configured. Suitable for local runs and tests; swap in
// the ORS adapter for road-accurate results.
package offline

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/s2"

	"fleet-route-service/internal/domain"
)

const earthRadiusMeters = 6371000.0

// Provider implements ports.MatrixProvider and ports.TraceProvider using
// straight-line distance at a constant assumed driving speed.
type Provider struct {
	speedKmph float64
}

func NewProvider(speedKmph float64) *Provider {
	if speedKmph <= 0 {
		speedKmph = 40
	}
	return &Provider{speedKmph: speedKmph}
}

func (p *Provider) pairCost(a, b domain.Point) (meters, seconds int) {
	from := s2.LatLngFromDegrees(a.Lat, a.Lon)
	to := s2.LatLngFromDegrees(b.Lat, b.Lon)
	m := from.Distance(to).Radians() * earthRadiusMeters
	s := m / (p.speedKmph / 3.6)
	return int(math.Round(m)), int(math.Round(s))
}

// FetchMatrix fills the full matrix from pairwise great-circle estimates.
// Estimates are symmetric, unlike road matrices, but consumers must not
// rely on that.
func (p *Provider) FetchMatrix(_ context.Context, points []domain.Point) (*domain.CostMatrix, error) {
	matrix := domain.NewCostMatrix(len(points))
	for i := range points {
		for j := range points {
			if i == j {
				continue
			}
			meters, seconds := p.pairCost(points[i], points[j])
			matrix.Set(i, j, meters, seconds)
		}
	}
	return matrix, nil
}

// FetchTrace approximates the road trace with straight legs between the
// ordered points; the geometry is the point sequence itself.
func (p *Provider) FetchTrace(_ context.Context, points []domain.Point) (*domain.RouteTrace, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("fetch trace: need at least 2 points, got %d", len(points))
	}

	trace := &domain.RouteTrace{Geometry: append([]domain.Point(nil), points...)}
	for i := 0; i < len(points)-1; i++ {
		meters, seconds := p.pairCost(points[i], points[i+1])
		trace.Legs = append(trace.Legs, domain.Leg{DistanceMeters: meters, DurationSeconds: seconds})
		trace.DistanceMeters += meters
		trace.DurationSeconds += seconds
	}
	return trace, nil
}
