package ports

import (
	"context"

	"fleet-route-service/internal/domain"
)

// Contract for retrieving a full pairwise travel cost matrix for a point set.
// Implementations must fill every reachable cell; cells the underlying
// service cannot route stay at domain.Unreachable.
type MatrixProvider interface {
	FetchMatrix(ctx context.Context, points []domain.Point) (*domain.CostMatrix, error)
}

// Contract for retrieving the road-accurate trace of an ordered coordinate
// sequence: summary distance/duration, one leg per consecutive pair, and
// route geometry.
type TraceProvider interface {
	FetchTrace(ctx context.Context, points []domain.Point) (*domain.RouteTrace, error)
}

// Port: a boundary for retrieving ingested Stop rows from a data source.
// Rows that fail coordinate normalization are dropped by the implementation,
// not surfaced as errors.
type StopRepository interface {
	ListStops(ctx context.Context) ([]domain.Stop, error)
}
