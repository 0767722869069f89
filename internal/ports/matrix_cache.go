package ports

import "context"

// Identifies one directed origin->destination pair by point keys
// (see domain.Point.Key).
type PairKey struct {
	From string
	To   string
}

// Cached travel cost for one directed pair.
type CostEntry struct {
	DistanceMeters  int
	DurationSeconds int
}

// Persistent cache of pairwise travel costs, consulted before issuing
// external matrix requests. Absent keys are simply missing from the result.
type MatrixCache interface {
	GetMany(ctx context.Context, keys []PairKey) (map[PairKey]CostEntry, error)
	PutMany(ctx context.Context, entries map[PairKey]CostEntry) error
}
