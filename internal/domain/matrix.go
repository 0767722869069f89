package domain

// Unreachable is the sentinel cost for pairs the provider could not route.
// It is a very large finite value rather than an infinity so the optimizer
// can still complete when no feasible alternative exists, degrading
// gracefully instead of crashing or overflowing on addition.
const Unreachable = 1 << 30

// Square mapping from (origin index, destination index) to travel cost.
// No symmetry is assumed: the road network is directed.
// Every queried pair must be present; absent cells keep the Unreachable
// sentinel, never zero, to avoid poisoning the optimizer.
type CostMatrix struct {
	Size      int
	Distances [][]int // meters
	Durations [][]int // seconds
}

// NewCostMatrix allocates an n×n matrix with zero diagonal and all other
// cells initialized to Unreachable.
func NewCostMatrix(n int) *CostMatrix {
	m := &CostMatrix{
		Size:      n,
		Distances: make([][]int, n),
		Durations: make([][]int, n),
	}
	for i := 0; i < n; i++ {
		m.Distances[i] = make([]int, n)
		m.Durations[i] = make([]int, n)
		for j := 0; j < n; j++ {
			if i != j {
				m.Distances[i][j] = Unreachable
				m.Durations[i][j] = Unreachable
			}
		}
	}
	return m
}

// Set stores one cell. Negative inputs mark the cell unreachable.
func (m *CostMatrix) Set(i, j, meters, seconds int) {
	if meters < 0 || seconds < 0 {
		m.Distances[i][j] = Unreachable
		m.Durations[i][j] = Unreachable
		return
	}
	m.Distances[i][j] = meters
	m.Durations[i][j] = seconds
}

// MaxFiniteDuration returns the largest duration below the Unreachable
// sentinel, or 0 when every off-diagonal cell is unreachable. Relative-scale
// penalties (vehicle fixed cost, zone affinity) are calibrated against it.
func (m *CostMatrix) MaxFiniteDuration() int {
	max := 0
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			d := m.Durations[i][j]
			if d < Unreachable && d > max {
				max = d
			}
		}
	}
	return max
}

// Complete reports whether every off-diagonal cell was filled.
func (m *CostMatrix) Complete() bool {
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			if i != j && m.Durations[i][j] == Unreachable {
				return false
			}
		}
	}
	return true
}
