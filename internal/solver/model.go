package solver

import (
	"fmt"
	"time"

	"fleet-route-service/internal/domain"
)

// Policy selects how tours are constructed.
type Policy int

const (
	// PolicyOriginalOrder bypasses optimization and returns stops in source order.
	PolicyOriginalOrder Policy = iota
	// PolicySingleVehicle orders all stops into exactly one tour.
	PolicySingleVehicle
	// PolicyFleetMin discovers the minimum number of vehicles able to cover
	// all stops under the time budget.
	PolicyFleetMin
)

// FreeEndpoint lets the solver choose the start or end stop.
const FreeEndpoint = -1

// prohibitive prices arcs the solver must not take unless no feasible
// alternative exists. Large but finite so degenerate instances still solve.
const prohibitive = 1 << 33

// Options parameterizes one routing model. The penalty knobs are
// relative-scale: they multiply the matrix's maximum finite arc duration, so
// their meaning is independent of the cost matrix's units.
type Options struct {
	Policy     Policy
	StartIndex int // stop index every tour must open with, or FreeEndpoint
	EndIndex   int // stop index every tour must close with, or FreeEndpoint

	TimeBudgetSeconds int // per-vehicle cap on driving plus dwell; 0 = unlimited
	DwellSeconds      int // fixed service time per visited stop

	MaxVehicles int // upper bound on opened vehicles; 0 = one per stop

	// Zones holds one tag per stop (typically the department). When
	// ZonePenaltyWeight > 0, an arc between differing non-empty tags gains
	// weight × maxFiniteArcDuration as a soft cost. Crossing is discouraged,
	// never forbidden.
	Zones             []string
	ZonePenaltyWeight float64

	// VehicleFixedCostMultiplier scales the cost of opening each vehicle as
	// multiplier × maxFiniteArcDuration. 0 selects the default (100), large
	// enough that the solver only opens a vehicle when the budget demands it.
	VehicleFixedCostMultiplier int

	// SpanWeight is the soft load-balancing cost per second of spread between
	// the most and least loaded vehicle. 0 selects the default (1); negative
	// disables balancing.
	SpanWeight int

	SearchTime time.Duration // wall-clock limit for the heuristic search; 0 = 10s
	Seed       int64         // best-effort reproducibility; 0 selects a fixed seed
}

// NodeKind tags the role of a node in the routing model, replacing the raw
// integer sentinels a depot trick would otherwise need.
type NodeKind int

const (
	RealStop NodeKind = iota
	Depot
	ForcedEnd
)

// Node pairs a kind with a stop index. Depot nodes carry no index.
type Node struct {
	Kind  NodeKind
	Index int
}

// InfeasibleError reports a model that provably cannot be solved: either
// detected before search (a stop that cannot make the deadline even alone)
// or after the search found no feasible assignment.
type InfeasibleError struct {
	StopIndex int // offending stop, or -1 when no single stop is to blame
	Reason    string
}

func (e *InfeasibleError) Error() string {
	if e.StopIndex >= 0 {
		return fmt.Sprintf("model infeasible: stop %d: %s", e.StopIndex, e.Reason)
	}
	return "model infeasible: " + e.Reason
}

// Model is one constructed problem instance. Built per stop set just before
// solving and discarded once tours are extracted.
type Model struct {
	matrix *domain.CostMatrix
	opts   Options

	pool  []int // assignable stop indices; a forced end is terminal, not assignable
	nodes []Node

	zonePenalty int
	fixedCost   int
	spanWeight  int
	budget      int
	dwell       int
}

// Build validates options against the matrix and constructs a Model.
//
// Pre-solve validation: when both an end stop and a time budget are set,
// every stop must be able to reach the end within the budget even as the
// only stop of its vehicle. Violations fail fast here with a per-stop
// diagnosis instead of burning search time on a model that cannot solve.
func Build(matrix *domain.CostMatrix, opts Options) (*Model, error) {
	n := matrix.Size

	if opts.StartIndex != FreeEndpoint && (opts.StartIndex < 0 || opts.StartIndex >= n) {
		return nil, fmt.Errorf("build model: start index %d out of range [0,%d)", opts.StartIndex, n)
	}
	if opts.EndIndex != FreeEndpoint && (opts.EndIndex < 0 || opts.EndIndex >= n) {
		return nil, fmt.Errorf("build model: end index %d out of range [0,%d)", opts.EndIndex, n)
	}
	if opts.Zones != nil && len(opts.Zones) != n {
		return nil, fmt.Errorf("build model: got %d zone tags for %d stops", len(opts.Zones), n)
	}
	if opts.StartIndex != FreeEndpoint && opts.StartIndex == opts.EndIndex {
		return nil, fmt.Errorf("build model: start and end must be distinct stops")
	}

	maxDur := matrix.MaxFiniteDuration()

	multiplier := opts.VehicleFixedCostMultiplier
	if multiplier <= 0 {
		multiplier = 100
	}
	fixedCost := multiplier * maxDur
	if fixedCost == 0 {
		fixedCost = multiplier
	}

	spanWeight := opts.SpanWeight
	if spanWeight == 0 {
		spanWeight = 1
	}
	if spanWeight < 0 {
		spanWeight = 0
	}

	maxVehicles := opts.MaxVehicles
	if maxVehicles <= 0 {
		maxVehicles = n
	}
	if opts.Policy == PolicySingleVehicle {
		maxVehicles = 1
	}
	opts.MaxVehicles = maxVehicles

	m := &Model{
		matrix:      matrix,
		opts:        opts,
		zonePenalty: int(opts.ZonePenaltyWeight * float64(maxDur)),
		fixedCost:   fixedCost,
		spanWeight:  spanWeight,
		budget:      opts.TimeBudgetSeconds,
		dwell:       opts.DwellSeconds,
	}

	for i := 0; i < n; i++ {
		if i == opts.EndIndex {
			m.nodes = append(m.nodes, Node{Kind: ForcedEnd, Index: i})
			continue
		}
		m.nodes = append(m.nodes, Node{Kind: RealStop, Index: i})
		m.pool = append(m.pool, i)
	}

	if opts.EndIndex != FreeEndpoint && m.budget > 0 {
		for _, i := range m.pool {
			need := m.dwell + matrix.Durations[i][opts.EndIndex]
			if need > m.budget {
				return nil, &InfeasibleError{
					StopIndex: i,
					Reason: fmt.Sprintf(
						"even alone, this stop cannot make the deadline: dwell %ds + direct travel %ds to the end stop exceeds the %ds budget",
						m.dwell, matrix.Durations[i][opts.EndIndex], m.budget,
					),
				}
			}
		}
	}

	return m, nil
}

// arcCost is the shaped cost of traveling i->j: raw duration plus the
// zone-affinity penalty when the arc crosses differing non-empty zone tags.
func (m *Model) arcCost(i, j int) int {
	c := m.matrix.Durations[i][j]
	if m.zonePenalty > 0 && m.opts.Zones != nil {
		zi, zj := m.opts.Zones[i], m.opts.Zones[j]
		if zi != "" && zj != "" && zi != zj {
			c += m.zonePenalty
		}
	}
	return c
}

// startCost prices the synthetic depot arc into a tour's first stop: free
// when the start is the solver's choice, prohibitive for every stop except a
// forced start.
func (m *Model) startCost(first int) int {
	if m.opts.StartIndex == FreeEndpoint || first == m.opts.StartIndex {
		return 0
	}
	return prohibitive
}

// endCost prices the arc out of a tour's last pool stop: the normal arc into
// a forced end, or zero when the solver is free to end anywhere.
func (m *Model) endCost(last int) int {
	if m.opts.EndIndex == FreeEndpoint {
		return 0
	}
	return m.arcCost(last, m.opts.EndIndex)
}

// tourCost is the shaped cost of one tour over pool stops.
func (m *Model) tourCost(tour []int) int {
	if len(tour) == 0 {
		return 0
	}
	c := m.startCost(tour[0])
	for k := 0; k < len(tour)-1; k++ {
		c += m.arcCost(tour[k], tour[k+1])
	}
	c += m.endCost(tour[len(tour)-1])
	return c
}

// tourTime is the cumulative time dimension of one tour: driving duration
// plus dwell per visited stop. The terminal stop (the forced end, or the
// last stop when the end is free) incurs no dwell.
func (m *Model) tourTime(tour []int) int {
	if len(tour) == 0 {
		return 0
	}
	t := 0
	for k := 0; k < len(tour)-1; k++ {
		t += m.matrix.Durations[tour[k]][tour[k+1]]
	}
	if m.opts.EndIndex != FreeEndpoint {
		t += m.matrix.Durations[tour[len(tour)-1]][m.opts.EndIndex]
		t += m.dwell * len(tour)
	} else {
		t += m.dwell * (len(tour) - 1)
	}
	return t
}

// fitsBudget reports whether the tour's time dimension stays within the
// per-vehicle budget.
func (m *Model) fitsBudget(tour []int) bool {
	return m.budget <= 0 || m.tourTime(tour) <= m.budget
}

// solutionCost totals shaped tour costs, the per-vehicle opening cost, and
// the soft global-span balancing term.
func (m *Model) solutionCost(tours [][]int) int {
	c := 0
	minT, maxT := 0, 0
	for i, tour := range tours {
		c += m.tourCost(tour) + m.fixedCost
		t := m.tourTime(tour)
		if i == 0 || t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}
	if m.spanWeight > 0 && len(tours) > 1 {
		c += m.spanWeight * (maxT - minT)
	}
	return c
}
