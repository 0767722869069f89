package solver

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sort"
	"time"
)

// Tour is one vehicle's assignment: pool stop indices in visit order, with
// the forced end index appended last when one is configured.
type Tour struct {
	StopIndexes []int
}

// Solve runs the heuristic search and extracts vehicle tours.
//
// The search is bounded by the model's wall-clock limit and returns the best
// feasible solution found within it, not a certified optimum. Identical
// inputs with the same seed produce the same tours; across differing seeds
// results are equivalent-quality, not bit-identical.
func Solve(ctx context.Context, m *Model) ([]Tour, error) {
	// Degenerate set: nothing assignable (at most the forced end itself).
	if len(m.pool) == 0 {
		return nil, nil
	}

	if m.opts.Policy == PolicyOriginalOrder {
		return []Tour{extract(m, slices.Clone(m.pool))}, nil
	}

	searchTime := m.opts.SearchTime
	if searchTime <= 0 {
		searchTime = 10 * time.Second
	}
	deadline := time.Now().Add(searchTime)

	seed := m.opts.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	var best [][]int
	bestCost := math.MaxInt
	var lastErr error

	// Multi-restart: the first pass keeps source order (with a forced start
	// moved to the front), later passes shuffle the insertion order.
	const maxRestarts = 8
	for restart := 0; restart < maxRestarts; restart++ {
		if restart > 0 && time.Now().After(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		order := insertionOrder(m, rng, restart > 0)
		tours, err := construct(m, order)
		if err != nil {
			lastErr = err
			continue
		}

		tours = improve(m, tours, deadline)
		tours = dropEmpty(tours)

		if m.opts.Policy == PolicySingleVehicle && len(tours) == 1 {
			anneal(m, tours[0], rng, deadline)
		}

		if c := m.solutionCost(tours); c < bestCost {
			bestCost = c
			best = cloneTours(tours)
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &InfeasibleError{StopIndex: -1, Reason: "no feasible assignment found within the search time limit"}
	}

	// Stable output order regardless of search history.
	sort.Slice(best, func(a, b int) bool { return best[a][0] < best[b][0] })

	out := make([]Tour, 0, len(best))
	for _, tour := range best {
		out = append(out, extract(m, tour))
	}
	return out, nil
}

func insertionOrder(m *Model, rng *rand.Rand, shuffle bool) []int {
	order := slices.Clone(m.pool)
	if shuffle {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if m.opts.StartIndex != FreeEndpoint {
		// Seed the first vehicle with the forced start.
		for i, s := range order {
			if s == m.opts.StartIndex {
				order[0], order[i] = order[i], order[0]
				break
			}
		}
	}
	return order
}

// construct builds tours by cheapest feasible insertion. A new vehicle is
// opened only when every insertion is infeasible or when opening (fixed cost
// included) is cheaper than the best insertion, which is what drives the
// fleet toward its minimum size.
func construct(m *Model, order []int) ([][]int, error) {
	var tours [][]int

	for _, s := range order {
		bestTour, bestPos, bestDelta := -1, -1, math.MaxInt

		for ti, tour := range tours {
			base := m.tourCost(tour)
			for pos := 0; pos <= len(tour); pos++ {
				candidate := insertAt(tour, pos, s)
				if !m.fitsBudget(candidate) {
					continue
				}
				delta := m.tourCost(candidate) - base
				if delta < bestDelta {
					bestTour, bestPos, bestDelta = ti, pos, delta
				}
			}
		}

		openCost := math.MaxInt
		canOpen := len(tours) < m.opts.MaxVehicles
		if canOpen && m.fitsBudget([]int{s}) {
			openCost = m.fixedCost + m.tourCost([]int{s})
		}

		switch {
		case bestDelta == math.MaxInt && openCost == math.MaxInt:
			return nil, &InfeasibleError{
				StopIndex: s,
				Reason:    "no vehicle can absorb this stop within the time budget",
			}
		case openCost < bestDelta:
			tours = append(tours, []int{s})
		default:
			tour := tours[bestTour]
			tours[bestTour] = insertAt(tour, bestPos, s)
		}
	}

	return tours, nil
}

// improve runs local search until a fixpoint or the deadline: 2-opt segment
// reversal within each tour, then stop relocation across tours. Relocations
// that empty a tour recover its full opening cost, so the fleet keeps
// shrinking when the budget allows it.
//
// Returns the resulting tours: relocation can drop emptied tours, so the
// caller must replace its slice with the returned one.
func improve(m *Model, tours [][]int, deadline time.Time) [][]int {
	for {
		if time.Now().After(deadline) {
			return tours
		}

		changed := false
		for ti := range tours {
			if twoOpt(m, tours[ti]) {
				changed = true
			}
		}
		if relocate(m, &tours) {
			changed = true
		}
		if !changed {
			return tours
		}
	}
}

// twoOpt reverses tour segments while doing so lowers the shaped cost.
func twoOpt(m *Model, tour []int) bool {
	improved := false
	for again := true; again; {
		again = false
		for i := 0; i < len(tour)-1; i++ {
			for j := i + 1; j < len(tour); j++ {
				base := m.tourCost(tour)
				reverse(tour, i, j)
				if m.tourCost(tour) < base && m.fitsBudget(tour) {
					again, improved = true, true
				} else {
					reverse(tour, i, j)
				}
			}
		}
	}
	return improved
}

// relocate moves single stops to whichever feasible position in any tour
// lowers the total solution cost the most, one best move per pass.
func relocate(m *Model, tours *[][]int) bool {
	ts := *tours
	baseCost := m.solutionCost(ts)

	bestCost := baseCost
	var bestFrom, bestAt, bestTo, bestPos int
	found := false

	for from := range ts {
		for at := 0; at < len(ts[from]); at++ {
			s := ts[from][at]
			removed := removeAt(ts[from], at)

			for to := range ts {
				target := ts[to]
				if to == from {
					target = removed
				}
				for pos := 0; pos <= len(target); pos++ {
					if to == from && pos == at {
						continue
					}
					candidate := insertAt(target, pos, s)
					if !m.fitsBudget(candidate) {
						continue
					}

					cost := trialCost(m, ts, from, removed, to, candidate)
					if cost < bestCost {
						bestCost = cost
						bestFrom, bestAt, bestTo, bestPos = from, at, to, pos
						found = true
					}
				}
			}
		}
	}

	if !found {
		return false
	}

	s := ts[bestFrom][bestAt]
	ts[bestFrom] = removeAt(ts[bestFrom], bestAt)
	if bestTo == bestFrom {
		ts[bestFrom] = insertAt(ts[bestFrom], bestPos, s)
	} else {
		ts[bestTo] = insertAt(ts[bestTo], bestPos, s)
	}
	*tours = dropEmpty(ts)
	return true
}

// trialCost evaluates the solution cost with tour `from` replaced by
// `removed` and tour `to` replaced by `candidate`, without mutating ts.
func trialCost(m *Model, ts [][]int, from int, removed []int, to int, candidate []int) int {
	trial := make([][]int, 0, len(ts))
	for i, t := range ts {
		switch i {
		case from:
			if to == from {
				trial = append(trial, candidate)
				continue
			}
			if len(removed) > 0 {
				trial = append(trial, removed)
			}
		case to:
			trial = append(trial, candidate)
		default:
			trial = append(trial, t)
		}
	}
	return m.solutionCost(trial)
}

// anneal polishes a single tour with simulated annealing: random pairwise
// swaps accepted by the Metropolis criterion, keeping the best feasible
// tour seen.
func anneal(m *Model, tour []int, rng *rand.Rand, deadline time.Time) {
	if len(tour) < 4 {
		return
	}

	best := slices.Clone(tour)
	bestCost := m.tourCost(best)
	current := slices.Clone(tour)
	currentCost := bestCost

	temperature := float64(m.matrix.MaxFiniteDuration())
	if temperature == 0 {
		temperature = 1
	}
	const coolingRate = 0.995
	minTemperature := temperature / 10000

	for temperature > minTemperature {
		if time.Now().After(deadline) {
			break
		}

		i := rng.Intn(len(current))
		j := rng.Intn(len(current))
		if i == j {
			continue
		}

		current[i], current[j] = current[j], current[i]
		cost := m.tourCost(current)

		accept := m.fitsBudget(current) &&
			(cost < currentCost || rng.Float64() < math.Exp(float64(currentCost-cost)/temperature))
		if accept {
			currentCost = cost
			if cost < bestCost {
				bestCost = cost
				copy(best, current)
			}
		} else {
			current[i], current[j] = current[j], current[i]
		}

		temperature *= coolingRate
	}

	copy(tour, best)
}

// extract converts an internal tour into the exported form, appending the
// forced end node when configured.
func extract(m *Model, tour []int) Tour {
	out := slices.Clone(tour)
	if m.opts.EndIndex != FreeEndpoint {
		out = append(out, m.opts.EndIndex)
	}
	return Tour{StopIndexes: out}
}

func insertAt(tour []int, pos, s int) []int {
	out := make([]int, 0, len(tour)+1)
	out = append(out, tour[:pos]...)
	out = append(out, s)
	out = append(out, tour[pos:]...)
	return out
}

func removeAt(tour []int, pos int) []int {
	out := make([]int, 0, len(tour)-1)
	out = append(out, tour[:pos]...)
	out = append(out, tour[pos+1:]...)
	return out
}

func reverse(tour []int, i, j int) {
	for i < j {
		tour[i], tour[j] = tour[j], tour[i]
		i++
		j--
	}
}

// dropEmpty allocates a fresh slice: compacting in place would let a stale
// longer header held elsewhere alias the shifted tours.
func dropEmpty(tours [][]int) [][]int {
	out := make([][]int, 0, len(tours))
	for _, t := range tours {
		if len(t) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func cloneTours(tours [][]int) [][]int {
	out := make([][]int, len(tours))
	for i, t := range tours {
		out[i] = slices.Clone(t)
	}
	return out
}
