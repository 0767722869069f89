package services

import (
	"context"
	"fmt"
	"time"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/solver"
)

// PlanOptions carries the user-tunable model parameters for one planning run.
type PlanOptions struct {
	Policy     solver.Policy
	StartLabel string // stop label every tour must open with; "" = solver chooses
	EndLabel   string // stop label every tour must close with; "" = solver chooses

	TimeBudgetSeconds int
	DwellSeconds      int
	MaxVehicles       int

	ZonePenaltyWeight          float64
	VehicleFixedCostMultiplier int

	SearchTime time.Duration
	Seed       int64

	StartAt time.Time // departure time used for timeline derivation

	// UsePattern solves once across the union of all days' stops and
	// replicates that canonical assignment onto each day.
	UsePattern bool
}

// TourPlan is one solved vehicle tour with its road trace and derived schedule.
type TourPlan struct {
	Tour     domain.VehicleTour
	Trace    domain.RouteTrace
	Schedule []domain.ScheduleEntry
}

// PartitionResult is the outcome for one independent day/route partition.
// A failed partition carries its classified error; sibling partitions are
// unaffected.
type PartitionResult struct {
	Day   string
	Route string
	Tours []TourPlan
	Err   error
}

// Planner coordinates matrix retrieval, model solving, trace retrieval, and
// timeline derivation. Providers are injected; the planner holds no ambient
// state.
type Planner struct {
	Matrix ports.MatrixProvider
	Trace  ports.TraceProvider
}

func NewPlanner(matrix ports.MatrixProvider, trace ports.TraceProvider) *Planner {
	return &Planner{Matrix: matrix, Trace: trace}
}

type partitionKey struct {
	day   string
	route string
}

// PlanAll partitions the stops (by day, and by route unless pattern mode is
// on) and plans each partition sequentially. Partition failures are
// collected per partition; only quota exhaustion halts the whole run, since
// every further provider call would fail the same way.
func (p *Planner) PlanAll(ctx context.Context, stops []domain.Stop, opts PlanOptions) (_ []PartitionResult, err error) {
	defer obs.Time(ctx, "planner.PlanAll")(&err)

	keys, groups := partition(stops, opts.UsePattern)

	if opts.UsePattern {
		return p.planWithPattern(ctx, stops, keys, groups, opts)
	}

	results := make([]PartitionResult, 0, len(keys))
	for _, key := range keys {
		res := p.planPartition(ctx, key, groups[key], opts)
		results = append(results, res)

		if ports.IsQuotaExceeded(res.Err) {
			// Non-retryable and global: surface immediately instead of
			// burning the remaining partitions against a dead quota.
			break
		}
	}
	return results, nil
}

// partition groups stops by day (and route) preserving first-seen order.
func partition(stops []domain.Stop, byDayOnly bool) ([]partitionKey, map[partitionKey][]domain.Stop) {
	var keys []partitionKey
	groups := make(map[partitionKey][]domain.Stop)
	for _, s := range stops {
		key := partitionKey{day: s.Day}
		if !byDayOnly {
			key.route = s.Route
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}
	return keys, groups
}

// planPartition runs the full pipeline for one stop set: cost matrix, model
// solve, road trace per tour, schedule derivation.
func (p *Planner) planPartition(ctx context.Context, key partitionKey, stops []domain.Stop, opts PlanOptions) PartitionResult {
	res := PartitionResult{Day: key.day, Route: key.route}

	set := domain.NewStopSet(stops)
	if set.Len() == 0 {
		return res
	}

	tours, err := p.solveStopSet(ctx, set, opts)
	if err != nil {
		res.Err = fmt.Errorf("plan partition day=%q route=%q: %w", key.day, key.route, err)
		return res
	}

	plans, err := p.traceAndSchedule(ctx, tours, opts)
	if err != nil {
		res.Err = fmt.Errorf("plan partition day=%q route=%q: %w", key.day, key.route, err)
		return res
	}

	res.Tours = plans
	return res
}

// solveStopSet builds and solves the routing model for one stop set,
// returning vehicle tours over domain stops.
func (p *Planner) solveStopSet(ctx context.Context, set *domain.StopSet, opts PlanOptions) ([]domain.VehicleTour, error) {
	endIndex := solver.FreeEndpoint
	if opts.EndLabel != "" {
		endIndex = set.IndexOf(opts.EndLabel)
		if endIndex == -1 {
			return nil, fmt.Errorf("end stop %q not present in this partition", opts.EndLabel)
		}
	}

	// The original-order policy bypasses both the matrix and the solver.
	if opts.Policy == solver.PolicyOriginalOrder {
		return []domain.VehicleTour{originalOrderTour(set, endIndex)}, nil
	}

	startIndex := solver.FreeEndpoint
	if opts.StartLabel != "" {
		startIndex = set.IndexOf(opts.StartLabel)
		if startIndex == -1 {
			return nil, fmt.Errorf("start stop %q not present in this partition", opts.StartLabel)
		}
	}

	matrix, err := p.Matrix.FetchMatrix(ctx, set.Points())
	if err != nil {
		return nil, fmt.Errorf("fetch cost matrix: %w", err)
	}

	solverOpts := solver.Options{
		Policy:                     opts.Policy,
		StartIndex:                 startIndex,
		EndIndex:                   endIndex,
		TimeBudgetSeconds:          opts.TimeBudgetSeconds,
		DwellSeconds:               opts.DwellSeconds,
		MaxVehicles:                opts.MaxVehicles,
		ZonePenaltyWeight:          opts.ZonePenaltyWeight,
		VehicleFixedCostMultiplier: opts.VehicleFixedCostMultiplier,
		SearchTime:                 opts.SearchTime,
		Seed:                       opts.Seed,
	}
	if opts.ZonePenaltyWeight > 0 {
		solverOpts.Zones = set.Departments()
	}

	model, err := solver.Build(matrix, solverOpts)
	if err != nil {
		return nil, err
	}

	tours, err := solver.Solve(ctx, model)
	if err != nil {
		return nil, err
	}

	out := make([]domain.VehicleTour, 0, len(tours))
	for i, tour := range tours {
		vt := domain.VehicleTour{VehicleID: i + 1}
		for _, idx := range tour.StopIndexes {
			vt.Stops = append(vt.Stops, set.Stops[idx])
		}
		out = append(out, vt)
	}
	return out, nil
}

// originalOrderTour returns the set in source order, moving a forced end to
// the final position so the end invariant holds for every policy.
func originalOrderTour(set *domain.StopSet, endIndex int) domain.VehicleTour {
	vt := domain.VehicleTour{VehicleID: 1}
	for i, s := range set.Stops {
		if i == endIndex {
			continue
		}
		vt.Stops = append(vt.Stops, s)
	}
	if endIndex != solver.FreeEndpoint {
		vt.Stops = append(vt.Stops, set.Stops[endIndex])
	}
	return vt
}

// traceAndSchedule retrieves the road trace for each tour and derives its
// arrival/departure timeline.
func (p *Planner) traceAndSchedule(ctx context.Context, tours []domain.VehicleTour, opts PlanOptions) ([]TourPlan, error) {
	dwell := time.Duration(opts.DwellSeconds) * time.Second

	plans := make([]TourPlan, 0, len(tours))
	for _, tour := range tours {
		var trace domain.RouteTrace

		if len(tour.Stops) > 1 {
			points := make([]domain.Point, len(tour.Stops))
			for i, s := range tour.Stops {
				points[i] = s.Point
			}
			fetched, err := p.Trace.FetchTrace(ctx, points)
			if err != nil {
				return nil, fmt.Errorf("fetch trace for vehicle %d: %w", tour.VehicleID, err)
			}
			trace = *fetched
		}

		schedule, err := DeriveTimeline(tour.Stops, trace.Legs, opts.StartAt, dwell)
		if err != nil {
			return nil, fmt.Errorf("derive timeline for vehicle %d: %w", tour.VehicleID, err)
		}

		plans = append(plans, TourPlan{Tour: tour, Trace: trace, Schedule: schedule})
	}
	return plans, nil
}

// planWithPattern solves one canonical model over the union of all days'
// stops, then replicates the canonical vehicle/stop assignment onto each
// day, dropping stops absent that day.
func (p *Planner) planWithPattern(
	ctx context.Context,
	stops []domain.Stop,
	keys []partitionKey,
	groups map[partitionKey][]domain.Stop,
	opts PlanOptions,
) ([]PartitionResult, error) {
	var end *domain.Stop
	if opts.EndLabel != "" {
		for i := range stops {
			if stops[i].Label == opts.EndLabel {
				end = &stops[i]
				break
			}
		}
		if end == nil {
			return nil, fmt.Errorf("plan pattern: end stop %q not present on any day", opts.EndLabel)
		}
	}

	union := UnionStopSet(stops, end)

	canonicalOpts := opts
	canonicalOpts.UsePattern = false

	pattern, err := p.solveStopSet(ctx, union, canonicalOpts)
	if err != nil {
		return nil, fmt.Errorf("plan pattern: canonical solve: %w", err)
	}

	results := make([]PartitionResult, 0, len(keys))
	for _, key := range keys {
		res := PartitionResult{Day: key.day, Route: key.route}

		present := make(map[string]domain.Stop, len(groups[key]))
		for _, s := range groups[key] {
			if _, ok := present[s.Label]; !ok {
				present[s.Label] = s
			}
		}

		var dayTours []domain.VehicleTour
		for _, tour := range pattern {
			if replica, ok := ReplicateTour(tour, present, opts.EndLabel); ok {
				dayTours = append(dayTours, replica)
			}
		}

		plans, err := p.traceAndSchedule(ctx, dayTours, opts)
		if err != nil {
			res.Err = fmt.Errorf("plan pattern day=%q: %w", key.day, err)
			results = append(results, res)
			if ports.IsQuotaExceeded(err) {
				break
			}
			continue
		}

		res.Tours = plans
		results = append(results, res)
	}
	return results, nil
}
