package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/solver"
)

// uniformMatrixProvider prices every pair identically and counts calls.
type uniformMatrixProvider struct {
	calls int
	err   error
}

func (p *uniformMatrixProvider) FetchMatrix(_ context.Context, points []domain.Point) (*domain.CostMatrix, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	m := domain.NewCostMatrix(len(points))
	for i := range points {
		for j := range points {
			if i != j {
				m.Set(i, j, 1000, 600)
			}
		}
	}
	return m, nil
}

// stubTraceProvider prices every leg at 1000m / 600s and counts calls.
type stubTraceProvider struct {
	calls int
}

func (p *stubTraceProvider) FetchTrace(_ context.Context, points []domain.Point) (*domain.RouteTrace, error) {
	p.calls++
	trace := &domain.RouteTrace{Geometry: append([]domain.Point(nil), points...)}
	for i := 0; i < len(points)-1; i++ {
		trace.Legs = append(trace.Legs, domain.Leg{DistanceMeters: 1000, DurationSeconds: 600})
		trace.DistanceMeters += 1000
		trace.DurationSeconds += 600
	}
	return trace, nil
}

func baseOptions() PlanOptions {
	return PlanOptions{
		Policy:  solver.PolicySingleVehicle,
		Seed:    1,
		StartAt: time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC),
	}
}

func TestPlanAllPartitionsByDayAndRoute(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
		mkStopRoute(t, "Lunes", "R2", "C", "5.0, 6.0"),
		mkStopRoute(t, "Lunes", "R2", "D", "7.0, 8.0"),
		mkStopRoute(t, "Martes", "R1", "E", "2.0, 1.0"),
		mkStopRoute(t, "Martes", "R1", "F", "4.0, 3.0"),
	}

	matrix := &uniformMatrixProvider{}
	trace := &stubTraceProvider{}
	planner := NewPlanner(matrix, trace)

	results, err := planner.PlanAll(context.Background(), stops, baseOptions())
	if err != nil {
		t.Fatalf("plan all: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d partitions, want 3", len(results))
	}
	if results[0].Day != "Lunes" || results[0].Route != "R1" {
		t.Errorf("first partition = %s/%s, order not preserved", results[0].Day, results[0].Route)
	}

	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("partition %s/%s failed: %v", res.Day, res.Route, res.Err)
		}
		if len(res.Tours) != 1 {
			t.Fatalf("partition %s/%s has %d tours, want 1 under single vehicle", res.Day, res.Route, len(res.Tours))
		}
		plan := res.Tours[0]
		if len(plan.Tour.Stops) != 2 || len(plan.Schedule) != 2 {
			t.Errorf("partition %s/%s tour covers %d stops with %d schedule entries",
				res.Day, res.Route, len(plan.Tour.Stops), len(plan.Schedule))
		}
		if plan.Trace.DistanceMeters != 1000 {
			t.Errorf("partition %s/%s trace total = %dm", res.Day, res.Route, plan.Trace.DistanceMeters)
		}
	}

	if matrix.calls != 3 {
		t.Errorf("matrix fetched %d times, want once per partition", matrix.calls)
	}
	if trace.calls != 3 {
		t.Errorf("trace fetched %d times, want once per tour", trace.calls)
	}
}

func TestPlanAllOriginalOrderSkipsTheSolver(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "End", "9.0, 9.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
	}

	matrix := &uniformMatrixProvider{}
	trace := &stubTraceProvider{}
	planner := NewPlanner(matrix, trace)

	opts := baseOptions()
	opts.Policy = solver.PolicyOriginalOrder
	opts.EndLabel = "End"

	results, err := planner.PlanAll(context.Background(), stops, opts)
	if err != nil {
		t.Fatalf("plan all: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}

	if matrix.calls != 0 {
		t.Errorf("original order fetched the matrix %d times, want 0", matrix.calls)
	}

	labels := results[0].Tours[0].Tour.Labels()
	want := []string{"A", "B", "End"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want source order with the end moved last", labels)
		}
	}
}

func TestPlanAllQuotaHaltsRemainingPartitions(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
		mkStopRoute(t, "Martes", "R1", "C", "5.0, 6.0"),
		mkStopRoute(t, "Martes", "R1", "D", "7.0, 8.0"),
	}

	matrix := &uniformMatrixProvider{err: &ports.QuotaError{Code: 403, Body: "quota exceeded"}}
	planner := NewPlanner(matrix, &stubTraceProvider{})

	results, err := planner.PlanAll(context.Background(), stops, baseOptions())
	if err != nil {
		t.Fatalf("plan all: %v", err)
	}

	// The second partition is never attempted: the quota is global.
	if len(results) != 1 {
		t.Fatalf("got %d partition results, want 1", len(results))
	}
	if !ports.IsQuotaExceeded(results[0].Err) {
		t.Errorf("partition error = %v, want a quota classification", results[0].Err)
	}
	if matrix.calls != 1 {
		t.Errorf("matrix fetched %d times after quota exhaustion, want 1", matrix.calls)
	}
}

func TestPlanAllPatternReplicatesAcrossDays(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
		mkStopRoute(t, "Lunes", "R1", "End", "9.0, 9.0"),
		mkStopRoute(t, "Martes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Martes", "R1", "C", "5.0, 6.0"),
		mkStopRoute(t, "Martes", "R1", "End", "9.0, 9.0"),
	}

	matrix := &uniformMatrixProvider{}
	trace := &stubTraceProvider{}
	planner := NewPlanner(matrix, trace)

	opts := baseOptions()
	opts.EndLabel = "End"
	opts.UsePattern = true

	results, err := planner.PlanAll(context.Background(), stops, opts)
	if err != nil {
		t.Fatalf("plan all: %v", err)
	}

	if matrix.calls != 1 {
		t.Errorf("pattern mode fetched the matrix %d times, want exactly 1 canonical solve", matrix.calls)
	}
	if len(results) != 2 {
		t.Fatalf("got %d day results, want 2", len(results))
	}

	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("day %s failed: %v", res.Day, res.Err)
		}
		if len(res.Tours) != 1 {
			t.Fatalf("day %s has %d tours, want 1", res.Day, len(res.Tours))
		}
		labels := res.Tours[0].Tour.Labels()
		if labels[len(labels)-1] != "End" {
			t.Errorf("day %s labels = %v, forced end must be last", res.Day, labels)
		}
		for _, l := range labels {
			switch res.Day {
			case "Lunes":
				if l == "C" {
					t.Errorf("Lunes tour includes C, which only runs Martes")
				}
			case "Martes":
				if l == "B" {
					t.Errorf("Martes tour includes B, which only runs Lunes")
				}
			}
		}
	}
}

func TestPlanAllPatternRequiresEndSomewhere(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
	}

	planner := NewPlanner(&uniformMatrixProvider{}, &stubTraceProvider{})

	opts := baseOptions()
	opts.EndLabel = "Bodega"
	opts.UsePattern = true

	if _, err := planner.PlanAll(context.Background(), stops, opts); err == nil {
		t.Error("expected an error when the end label exists on no day")
	}
}

func TestPlanAllReportsMissingEndPerPartition(t *testing.T) {
	stops := []domain.Stop{
		mkStopRoute(t, "Lunes", "R1", "A", "1.0, 2.0"),
		mkStopRoute(t, "Lunes", "R1", "B", "3.0, 4.0"),
	}

	planner := NewPlanner(&uniformMatrixProvider{}, &stubTraceProvider{})

	opts := baseOptions()
	opts.EndLabel = "Bodega"

	results, err := planner.PlanAll(context.Background(), stops, opts)
	if err != nil {
		t.Fatalf("plan all: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Fatal("expected the partition to fail")
	}
	if !strings.Contains(results[0].Err.Error(), "Bodega") {
		t.Errorf("error %v does not name the missing end stop", results[0].Err)
	}
}

func mkStopRoute(t *testing.T, day, route, label, coords string) domain.Stop {
	t.Helper()
	s, err := domain.NewStop(day, route, "", label, coords)
	if err != nil {
		t.Fatalf("new stop: %v", err)
	}
	return s
}
