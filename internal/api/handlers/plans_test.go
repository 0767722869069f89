package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
)

type stubStopRepo struct{ stops []domain.Stop }

func (s *stubStopRepo) ListStops(context.Context) ([]domain.Stop, error) {
	return s.stops, nil
}

// quotaMatrixProvider fails every matrix request with an exhausted quota.
type quotaMatrixProvider struct{}

func (quotaMatrixProvider) FetchMatrix(context.Context, []domain.Point) (*domain.CostMatrix, error) {
	return nil, &ports.QuotaError{Code: http.StatusForbidden, Body: "quota exceeded"}
}

type noopTraceProvider struct{}

func (noopTraceProvider) FetchTrace(_ context.Context, points []domain.Point) (*domain.RouteTrace, error) {
	trace := &domain.RouteTrace{Geometry: append([]domain.Point(nil), points...)}
	for i := 0; i < len(points)-1; i++ {
		trace.Legs = append(trace.Legs, domain.Leg{DistanceMeters: 1000, DurationSeconds: 600})
		trace.DistanceMeters += 1000
		trace.DurationSeconds += 600
	}
	return trace, nil
}

func planFixtureStops(t *testing.T) []domain.Stop {
	t.Helper()

	rows := [][2]string{
		{"A", "1.0, 2.0"},
		{"B", "3.0, 4.0"},
		{"End", "9.0, 9.0"},
	}
	stops := make([]domain.Stop, 0, len(rows))
	for _, r := range rows {
		s, err := domain.NewStop("Lunes", "R1", "", r[0], r[1])
		if err != nil {
			t.Fatalf("new stop: %v", err)
		}
		stops = append(stops, s)
	}
	return stops
}

func postPlan(t *testing.T, handler *PlanHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Plan(rec, req)
	return rec
}

func TestPlanPatternQuotaFailureIsClassified(t *testing.T) {
	handler := &PlanHandler{
		Repo:    &stubStopRepo{stops: planFixtureStops(t)},
		Planner: services.NewPlanner(quotaMatrixProvider{}, noopTraceProvider{}),
	}

	// Pattern mode fails whole-run: the canonical solve hits the quota.
	rec := postPlan(t, handler, `{"policy":"single_vehicle","end_label":"End","use_pattern":true}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error_kind"] != "quota_exhausted" {
		t.Errorf("error_kind = %q, want quota_exhausted", body["error_kind"])
	}
	if body["error"] == "" {
		t.Error("error message missing")
	}
}

func TestPlanPartitionQuotaFailureStaysPerPartition(t *testing.T) {
	handler := &PlanHandler{
		Repo:    &stubStopRepo{stops: planFixtureStops(t)},
		Planner: services.NewPlanner(quotaMatrixProvider{}, noopTraceProvider{}),
	}

	// Without pattern mode the run completes; the failure is reported on the
	// affected partition with the same taxonomy.
	rec := postPlan(t, handler, `{"policy":"single_vehicle"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body dto.PlanResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Partitions) != 1 {
		t.Fatalf("got %d partitions, want 1", len(body.Partitions))
	}
	if body.Partitions[0].ErrorKind != "quota_exhausted" {
		t.Errorf("partition error_kind = %q, want quota_exhausted", body.Partitions[0].ErrorKind)
	}
}

func TestPlanRejectsUnknownPolicy(t *testing.T) {
	handler := &PlanHandler{
		Repo:    &stubStopRepo{},
		Planner: services.NewPlanner(quotaMatrixProvider{}, noopTraceProvider{}),
	}

	rec := postPlan(t, handler, `{"policy":"teleport"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
