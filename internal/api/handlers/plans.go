package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
	"fleet-route-service/internal/solver"
)

type PlanHandler struct {
	Repo    ports.StopRepository
	Planner *services.Planner
}

// Plan runs the full planning pipeline: load stops, partition, solve each
// partition, trace and schedule the resulting tours.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.PlanRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	policy, ok := parsePolicy(req.Policy)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "policy must be one of original_order, single_vehicle, fleet_min")
		return
	}

	if req.TimeBudgetSeconds < 0 || req.DwellSeconds < 0 || req.MaxVehicles < 0 {
		writeError(w, r, http.StatusBadRequest, "time_budget_seconds, dwell_seconds and max_vehicles must be non-negative")
		return
	}
	if req.ZonePenaltyWeight < 0 {
		writeError(w, r, http.StatusBadRequest, "zone_penalty_weight must be non-negative")
		return
	}

	startAt := time.Now()
	if req.StartAt != nil {
		startAt = *req.StartAt
	}

	opts := services.PlanOptions{
		Policy:                     policy,
		StartLabel:                 req.StartLabel,
		EndLabel:                   req.EndLabel,
		TimeBudgetSeconds:          req.TimeBudgetSeconds,
		DwellSeconds:               req.DwellSeconds,
		MaxVehicles:                req.MaxVehicles,
		ZonePenaltyWeight:          req.ZonePenaltyWeight,
		VehicleFixedCostMultiplier: req.VehicleFixedCostMultiplier,
		SearchTime:                 time.Duration(req.SearchTimeSeconds) * time.Second,
		Seed:                       req.Seed,
		StartAt:                    startAt,
		UsePattern:                 req.UsePattern,
	}

	stops, err := h.Repo.ListStops(r.Context())
	if err != nil {
		log.Printf("list stops failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	results, err := h.Planner.PlanAll(r.Context(), stops, opts)
	if err != nil {
		// Whole-run failures (pattern mode's canonical solve) get the same
		// taxonomy as per-partition failures.
		log.Printf("plan failed: %v", err)
		kind := classifyError(err)
		writeJSON(w, r, statusForKind(kind), map[string]string{
			"error":      err.Error(),
			"error_kind": kind,
		})
		return
	}

	res := dto.PlanResponse{Partitions: make([]dto.PartitionResponse, 0, len(results))}
	for _, p := range results {
		res.Partitions = append(res.Partitions, toPartitionResponse(p))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func parsePolicy(s string) (solver.Policy, bool) {
	switch s {
	case "", "fleet_min":
		return solver.PolicyFleetMin, true
	case "single_vehicle":
		return solver.PolicySingleVehicle, true
	case "original_order":
		return solver.PolicyOriginalOrder, true
	default:
		return 0, false
	}
}

func toPartitionResponse(p services.PartitionResult) dto.PartitionResponse {
	out := dto.PartitionResponse{Day: p.Day, Route: p.Route}

	if p.Err != nil {
		out.Error = p.Err.Error()
		out.ErrorKind = classifyError(p.Err)
		return out
	}

	for _, plan := range p.Tours {
		tour := dto.TourResponse{
			VehicleID:            plan.Tour.VehicleID,
			TotalDistanceMeters:  plan.Trace.DistanceMeters,
			TotalDurationSeconds: plan.Trace.DurationSeconds,
		}
		for _, e := range plan.Schedule {
			tour.Stops = append(tour.Stops, dto.ScheduleEntryResponse{
				Label:                     e.Stop.Label,
				Department:                e.Stop.Department,
				Coords:                    e.Stop.RawCoords,
				ArriveAt:                  e.ArriveAt,
				DepartAt:                  e.DepartAt,
				LegDistanceMeters:         e.LegDistanceMeters,
				CumulativeDistanceMeters:  e.CumulativeDistanceMeters,
				LegDurationSeconds:        e.LegDurationSeconds,
				CumulativeDurationSeconds: e.CumulativeDurationSeconds,
			})
		}
		for _, pt := range plan.Trace.Geometry {
			tour.Geometry = append(tour.Geometry, pt.ToList())
		}
		out.Tours = append(out.Tours, tour)
	}
	return out
}

// statusForKind maps error kinds to HTTP statuses for whole-run failures.
// The remaining top-level errors are request-shaped (an end label that exists
// on no day), so the fallback stays a 400.
func statusForKind(kind string) int {
	switch kind {
	case "quota_exhausted":
		return http.StatusTooManyRequests
	case "provider_unavailable":
		return http.StatusBadGateway
	case "infeasible":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// classifyError maps pipeline failures to stable API error kinds so callers
// can distinguish "add quota" from "relax the time budget".
func classifyError(err error) string {
	var quota *ports.QuotaError
	var unavailable *ports.ProviderUnavailableError
	var infeasible *solver.InfeasibleError

	switch {
	case errors.As(err, &quota):
		return "quota_exhausted"
	case errors.As(err, &unavailable):
		return "provider_unavailable"
	case errors.As(err, &infeasible):
		return "infeasible"
	default:
		return "internal"
	}
}
