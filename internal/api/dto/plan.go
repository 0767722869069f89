package dto

import "time"

type PlanRequest struct {
	Policy     string `json:"policy"`
	StartLabel string `json:"start_label"`
	EndLabel   string `json:"end_label"`

	TimeBudgetSeconds int `json:"time_budget_seconds"`
	DwellSeconds      int `json:"dwell_seconds"`
	MaxVehicles       int `json:"max_vehicles"`

	ZonePenaltyWeight          float64 `json:"zone_penalty_weight"`
	VehicleFixedCostMultiplier int     `json:"vehicle_fixed_cost_multiplier"`

	SearchTimeSeconds int   `json:"search_time_seconds"`
	Seed              int64 `json:"seed"`

	StartAt    *time.Time `json:"start_at"`
	UsePattern bool       `json:"use_pattern"`
}

type ScheduleEntryResponse struct {
	Label                     string     `json:"label"`
	Department                string     `json:"department,omitempty"`
	Coords                    string     `json:"coords"`
	ArriveAt                  time.Time  `json:"arrive_at"`
	DepartAt                  *time.Time `json:"depart_at,omitempty"`
	LegDistanceMeters         int        `json:"leg_distance_meters"`
	CumulativeDistanceMeters  int        `json:"cumulative_distance_meters"`
	LegDurationSeconds        int        `json:"leg_duration_seconds"`
	CumulativeDurationSeconds int        `json:"cumulative_duration_seconds"`
}

type TourResponse struct {
	VehicleID            int                     `json:"vehicle_id"`
	TotalDistanceMeters  int                     `json:"total_distance_meters"`
	TotalDurationSeconds int                     `json:"total_duration_seconds"`
	Stops                []ScheduleEntryResponse `json:"stops"`
	Geometry             [][]float64             `json:"geometry,omitempty"`
}

type PartitionResponse struct {
	Day       string         `json:"day"`
	Route     string         `json:"route,omitempty"`
	Tours     []TourResponse `json:"tours,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
}

type PlanResponse struct {
	Partitions []PartitionResponse `json:"partitions"`
}
