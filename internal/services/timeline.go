package services

import (
	"fmt"
	"time"

	"fleet-route-service/internal/domain"
)

// DeriveTimeline computes the arrival/departure schedule for an ordered stop
// list from its per-leg metrics, a start timestamp, and a per-stop dwell.
//
// The first stop's arrival is the start timestamp and it incurs the dwell;
// each subsequent arrival is the previous departure plus that leg's
// duration; the final stop incurs no dwell and has no departure (the trip
// ends there). Pure and deterministic: recomputed whenever start time or
// dwell changes, never cached across parameter changes.
func DeriveTimeline(
	stops []domain.Stop,
	legs []domain.Leg,
	startAt time.Time,
	dwell time.Duration,
) ([]domain.ScheduleEntry, error) {
	if len(stops) == 0 {
		return []domain.ScheduleEntry{}, nil
	}

	if len(legs) != len(stops)-1 {
		return nil, fmt.Errorf("derive timeline: %d legs for %d stops, want %d", len(legs), len(stops), len(stops)-1)
	}

	entries := make([]domain.ScheduleEntry, 0, len(stops))

	arrive := startAt
	cumulativeMeters := 0
	cumulativeSeconds := 0

	for i, stop := range stops {
		entry := domain.ScheduleEntry{
			Stop:     stop,
			ArriveAt: arrive,
		}

		if i > 0 {
			leg := legs[i-1]
			entry.LegDistanceMeters = leg.DistanceMeters
			entry.LegDurationSeconds = leg.DurationSeconds
			cumulativeMeters += leg.DistanceMeters
			cumulativeSeconds += leg.DurationSeconds
		}
		entry.CumulativeDistanceMeters = cumulativeMeters
		entry.CumulativeDurationSeconds = cumulativeSeconds

		if i < len(stops)-1 {
			depart := arrive.Add(dwell)
			entry.DepartAt = &depart
			arrive = depart.Add(time.Duration(legs[i].DurationSeconds) * time.Second)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
