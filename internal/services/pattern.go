package services

import (
	"fleet-route-service/internal/domain"
)

// UnionStopSet merges the stops seen across all days into one candidate set,
// deduplicated by label in first-seen order. When a forced end stop is
// configured but absent from the union, it is injected synthetically (copied
// from wherever it was first defined) so every canonical tour can terminate
// there.
func UnionStopSet(stops []domain.Stop, end *domain.Stop) *domain.StopSet {
	set := domain.NewStopSet(stops)
	if end != nil && set.IndexOf(end.Label) == -1 {
		set.Stops = append(set.Stops, *end)
	}
	return set
}

// ReplicateTour reapplies one canonical pattern tour to a single day.
//
// The tour's sequence is filtered down to the labels present that day,
// preserving relative order and substituting the day's own Stop rows. If
// fewer than 2 stops survive the filter, the tour is skipped for that day.
// Otherwise the forced end label is moved (or appended, when the day lacks
// it) so it is always last.
func ReplicateTour(
	pattern domain.VehicleTour,
	present map[string]domain.Stop,
	endLabel string,
) (domain.VehicleTour, bool) {
	filtered := make([]domain.Stop, 0, len(pattern.Stops))
	for _, s := range pattern.Stops {
		if dayStop, ok := present[s.Label]; ok {
			filtered = append(filtered, dayStop)
		}
	}

	if len(filtered) < 2 {
		return domain.VehicleTour{}, false
	}

	if endLabel != "" {
		withoutEnd := make([]domain.Stop, 0, len(filtered))
		var end *domain.Stop
		for i := range filtered {
			if filtered[i].Label == endLabel {
				end = &filtered[i]
				continue
			}
			withoutEnd = append(withoutEnd, filtered[i])
		}

		if end == nil {
			// Absent that day: append the canonical copy.
			for i := range pattern.Stops {
				if pattern.Stops[i].Label == endLabel {
					end = &pattern.Stops[i]
					break
				}
			}
		}

		if end != nil {
			filtered = append(withoutEnd, *end)
		}
	}

	return domain.VehicleTour{VehicleID: pattern.VehicleID, Stops: filtered}, true
}
