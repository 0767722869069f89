package domain

import "time"

// The ordered sequence of stops assigned to one vehicle for one day.
// When a forced end is configured it is always the last stop of every
// non-empty tour.
type VehicleTour struct {
	VehicleID int
	Stops     []Stop
}

// Labels returns the tour's stop labels in visit order.
func (t VehicleTour) Labels() []string {
	out := make([]string, len(t.Stops))
	for i, s := range t.Stops {
		out[i] = s.Label
	}
	return out
}

// One road segment between two consecutive stops.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
}

// Road-accurate rendering of one VehicleTour: summary metrics, one Leg per
// consecutive stop pair, and the route geometry as returned by the provider.
type RouteTrace struct {
	DistanceMeters  int
	DurationSeconds int
	Legs            []Leg
	Geometry        []Point
}

// Derived schedule line for one stop in a tour. Never persisted: start time
// and dwell are adjustable after solving, so entries are recomputed on
// demand from the tour and its trace.
type ScheduleEntry struct {
	Stop                      Stop
	ArriveAt                  time.Time
	DepartAt                  *time.Time // nil on the final stop: the trip ends there
	LegDistanceMeters         int
	CumulativeDistanceMeters  int
	LegDurationSeconds        int
	CumulativeDurationSeconds int
}
