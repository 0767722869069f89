package domain

import "fmt"

// A single geocoded visit target. One Stop per non-blank, parseable source
// row; immutable once created. RawCoords keeps the source "lat,lon" string
// for display and export.
type Stop struct {
	Day        string
	Route      string
	Department string
	Label      string
	Point      Point
	RawCoords  string
}

// NewStop validates a raw ingestion row into a Stop.
// Rows with a blank label or an unparseable coordinate string are rejected.
func NewStop(day, route, department, label, rawCoords string) (Stop, error) {
	if label == "" {
		return Stop{}, fmt.Errorf("new stop: label must be non-empty")
	}

	p, err := ParsePoint(rawCoords)
	if err != nil {
		return Stop{}, fmt.Errorf("new stop %q: %w", label, err)
	}

	return Stop{
		Day:        day,
		Route:      route,
		Department: department,
		Label:      label,
		Point:      p,
		RawCoords:  rawCoords,
	}, nil
}

// An ordered, label-deduplicated collection of Stops sharing a day (and
// optionally a route). Order matters only under the original-order policy;
// otherwise the set is the candidate pool for optimization.
type StopSet struct {
	Stops []Stop
}

// NewStopSet builds a StopSet preserving source order and keeping the first
// occurrence of each label.
func NewStopSet(stops []Stop) *StopSet {
	seen := make(map[string]struct{}, len(stops))
	out := make([]Stop, 0, len(stops))
	for _, s := range stops {
		if _, ok := seen[s.Label]; ok {
			continue
		}
		seen[s.Label] = struct{}{}
		out = append(out, s)
	}
	return &StopSet{Stops: out}
}

func (ss *StopSet) Len() int { return len(ss.Stops) }

// Points returns the stop coordinates in set order.
func (ss *StopSet) Points() []Point {
	pts := make([]Point, len(ss.Stops))
	for i, s := range ss.Stops {
		pts[i] = s.Point
	}
	return pts
}

// IndexOf returns the position of the stop with the given label, or -1.
func (ss *StopSet) IndexOf(label string) int {
	for i, s := range ss.Stops {
		if s.Label == label {
			return i
		}
	}
	return -1
}

// Departments returns the per-stop department tags in set order.
// Used as the zone tag for zone-affinity penalties.
func (ss *StopSet) Departments() []string {
	out := make([]string, len(ss.Stops))
	for i, s := range ss.Stops {
		out[i] = s.Department
	}
	return out
}
