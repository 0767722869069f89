package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Immutable geographic point stored as (longitude, latitude).
// Field order matches the ORS API convention, which takes [lon, lat] pairs.
type Point struct {
	Lon float64
	Lat float64
}

// Return the point as [lon, lat] for external API compatibility.
func (p Point) ToList() []float64 { return []float64{p.Lon, p.Lat} }

// Key returns a stable string form of the point, used as a cache key.
func (p Point) Key() string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

// ParsePoint parses a raw "lat,lon" source string into a Point.
//
// The source convention is latitude-then-longitude; the returned Point is
// longitude-then-latitude. Rows whose coordinate string does not hold exactly
// two numeric comma-separated fields produce an error and are dropped by
// callers, with no partial record retained.
func ParsePoint(raw string) (Point, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("parse point %q: want two comma-separated fields, got %d", raw, len(fields))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse point %q: latitude: %w", raw, err)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("parse point %q: longitude: %w", raw, err)
	}

	return Point{Lon: lon, Lat: lat}, nil
}
