package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
			Segments []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"segments"`
		} `json:"properties"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// FetchTrace retrieves the road-accurate polyline, summary metrics, and
// per-leg metrics for an ordered coordinate sequence from the ORS
// directions endpoint.
//
// Sequences beyond the per-call waypoint limit are split into overlapping
// chunks (each chunk's last point is the next chunk's first, keeping the
// route continuous) and stitched: distances and durations are summed, leg
// lists concatenated, and geometries concatenated with the first point of
// every chunk after the first dropped, since it duplicates the previous
// chunk's last point.
func (c *Client) FetchTrace(ctx context.Context, points []domain.Point) (_ *domain.RouteTrace, err error) {
	defer obs.Time(ctx, "ors.FetchTrace")(&err)

	if len(points) < 2 {
		return nil, fmt.Errorf("fetch trace: need at least 2 points, got %d", len(points))
	}

	out := &domain.RouteTrace{}

	for start, first := 0, true; start < len(points)-1; {
		end := min(start+c.cfg.MaxTraceWaypoints, len(points))
		chunk, err := c.fetchTraceChunk(ctx, points[start:end], first)
		if err != nil {
			return nil, err
		}

		out.DistanceMeters += chunk.DistanceMeters
		out.DurationSeconds += chunk.DurationSeconds
		out.Legs = append(out.Legs, chunk.Legs...)

		geometry := chunk.Geometry
		if !first && len(geometry) > 0 {
			geometry = geometry[1:]
		}
		out.Geometry = append(out.Geometry, geometry...)

		start = end - 1
		first = false
	}

	if len(out.Legs) != len(points)-1 {
		return nil, fmt.Errorf("fetch trace: provider returned %d legs for %d points", len(out.Legs), len(points))
	}

	return out, nil
}

// fetchTraceChunk retrieves one directions call worth of waypoints.
func (c *Client) fetchTraceChunk(ctx context.Context, points []domain.Point, first bool) (*domain.RouteTrace, error) {
	if !first {
		if err := c.sleep(ctx, c.cfg.InterCallDelay); err != nil {
			return nil, err
		}
	}

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = p.ToList()
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.cfg.BaseURL, c.cfg.Profile)
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return nil, fmt.Errorf("directions response has no features")
	}
	feature := dr.Features[0]

	if len(feature.Properties.Segments) != len(points)-1 {
		return nil, fmt.Errorf(
			"directions returned %d segments for %d waypoints",
			len(feature.Properties.Segments), len(points),
		)
	}

	trace := &domain.RouteTrace{
		DistanceMeters:  int(math.Round(feature.Properties.Summary.Distance)),
		DurationSeconds: int(math.Round(feature.Properties.Summary.Duration)),
	}
	for _, seg := range feature.Properties.Segments {
		trace.Legs = append(trace.Legs, domain.Leg{
			DistanceMeters:  int(math.Round(seg.Distance)),
			DurationSeconds: int(math.Round(seg.Duration)),
		})
	}
	for _, pair := range feature.Geometry.Coordinates {
		if len(pair) != 2 {
			return nil, fmt.Errorf("directions geometry has malformed coordinate %v", pair)
		}
		trace.Geometry = append(trace.Geometry, domain.Point{Lon: pair[0], Lat: pair[1]})
	}

	return trace, nil
}
