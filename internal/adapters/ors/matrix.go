package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// FetchMatrix retrieves the full N×N distance/duration matrix for the given
// points from the ORS matrix endpoint.
//
// Point sets within the provider's per-call limit go out as one request.
// Larger sets are partitioned into fixed-size index blocks; every
// (origin-block, destination-block) pair becomes one sub-request over the
// de-duplicated union of the pair's points, and the returned sub-matrices
// are stitched back into the full matrix. Sub-requests are spaced by the
// configured inter-call delay to respect provider rate limits.
//
// Cells the provider reports as null stay at the Unreachable sentinel and
// are never coerced to zero.
func (c *Client) FetchMatrix(ctx context.Context, points []domain.Point) (_ *domain.CostMatrix, err error) {
	defer obs.Time(ctx, "ors.FetchMatrix")(&err)

	n := len(points)
	matrix := domain.NewCostMatrix(n)
	if n <= 1 {
		return matrix, nil
	}

	if err := c.fillFromCache(ctx, points, matrix); err != nil {
		log.Printf("matrix cache read failed: %v", err)
	}
	if matrix.Complete() {
		return matrix, nil
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	if n <= c.cfg.MaxMatrixLocations {
		if err := c.fetchMatrixBlock(ctx, points, all, all, matrix, true); err != nil {
			return nil, err
		}
	} else {
		first := true
		for so := 0; so < n; so += c.cfg.MatrixBlockSize {
			src := all[so:min(so+c.cfg.MatrixBlockSize, n)]
			for do := 0; do < n; do += c.cfg.MatrixBlockSize {
				dst := all[do:min(do+c.cfg.MatrixBlockSize, n)]
				if blockFilled(matrix, src, dst) {
					continue
				}
				if err := c.fetchMatrixBlock(ctx, points, src, dst, matrix, first); err != nil {
					return nil, err
				}
				first = false
			}
		}
	}

	if err := c.storeToCache(ctx, points, matrix); err != nil {
		log.Printf("matrix cache write failed: %v", err)
	}

	return matrix, nil
}

// fetchMatrixBlock issues one matrix sub-request covering the given origin
// and destination index blocks and copies the returned cells into m.
func (c *Client) fetchMatrixBlock(
	ctx context.Context,
	points []domain.Point,
	src, dst []int,
	m *domain.CostMatrix,
	first bool,
) error {
	if !first {
		if err := c.sleep(ctx, c.cfg.InterCallDelay); err != nil {
			return err
		}
	}

	// De-duplicated union of the block pair's points: overlapping blocks
	// would otherwise ship duplicate locations in a single call.
	local := make(map[int]int, len(src)+len(dst))
	var locations [][]float64
	for _, lists := range [][]int{src, dst} {
		for _, gi := range lists {
			if _, ok := local[gi]; ok {
				continue
			}
			local[gi] = len(locations)
			locations = append(locations, points[gi].ToList())
		}
	}

	sources := make([]int, len(src))
	for i, gi := range src {
		sources[i] = local[gi]
	}
	destinations := make([]int, len(dst))
	for i, gi := range dst {
		destinations[i] = local[gi]
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      sources,
		Destinations: destinations,
		Metrics:      []string{"distance", "duration"},
	})
	if err != nil {
		return fmt.Errorf("marshal matrix request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", c.cfg.BaseURL, c.cfg.Profile)
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(src) || len(mr.Durations) != len(src) {
		return fmt.Errorf(
			"matrix rows do not match sources: distances=%d durations=%d sources=%d",
			len(mr.Distances), len(mr.Durations), len(src),
		)
	}

	for si, gi := range src {
		distRow := mr.Distances[si]
		durRow := mr.Durations[si]
		if len(distRow) != len(dst) || len(durRow) != len(dst) {
			return fmt.Errorf(
				"matrix columns do not match destinations: distances=%d durations=%d destinations=%d",
				len(distRow), len(durRow), len(dst),
			)
		}

		for di, gj := range dst {
			if gi == gj {
				continue
			}
			meters := distRow[di]
			seconds := durRow[di]
			if meters == nil || seconds == nil {
				// Unroutable pair: keep the Unreachable sentinel.
				continue
			}
			m.Set(gi, gj, int(math.Round(*meters)), int(math.Round(*seconds)))
		}
	}

	return nil
}

// blockFilled reports whether every cell of the block pair is already known,
// letting cache-warmed runs skip whole sub-requests.
func blockFilled(m *domain.CostMatrix, src, dst []int) bool {
	for _, gi := range src {
		for _, gj := range dst {
			if gi != gj && m.Durations[gi][gj] == domain.Unreachable {
				return false
			}
		}
	}
	return true
}

func (c *Client) fillFromCache(ctx context.Context, points []domain.Point, m *domain.CostMatrix) error {
	if c.cache == nil {
		return nil
	}

	keys := make([]ports.PairKey, 0, len(points)*(len(points)-1))
	for i := range points {
		for j := range points {
			if i != j {
				keys = append(keys, ports.PairKey{From: points[i].Key(), To: points[j].Key()})
			}
		}
	}

	hits, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		return err
	}

	for i := range points {
		for j := range points {
			if i == j {
				continue
			}
			if hit, ok := hits[ports.PairKey{From: points[i].Key(), To: points[j].Key()}]; ok {
				m.Set(i, j, hit.DistanceMeters, hit.DurationSeconds)
			}
		}
	}
	return nil
}

func (c *Client) storeToCache(ctx context.Context, points []domain.Point, m *domain.CostMatrix) error {
	if c.cache == nil {
		return nil
	}

	entries := make(map[ports.PairKey]ports.CostEntry)
	for i := range points {
		for j := range points {
			if i == j || m.Durations[i][j] == domain.Unreachable {
				continue
			}
			entries[ports.PairKey{From: points[i].Key(), To: points[j].Key()}] = ports.CostEntry{
				DistanceMeters:  m.Distances[i][j],
				DurationSeconds: m.Durations[i][j],
			}
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return c.cache.PutMany(ctx, entries)
}
