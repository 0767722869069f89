package ors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/ports"
)

// testPoints gives every point a unique longitude so the fake provider can
// recover global indices from the location list.
func testPoints(n int) []domain.Point {
	pts := make([]domain.Point, n)
	for i := range pts {
		pts[i] = domain.Point{Lon: float64(i), Lat: 0}
	}
	return pts
}

// groundTruth is the duration a hypothetical single oversized call would
// return for the pair (i, j).
func groundTruth(i, j int) int {
	return 1000*i + j + 1
}

// newMatrixServer answers any matrix sub-request consistently with
// groundTruth, so stitched results can be compared against the unchunked
// ideal. unroutable pairs come back as JSON nulls.
func newMatrixServer(t *testing.T, calls *atomic.Int64, unroutable map[[2]int]bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req matrixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		global := make([]int, len(req.Locations))
		for i, loc := range req.Locations {
			global[i] = int(loc[0])
		}

		var resp matrixResponse
		for _, s := range req.Sources {
			distRow := make([]*float64, len(req.Destinations))
			durRow := make([]*float64, len(req.Destinations))
			for k, d := range req.Destinations {
				gi, gj := global[s], global[d]
				if unroutable[[2]int{gi, gj}] {
					continue
				}
				seconds := float64(groundTruth(gi, gj))
				meters := seconds * 10
				distRow[k] = &meters
				durRow[k] = &seconds
			}
			resp.Distances = append(resp.Distances, distRow)
			resp.Durations = append(resp.Durations, durRow)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, baseURL string, cache ports.MatrixCache) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:             "test-key",
		BaseURL:            baseURL,
		MaxMatrixLocations: 50,
		MatrixBlockSize:    15,
		MaxTraceWaypoints:  4,
	}, cache)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func TestFetchMatrixSingleCall(t *testing.T) {
	var calls atomic.Int64
	srv := newMatrixServer(t, &calls, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	matrix, err := client.FetchMatrix(context.Background(), testPoints(10))
	if err != nil {
		t.Fatalf("fetch matrix: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("issued %d calls, want 1", got)
	}
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			if i == j {
				continue
			}
			if matrix.Durations[i][j] != groundTruth(i, j) {
				t.Fatalf("cell (%d,%d) = %d, want %d", i, j, matrix.Durations[i][j], groundTruth(i, j))
			}
		}
	}
}

func TestFetchMatrixStitchesOversizedSets(t *testing.T) {
	var calls atomic.Int64
	srv := newMatrixServer(t, &calls, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	// 60 points exceed the 50-location call limit, so the adapter must
	// partition into block pairs and stitch.
	matrix, err := client.FetchMatrix(context.Background(), testPoints(60))
	if err != nil {
		t.Fatalf("fetch matrix: %v", err)
	}

	if got := calls.Load(); got < 4 {
		t.Errorf("issued %d sub-requests, want at least 4", got)
	}

	if !matrix.Complete() {
		t.Fatal("stitched matrix has unset cells")
	}

	// Every stitched cell must equal what one oversized call would return.
	for i := 0; i < 60; i++ {
		for j := 0; j < 60; j++ {
			if i == j {
				continue
			}
			if matrix.Durations[i][j] != groundTruth(i, j) {
				t.Fatalf("cell (%d,%d) = %d, want %d", i, j, matrix.Durations[i][j], groundTruth(i, j))
			}
			if matrix.Distances[i][j] != groundTruth(i, j)*10 {
				t.Fatalf("distance cell (%d,%d) = %d, want %d", i, j, matrix.Distances[i][j], groundTruth(i, j)*10)
			}
		}
	}
}

func TestFetchMatrixPreservesUnreachableCells(t *testing.T) {
	var calls atomic.Int64
	srv := newMatrixServer(t, &calls, map[[2]int]bool{{2, 5}: true})
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	matrix, err := client.FetchMatrix(context.Background(), testPoints(8))
	if err != nil {
		t.Fatalf("fetch matrix: %v", err)
	}

	if matrix.Durations[2][5] != domain.Unreachable {
		t.Errorf("null provider cell = %d, want the Unreachable sentinel", matrix.Durations[2][5])
	}
	if matrix.Durations[5][2] != groundTruth(5, 2) {
		t.Errorf("reverse direction should be routable, got %d", matrix.Durations[5][2])
	}
}

type stubCache struct {
	entries map[ports.PairKey]ports.CostEntry
	puts    int
}

func (c *stubCache) GetMany(_ context.Context, keys []ports.PairKey) (map[ports.PairKey]ports.CostEntry, error) {
	out := make(map[ports.PairKey]ports.CostEntry)
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

func (c *stubCache) PutMany(_ context.Context, entries map[ports.PairKey]ports.CostEntry) error {
	c.puts++
	for k, e := range entries {
		c.entries[k] = e
	}
	return nil
}

func TestFetchMatrixServedEntirelyFromCache(t *testing.T) {
	pts := testPoints(5)
	cache := &stubCache{entries: make(map[ports.PairKey]ports.CostEntry)}
	for i := range pts {
		for j := range pts {
			if i != j {
				cache.entries[ports.PairKey{From: pts[i].Key(), To: pts[j].Key()}] = ports.CostEntry{
					DistanceMeters:  groundTruth(i, j) * 10,
					DurationSeconds: groundTruth(i, j),
				}
			}
		}
	}

	var calls atomic.Int64
	srv := newMatrixServer(t, &calls, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL, cache)

	matrix, err := client.FetchMatrix(context.Background(), pts)
	if err != nil {
		t.Fatalf("fetch matrix: %v", err)
	}

	if got := calls.Load(); got != 0 {
		t.Errorf("issued %d calls with a fully warmed cache, want 0", got)
	}
	if matrix.Durations[1][4] != groundTruth(1, 4) {
		t.Errorf("cached cell (1,4) = %d, want %d", matrix.Durations[1][4], groundTruth(1, 4))
	}
}
