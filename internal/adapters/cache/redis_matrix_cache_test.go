package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fleet-route-service/internal/ports"
)

func newTestRedisCache(t *testing.T) (*RedisMatrixCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisMatrixCache(client, time.Hour), srv
}

func TestRedisMatrixCacheRoundTrip(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	a := ports.PairKey{From: "-89.200000,13.700000", To: "-89.100000,13.600000"}
	b := ports.PairKey{From: "-89.100000,13.600000", To: "-89.200000,13.700000"}

	err := cache.PutMany(ctx, map[ports.PairKey]ports.CostEntry{
		a: {DistanceMeters: 15000, DurationSeconds: 1200},
		b: {DistanceMeters: 15200, DurationSeconds: 1260},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := cache.GetMany(ctx, []ports.PairKey{a, b})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[a].DurationSeconds != 1200 || got[b].DistanceMeters != 15200 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestRedisMatrixCacheMissesAreAbsent(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	hit := ports.PairKey{From: "0.000000,0.000000", To: "1.000000,1.000000"}
	miss := ports.PairKey{From: "1.000000,1.000000", To: "2.000000,2.000000"}

	if err := cache.PutMany(ctx, map[ports.PairKey]ports.CostEntry{
		hit: {DistanceMeters: 100, DurationSeconds: 10},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := cache.GetMany(ctx, []ports.PairKey{hit, miss})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got[miss]; ok {
		t.Error("missing pair should not appear in the result")
	}
	if got[hit].DistanceMeters != 100 {
		t.Errorf("hit = %+v, want 100m", got[hit])
	}
}

func TestRedisMatrixCacheEntriesExpire(t *testing.T) {
	cache, srv := newTestRedisCache(t)
	ctx := context.Background()

	k := ports.PairKey{From: "0.000000,0.000000", To: "1.000000,1.000000"}
	if err := cache.PutMany(ctx, map[ports.PairKey]ports.CostEntry{
		k: {DistanceMeters: 100, DurationSeconds: 10},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	srv.FastForward(2 * time.Hour)

	got, err := cache.GetMany(ctx, []ports.PairKey{k})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired entry still present: %+v", got)
	}
}
