package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

// SqliteMatrixCache persists pairwise travel costs in SQLite so repeated
// planning runs over the same stops skip provider sub-requests entirely.
type SqliteMatrixCache struct {
	DB *sql.DB
}

func NewSqliteMatrixCache(db *sql.DB) *SqliteMatrixCache {
	return &SqliteMatrixCache{DB: db}
}

// Fetch cached costs for the given directed pairs. Missing pairs are simply
// absent from the result.
func (c *SqliteMatrixCache) GetMany(ctx context.Context, keys []ports.PairKey) (_ map[ports.PairKey]ports.CostEntry, err error) {
	defer obs.Time(ctx, "matrix.cache.GetMany")(&err)

	if c.DB == nil {
		return nil, errors.New("matrix cache: db is nil")
	}

	out := make(map[ports.PairKey]ports.CostEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	// Group by origin so each origin becomes one IN query.
	byOrigin := make(map[string][]string)
	for _, k := range keys {
		byOrigin[k.From] = append(byOrigin[k.From], k.To)
	}

	for origin, dests := range byOrigin {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dests)), ",")
		q := fmt.Sprintf(`
		SELECT destination, distance_meters, duration_seconds
		FROM matrix_cache
		WHERE origin = ? AND destination IN (%s);
		`, placeholders)

		args := make([]any, 0, 1+len(dests))
		args = append(args, origin)
		for _, d := range dests {
			args = append(args, d)
		}

		rows, err := c.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("get matrix cache: query origin %q: %w", origin, err)
		}

		for rows.Next() {
			var dest string
			var meters, seconds int
			if err := rows.Scan(&dest, &meters, &seconds); err != nil {
				rows.Close()
				return nil, fmt.Errorf("get matrix cache: scan row: %w", err)
			}
			out[ports.PairKey{From: origin, To: dest}] = ports.CostEntry{
				DistanceMeters:  meters,
				DurationSeconds: seconds,
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("get matrix cache: row iteration: %w", err)
		}
		rows.Close()
	}

	return out, nil
}

// Store many pairwise costs in one transaction.
func (c *SqliteMatrixCache) PutMany(ctx context.Context, entries map[ports.PairKey]ports.CostEntry) error {
	if c.DB == nil {
		return errors.New("matrix cache: db is nil")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert matrix cache: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO matrix_cache (origin, destination, distance_meters, duration_seconds)
	VALUES (?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("insert matrix cache: prepare: %w", err)
	}
	defer stmt.Close()

	for k, e := range entries {
		if k.From == "" || k.To == "" {
			return fmt.Errorf("insert matrix cache: empty pair key")
		}
		if _, err := stmt.ExecContext(ctx, k.From, k.To, e.DistanceMeters, e.DurationSeconds); err != nil {
			return fmt.Errorf("insert matrix cache %q -> %q: %w", k.From, k.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert matrix cache: commit: %w", err)
	}
	return nil
}
