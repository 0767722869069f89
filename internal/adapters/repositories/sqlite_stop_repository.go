package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"fleet-route-service/internal/domain"
)

// SQLite-backed implementation of the StopRepository port.
type SqliteStopRepository struct{ DB *sql.DB }

func NewSqliteStopRepository(db *sql.DB) *SqliteStopRepository {
	return &SqliteStopRepository{DB: db}
}

// Return all stops in source order. Rows that fail validation (blank label,
// unparseable coordinates) are logged and dropped rather than failing the
// whole listing.
func (s *SqliteStopRepository) ListStops(ctx context.Context) ([]domain.Stop, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite stop repository: DB is nil")
	}

	query := `
	SELECT
		day,
		route,
		department,
		label,
		coords
	FROM stops
	ORDER BY stop_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stops: query stops table: %w", err)
	}
	defer rows.Close()

	stops := make([]domain.Stop, 0, 64)
	for rows.Next() {
		var day, route, department, label, coords string
		if err := rows.Scan(&day, &route, &department, &label, &coords); err != nil {
			return nil, fmt.Errorf("list stops: scan row: %w", err)
		}

		stop, err := domain.NewStop(day, route, department, label, coords)
		if err != nil {
			log.Printf("list stops: dropping invalid row: %v", err)
			continue
		}
		stops = append(stops, stop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stops: row iteration: %w", err)
	}

	return stops, nil
}
