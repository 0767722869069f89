package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the SQLite database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createStopsQuery := `
	CREATE TABLE IF NOT EXISTS stops (
		stop_id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		route TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL,
		coords TEXT NOT NULL
	);
	`

	createMatrixCacheQuery := `
	CREATE TABLE IF NOT EXISTS matrix_cache (
        origin TEXT NOT NULL,
        destination TEXT NOT NULL,
        distance_meters INTEGER NOT NULL,
        duration_seconds INTEGER NOT NULL,
        PRIMARY KEY (origin, destination)
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_stops_day_route
    ON stops(day, route);
	`

	statements := []string{
		createStopsQuery,
		createMatrixCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type StopSeed struct {
	Day        string `json:"day"`
	Route      string `json:"route"`
	Department string `json:"department"`
	Label      string `json:"label"`
	Coords     string `json:"coords"`
}

// Populate the database with stop data from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed stops: read %q: %w", jsonPath, err)
	}

	var data []StopSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed stops: parse json: %w", err)
	}

	rows := make([]StopSeed, 0, len(data))
	for i, item := range data {
		day := strings.TrimSpace(item.Day)
		if day == "" {
			return fmt.Errorf("seed stops: item at index %d: day cannot be empty", i+1)
		}

		label := strings.TrimSpace(item.Label)
		if label == "" {
			return fmt.Errorf("seed stops: item at index %d: label cannot be empty", i+1)
		}

		coords := strings.TrimSpace(item.Coords)
		if coords == "" {
			return fmt.Errorf("seed stops: item at index %d: coords cannot be empty", i+1)
		}

		rows = append(rows, StopSeed{
			Day:        day,
			Route:      strings.TrimSpace(item.Route),
			Department: strings.TrimSpace(item.Department),
			Label:      label,
			Coords:     coords,
		})
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed stops: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Seeding replaces the whole table so reruns stay idempotent.
	if _, err := tx.Exec(`DELETE FROM stops;`); err != nil {
		return fmt.Errorf("seed stops: clear table: %w", err)
	}

	query := `
	INSERT INTO stops (
		day,
		route,
		department,
		label,
		coords
	)
	VALUES (?, ?, ?, ?, ?);
	`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("seed stops: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		if _, err := stmt.Exec(s.Day, s.Route, s.Department, s.Label, s.Coords); err != nil {
			return fmt.Errorf("seed stops: insert label=%q: %w", s.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed stops: commit tx: %w", err)
	}

	return nil
}
