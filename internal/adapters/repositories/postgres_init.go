package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the Postgres database schema.
func InitPostgresSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init postgres schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init postgres schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS stops (
			stop_id SERIAL PRIMARY KEY,
			day TEXT NOT NULL,
			route TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			coords TEXT NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS matrix_cache (
	        origin TEXT NOT NULL,
	        destination TEXT NOT NULL,
	        distance_meters INTEGER NOT NULL,
	        duration_seconds INTEGER NOT NULL,
	        PRIMARY KEY (origin, destination)
	    );
		`,
		`
		CREATE INDEX IF NOT EXISTS idx_stops_day_route
	    ON stops(day, route);
		`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init postgres schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init postgres schema: commit tx: %w", err)
	}

	return nil
}

// Populate the Postgres database with stop data from a JSON file.
func SeedPostgresFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed stops: read %q: %w", jsonPath, err)
	}

	var data []StopSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed stops: parse json: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed stops: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stops;`); err != nil {
		return fmt.Errorf("seed stops: clear table: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO stops (day, route, department, label, coords)
    VALUES ($1, $2, $3, $4, $5);
	`)
	if err != nil {
		return fmt.Errorf("seed stops: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range data {
		day := strings.TrimSpace(s.Day)
		label := strings.TrimSpace(s.Label)
		coords := strings.TrimSpace(s.Coords)
		if day == "" || label == "" || coords == "" {
			return fmt.Errorf("seed stops: item at index %d: day, label and coords are required", i+1)
		}

		if _, err := stmt.Exec(day, strings.TrimSpace(s.Route), strings.TrimSpace(s.Department), label, coords); err != nil {
			return fmt.Errorf("seed stops: insert label=%q: %w", label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed stops: commit tx: %w", err)
	}

	return nil
}
