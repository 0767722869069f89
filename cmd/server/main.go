package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"fleet-route-service/internal/adapters/cache"
	"fleet-route-service/internal/adapters/offline"
	"fleet-route-service/internal/adapters/ors"
	"fleet-route-service/internal/adapters/repositories"
	"fleet-route-service/internal/api"
	"fleet-route-service/internal/config"
	"fleet-route-service/internal/platform/db"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (SQLite/Postgres, Redis, ORS) behind ports and
// starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	port := config.Get("PORT", "8080")
	seedPath := config.Get("SEED_PATH", "data/seeds/stops.json")

	database, repo, sqlCache, err := openStore()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := seedIfRequested(database, seedPath); err != nil {
		log.Fatal(err)
	}

	matrixCache, err := chooseMatrixCache(sqlCache)
	if err != nil {
		log.Fatal(err)
	}

	provider, err := chooseProvider(matrixCache)
	if err != nil {
		log.Fatal(err)
	}

	planner := services.NewPlanner(provider, provider)
	router := api.NewRouter(repo, planner)

	// Timeouts are tuned for cold-cache planning runs (external API latency).
	log.Printf("Server listening addr=:%s", port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

// routingProvider is what the planner needs from whichever adapter is chosen.
type routingProvider interface {
	ports.MatrixProvider
	ports.TraceProvider
}

// openStore opens Postgres when DATABASE_URL is set, SQLite otherwise, and
// returns the matching stop repository and SQL matrix cache variants.
func openStore() (*sql.DB, ports.StopRepository, ports.MatrixCache, error) {
	if databaseURL := os.Getenv("DATABASE_URL"); strings.TrimSpace(databaseURL) != "" {
		pg, err := db.Open(databaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := repositories.InitPostgresSchema(pg); err != nil {
			return nil, nil, nil, err
		}
		return pg, repositories.NewPostgresStopRepository(pg), cache.NewSQLMatrixCache(pg), nil
	}

	dbPath := config.Get("DB_PATH", "data/app.db")
	lite, err := openSqlite(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repositories.InitSchema(lite); err != nil {
		return nil, nil, nil, err
	}
	return lite, repositories.NewSqliteStopRepository(lite), cache.NewSqliteMatrixCache(lite), nil
}

func openSqlite(dbPath string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", dbPath, err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", dbPath, err)
	}

	return database, nil
}

// seedIfRequested loads demo stop data on startup for local runs.
// Postgres deployments are provisioned with dbtool instead.
func seedIfRequested(database *sql.DB, seedPath string) error {
	if strings.TrimSpace(os.Getenv("DATABASE_URL")) != "" {
		return nil
	}
	if _, err := os.Stat(seedPath); err != nil {
		log.Printf("No seed file at %q, starting with existing data", seedPath)
		return nil
	}
	return repositories.SeedFromJSON(database, seedPath)
}

// chooseMatrixCache prefers a shared Redis cache when REDIS_ADDR is set,
// falling back to the per-instance SQL cache.
func chooseMatrixCache(sqlCache ports.MatrixCache) (ports.MatrixCache, error) {
	addr := os.Getenv("REDIS_ADDR")
	if strings.TrimSpace(addr) == "" {
		return sqlCache, nil
	}

	client, err := cache.NewRedisClient(
		context.Background(),
		addr,
		os.Getenv("REDIS_PASSWORD"),
		config.GetInt("REDIS_DB", 0),
	)
	if err != nil {
		return nil, err
	}

	ttl := config.GetDuration("MATRIX_CACHE_TTL", 30*24*time.Hour)
	return cache.NewRedisMatrixCache(client, ttl), nil
}

// chooseProvider uses ORS when an API key is configured and the offline
// great-circle estimator otherwise, so the service runs without credentials.
func chooseProvider(matrixCache ports.MatrixCache) (routingProvider, error) {
	orsKey := os.Getenv("ORS_API_KEY")
	if strings.TrimSpace(orsKey) == "" {
		log.Println("ORS_API_KEY not set, using offline great-circle estimates")
		return offline.NewProvider(config.GetFloat("OFFLINE_SPEED_KMPH", 40)), nil
	}

	return ors.NewClient(ors.Config{
		APIKey:             orsKey,
		BaseURL:            config.Get("ORS_BASE_URL", ""),
		Profile:            config.Get("ORS_PROFILE", ""),
		MaxMatrixLocations: config.GetInt("ORS_MAX_MATRIX_LOCATIONS", 0),
		MatrixBlockSize:    config.GetInt("ORS_MATRIX_BLOCK_SIZE", 0),
		MaxTraceWaypoints:  config.GetInt("ORS_MAX_TRACE_WAYPOINTS", 0),
		InterCallDelay:     config.GetDuration("ORS_INTER_CALL_DELAY", 0),
		Timeout:            config.GetDuration("ORS_TIMEOUT", 0),
	}, matrixCache)
}
