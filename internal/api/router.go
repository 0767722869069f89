package api

import (
	"net/http"

	"fleet-route-service/internal/api/handlers"
	"fleet-route-service/internal/ports"
	"fleet-route-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(repo ports.StopRepository, planner *services.Planner) http.Handler {
	mux := http.NewServeMux()

	stopHandler := &handlers.StopHandler{Repo: repo}
	planHandler := &handlers.PlanHandler{
		Repo:    repo,
		Planner: planner,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/stops", stopHandler.List)
	mux.HandleFunc("/plans", planHandler.Plan)

	return requestIDMiddleware(loggingMiddleware(mux))
}
