package handlers

import (
	"log"
	"net/http"

	"fleet-route-service/internal/api/dto"
	"fleet-route-service/internal/ports"
)

// StopHandler exposes read-only stop retrieval endpoints.
type StopHandler struct {
	Repo ports.StopRepository
}

func (h *StopHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stops, err := h.Repo.ListStops(r.Context())
	if err != nil {
		log.Printf("list stops failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	// Optional ?day= filter narrows the listing to one planning day.
	day := r.URL.Query().Get("day")

	res := dto.ListStopsResponse{Stops: make([]dto.StopResponse, 0, len(stops))}
	for _, s := range stops {
		if day != "" && s.Day != day {
			continue
		}
		res.Stops = append(res.Stops, dto.StopResponse{
			Day:        s.Day,
			Route:      s.Route,
			Department: s.Department,
			Label:      s.Label,
			Coords:     s.RawCoords,
			Lon:        s.Point.Lon,
			Lat:        s.Point.Lat,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
