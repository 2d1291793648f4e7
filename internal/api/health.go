// ABOUTME: Liveness endpoint reporting database reachability
// ABOUTME: Names the restaurant from settings so operators can tell boards apart

package api

import (
	"net/http"
	"time"
)

const defaultRestaurantName = "Basil & Grape"

type healthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Restaurant string `json:"restaurant"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		Timestamp:  a.now().UTC().Format(time.RFC3339Nano),
		Restaurant: defaultRestaurantName,
	}

	if a.db != nil {
		if err := a.db.Ping(r.Context()); err != nil {
			a.logger.Error("health check failed", "error", err)
			resp.Status = "unhealthy"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	if settings, err := a.board.Settings(r.Context()); err == nil {
		if name := settings["restaurant_name"]; name != "" {
			resp.Restaurant = name
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
