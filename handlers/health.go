package handlers

import (
	"net/http"
	"time"

	"tulisin/respond"
)

// Health reports whether the database answers and how the pool is used.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "ok"
	if err := h.db.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}

	respond.JSON(w, status, map[string]any{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database": map[string]any{
			"driver":  h.db.Driver(),
			"healthy": h.db.Healthy(),
			"pool":    h.db.Stats(),
		},
	})
}
