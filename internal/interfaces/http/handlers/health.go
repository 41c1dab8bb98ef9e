package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UptimeSec float64   `json:"uptime_seconds"`
}

// Health handles GET /health. It reports process liveness only — it never
// touches Postgres, Redis, or the exchange, so it answers even while a
// symbol's cycle is degraded.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		UptimeSec: time.Since(h.startedAt).Seconds(),
	})
}
