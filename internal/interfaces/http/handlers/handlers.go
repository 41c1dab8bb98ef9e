// Package handlers implements the read-only status endpoints exposed by
// internal/interfaces/http: /health, /snapshots/{symbol}, /decisions/{symbol}.
// None of these write to the pipeline — they only read back what the
// orchestrator already persisted.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

// Handlers bundles the persistence reads every endpoint serves from.
type Handlers struct {
	repo      *persistence.Repository
	startedAt time.Time
}

// NewHandlers wires the handlers against the orchestrator's repository
// bundle.
func NewHandlers(repo *persistence.Repository) *Handlers {
	return &Handlers{repo: repo, startedAt: time.Now()}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(RequestIDKey{}).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	h.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// RequestIDKey is the context key the request-ID middleware stores under.
type RequestIDKey struct{}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}
