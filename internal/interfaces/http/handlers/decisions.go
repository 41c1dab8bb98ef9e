package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

// Decisions handles GET /decisions/{symbol}?limit=N, returning the most
// recent VoteResults DecisionCoreAgent persisted for that symbol.
func (h *Handlers) Decisions(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if symbol == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_symbol", "symbol path segment is required")
		return
	}

	limit := parseLimit(r)
	tr := persistence.TimeRange{To: time.Now().UTC()}

	decisions, err := h.repo.Decisions.ListBySymbol(r.Context(), symbol, tr, limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "decision_query_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"count":     len(decisions),
		"decisions": decisions,
	})
}
