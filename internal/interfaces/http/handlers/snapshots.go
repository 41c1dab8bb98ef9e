package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

const defaultListLimit = 50

// Snapshots handles GET /snapshots/{symbol}?limit=N, returning the most
// recent MarketSnapshots DataSyncAgent persisted for that symbol.
func (h *Handlers) Snapshots(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if symbol == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_symbol", "symbol path segment is required")
		return
	}

	limit := parseLimit(r)
	tr := persistence.TimeRange{To: time.Now().UTC()}

	snaps, err := h.repo.Snapshots.ListBySymbol(r.Context(), symbol, tr, limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "snapshot_query_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"count":     len(snaps),
		"snapshots": snaps,
	})
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}
