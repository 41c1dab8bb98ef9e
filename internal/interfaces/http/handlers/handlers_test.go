package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

// fakeSnapshotRepo is a hand-rolled stub, preferred
// for fakes over a mocking framework at this boundary.
type fakeSnapshotRepo struct {
	bySymbol map[string][]domain.MarketSnapshot
	err      error
}

func (f *fakeSnapshotRepo) Insert(ctx context.Context, snap domain.MarketSnapshot) error { return nil }
func (f *fakeSnapshotRepo) GetByID(ctx context.Context, id string) (*domain.MarketSnapshot, error) {
	return nil, nil
}
func (f *fakeSnapshotRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.MarketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySymbol[symbol], nil
}

type fakeDecisionRepo struct {
	bySymbol map[string][]domain.VoteResult
}

func (f *fakeDecisionRepo) Insert(ctx context.Context, snapshotID, symbol string, vote domain.VoteResult) error {
	return nil
}
func (f *fakeDecisionRepo) GetBySnapshot(ctx context.Context, snapshotID string) (*domain.VoteResult, error) {
	return nil, nil
}
func (f *fakeDecisionRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.VoteResult, error) {
	return f.bySymbol[symbol], nil
}

func newTestHandlers(snapRepo *fakeSnapshotRepo, decRepo *fakeDecisionRepo) *Handlers {
	return NewHandlers(&persistence.Repository{Snapshots: snapRepo, Decisions: decRepo})
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := newTestHandlers(&fakeSnapshotRepo{}, &fakeDecisionRepo{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	h.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"healthy"`)
}

func TestSnapshots_ReturnsPersistedSnapshotsForSymbol(t *testing.T) {
	snapRepo := &fakeSnapshotRepo{bySymbol: map[string][]domain.MarketSnapshot{
		"BTCUSDT": {{SnapshotID: "snap-1", Symbol: "BTCUSDT"}},
	}}
	h := newTestHandlers(snapRepo, &fakeDecisionRepo{})

	router := mux.NewRouter()
	router.HandleFunc("/snapshots/{symbol}", h.Snapshots)

	req := httptest.NewRequest(http.MethodGet, "/snapshots/BTCUSDT", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "snap-1")
}

func TestSnapshots_RepoErrorYields500(t *testing.T) {
	snapRepo := &fakeSnapshotRepo{err: assert.AnError}
	h := newTestHandlers(snapRepo, &fakeDecisionRepo{})

	router := mux.NewRouter()
	router.HandleFunc("/snapshots/{symbol}", h.Snapshots)

	req := httptest.NewRequest(http.MethodGet, "/snapshots/BTCUSDT", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestDecisions_ReturnsPersistedVotesForSymbol(t *testing.T) {
	decRepo := &fakeDecisionRepo{bySymbol: map[string][]domain.VoteResult{
		"ETHUSDT": {{Action: domain.ActionLong, Confidence: 85}},
	}}
	h := newTestHandlers(&fakeSnapshotRepo{}, decRepo)

	router := mux.NewRouter()
	router.HandleFunc("/decisions/{symbol}", h.Decisions)

	req := httptest.NewRequest(http.MethodGet, "/decisions/ethusdt", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":1`)
}

func TestNotFound_ReturnsStructuredError(t *testing.T) {
	h := newTestHandlers(&fakeSnapshotRepo{}, &fakeDecisionRepo{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()

	h.NotFound(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "endpoint_not_found")
}
