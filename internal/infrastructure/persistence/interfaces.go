// Package persistence defines the append-only repository boundary every
// pipeline stage's output is written through, keyed by snapshot_id so a
// cycle's full artifact trail (snapshot, analysis, decision, audit,
// execution) can be reconstructed later.
package persistence

import (
	"context"
	"time"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// TimeRange bounds a query window.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// SnapshotRepo persists the raw MarketSnapshot produced by DataSyncAgent.
type SnapshotRepo interface {
	Insert(ctx context.Context, snap domain.MarketSnapshot) error
	GetByID(ctx context.Context, snapshotID string) (*domain.MarketSnapshot, error)
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]domain.MarketSnapshot, error)
}

// QuantAnalysisRepo persists QuantAnalystAgent's output per snapshot.
type QuantAnalysisRepo interface {
	Insert(ctx context.Context, snapshotID, symbol string, analysis domain.QuantAnalysis) error
	GetBySnapshot(ctx context.Context, snapshotID string) (*domain.QuantAnalysis, error)
}

// DecisionRepo persists DecisionCoreAgent's VoteResult per snapshot.
type DecisionRepo interface {
	Insert(ctx context.Context, snapshotID, symbol string, vote domain.VoteResult) error
	GetBySnapshot(ctx context.Context, snapshotID string) (*domain.VoteResult, error)
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]domain.VoteResult, error)
}

// RiskAuditRepo persists RiskAuditAgent's output per snapshot.
type RiskAuditRepo interface {
	Insert(ctx context.Context, snapshotID, symbol string, result domain.RiskCheckResult) error
	GetBySnapshot(ctx context.Context, snapshotID string) (*domain.RiskCheckResult, error)
}

// ExecutionRepo persists OrderSink results, unique on (snapshot_id, symbol)
// so a retried submission after a crash is idempotent.
type ExecutionRepo interface {
	Insert(ctx context.Context, result domain.ExecutionResult) error
	GetBySnapshotAndSymbol(ctx context.Context, snapshotID, symbol string) (*domain.ExecutionResult, error)
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]domain.ExecutionResult, error)
}

// Repository aggregates every pipeline repo behind one handle.
type Repository struct {
	Snapshots SnapshotRepo
	Quant     QuantAnalysisRepo
	Decisions DecisionRepo
	RiskAudit RiskAuditRepo
	Execution ExecutionRepo
}
