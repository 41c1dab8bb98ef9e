package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

type executionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewExecutionRepo builds an ExecutionRepo against the executions table,
// which carries a unique (snapshot_id, symbol) constraint for idempotent
// OrderSink retries.
func NewExecutionRepo(db *sqlx.DB, timeout time.Duration) persistence.ExecutionRepo {
	return &executionRepo{db: db, timeout: timeout}
}

func (r *executionRepo) Insert(ctx context.Context, result domain.ExecutionResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var errMsg *string
	if result.Err != nil {
		msg := result.Err.Error()
		errMsg = &msg
	}

	query := `
		INSERT INTO executions (snapshot_id, symbol, order_id, status, filled_qty, filled_price, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (snapshot_id, symbol) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		result.SnapshotID, result.Symbol, result.OrderID, result.Status,
		result.FilledQty, result.FilledPrice, errMsg)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate execution for snapshot %s symbol %s: %w", result.SnapshotID, result.Symbol, err)
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (r *executionRepo) GetBySnapshotAndSymbol(ctx context.Context, snapshotID, symbol string) (*domain.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		SnapshotID  string  `db:"snapshot_id"`
		Symbol      string  `db:"symbol"`
		OrderID     string  `db:"order_id"`
		Status      string  `db:"status"`
		FilledQty   float64 `db:"filled_qty"`
		FilledPrice float64 `db:"filled_price"`
	}

	query := `SELECT snapshot_id, symbol, order_id, status, filled_qty, filled_price
		FROM executions WHERE snapshot_id = $1 AND symbol = $2`
	if err := r.db.GetContext(ctx, &row, query, snapshotID, symbol); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}

	return &domain.ExecutionResult{
		SnapshotID:  row.SnapshotID,
		Symbol:      row.Symbol,
		OrderID:     row.OrderID,
		Status:      domain.ExecutionStatus(row.Status),
		FilledQty:   row.FilledQty,
		FilledPrice: row.FilledPrice,
	}, nil
}

func (r *executionRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT e.snapshot_id, e.symbol, e.order_id, e.status, e.filled_qty, e.filled_price
		FROM executions e
		JOIN snapshots s ON s.snapshot_id = e.snapshot_id
		WHERE e.symbol = $1 AND s.ts >= $2 AND s.ts <= $3
		ORDER BY s.ts DESC LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		var row struct {
			SnapshotID  string  `db:"snapshot_id"`
			Symbol      string  `db:"symbol"`
			OrderID     string  `db:"order_id"`
			Status      string  `db:"status"`
			FilledQty   float64 `db:"filled_qty"`
			FilledPrice float64 `db:"filled_price"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		results = append(results, domain.ExecutionResult{
			SnapshotID:  row.SnapshotID,
			Symbol:      row.Symbol,
			OrderID:     row.OrderID,
			Status:      domain.ExecutionStatus(row.Status),
			FilledQty:   row.FilledQty,
			FilledPrice: row.FilledPrice,
		})
	}
	return results, rows.Err()
}
