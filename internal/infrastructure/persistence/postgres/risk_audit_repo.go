package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

type riskAuditRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRiskAuditRepo builds a RiskAuditRepo against the risk_audits table.
func NewRiskAuditRepo(db *sqlx.DB, timeout time.Duration) persistence.RiskAuditRepo {
	return &riskAuditRepo{db: db, timeout: timeout}
}

func (r *riskAuditRepo) Insert(ctx context.Context, snapshotID, symbol string, result domain.RiskCheckResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	correctionsJSON, err := json.Marshal(result.Corrections)
	if err != nil {
		return fmt.Errorf("marshal corrections: %w", err)
	}

	query := `
		INSERT INTO risk_audits (snapshot_id, symbol, passed, risk_level, blocked_reason, corrections, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		snapshotID, symbol, result.Passed, result.RiskLevel, result.BlockedReason,
		correctionsJSON, pq.Array(result.Warnings))
	if err != nil {
		return fmt.Errorf("insert risk audit: %w", err)
	}
	return nil
}

func (r *riskAuditRepo) GetBySnapshot(ctx context.Context, snapshotID string) (*domain.RiskCheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		Passed        bool           `db:"passed"`
		RiskLevel     string         `db:"risk_level"`
		BlockedReason string         `db:"blocked_reason"`
		Corrections   []byte         `db:"corrections"`
		Warnings      pq.StringArray `db:"warnings"`
	}

	query := `SELECT passed, risk_level, blocked_reason, corrections, warnings
		FROM risk_audits WHERE snapshot_id = $1`
	if err := r.db.GetContext(ctx, &row, query, snapshotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get risk audit: %w", err)
	}

	result := &domain.RiskCheckResult{
		Passed:        row.Passed,
		RiskLevel:     domain.RiskLevel(row.RiskLevel),
		BlockedReason: row.BlockedReason,
		Warnings:      []string(row.Warnings),
	}
	if err := json.Unmarshal(row.Corrections, &result.Corrections); err != nil {
		return nil, fmt.Errorf("unmarshal corrections: %w", err)
	}
	return result, nil
}
