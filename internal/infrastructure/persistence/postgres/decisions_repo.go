package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

type decisionsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDecisionRepo builds a DecisionRepo against the decisions table.
func NewDecisionRepo(db *sqlx.DB, timeout time.Duration) persistence.DecisionRepo {
	return &decisionsRepo{db: db, timeout: timeout}
}

func (r *decisionsRepo) Insert(ctx context.Context, snapshotID, symbol string, vote domain.VoteResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	detailsJSON, err := json.Marshal(vote.VoteDetails)
	if err != nil {
		return fmt.Errorf("marshal vote details: %w", err)
	}

	query := `
		INSERT INTO decisions
		(snapshot_id, symbol, action, confidence, weighted_score, vote_details, multi_period_aligned, regime, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		snapshotID, symbol, vote.Action, vote.Confidence, vote.WeightedScore, detailsJSON,
		vote.MultiPeriodAligned, vote.Regime, vote.Reason)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (r *decisionsRepo) GetBySnapshot(ctx context.Context, snapshotID string) (*domain.VoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		Action             string  `db:"action"`
		Confidence         float64 `db:"confidence"`
		WeightedScore      float64 `db:"weighted_score"`
		VoteDetails        []byte  `db:"vote_details"`
		MultiPeriodAligned bool    `db:"multi_period_aligned"`
		Regime             string  `db:"regime"`
		Reason             string  `db:"reason"`
	}

	query := `SELECT action, confidence, weighted_score, vote_details, multi_period_aligned, regime, reason
		FROM decisions WHERE snapshot_id = $1`
	if err := r.db.GetContext(ctx, &row, query, snapshotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}

	vote := &domain.VoteResult{
		Action:             domain.Action(row.Action),
		Confidence:         row.Confidence,
		WeightedScore:      row.WeightedScore,
		MultiPeriodAligned: row.MultiPeriodAligned,
		Regime:             domain.Regime(row.Regime),
		Reason:             row.Reason,
	}
	if err := json.Unmarshal(row.VoteDetails, &vote.VoteDetails); err != nil {
		return nil, fmt.Errorf("unmarshal vote details: %w", err)
	}
	return vote, nil
}

func (r *decisionsRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.VoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT d.action, d.confidence, d.weighted_score, d.vote_details, d.multi_period_aligned, d.regime, d.reason
		FROM decisions d
		JOIN snapshots s ON s.snapshot_id = d.snapshot_id
		WHERE d.symbol = $1 AND s.ts >= $2 AND s.ts <= $3
		ORDER BY s.ts DESC LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var votes []domain.VoteResult
	for rows.Next() {
		var row struct {
			Action             string  `db:"action"`
			Confidence         float64 `db:"confidence"`
			WeightedScore      float64 `db:"weighted_score"`
			VoteDetails        []byte  `db:"vote_details"`
			MultiPeriodAligned bool    `db:"multi_period_aligned"`
			Regime             string  `db:"regime"`
			Reason             string  `db:"reason"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		vote := domain.VoteResult{
			Action:             domain.Action(row.Action),
			Confidence:         row.Confidence,
			WeightedScore:      row.WeightedScore,
			MultiPeriodAligned: row.MultiPeriodAligned,
			Regime:             domain.Regime(row.Regime),
			Reason:             row.Reason,
		}
		if err := json.Unmarshal(row.VoteDetails, &vote.VoteDetails); err != nil {
			return nil, fmt.Errorf("unmarshal vote details: %w", err)
		}
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}
