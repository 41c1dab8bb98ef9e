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

type quantAnalysisRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewQuantAnalysisRepo builds a QuantAnalysisRepo against the quant_analyses table.
func NewQuantAnalysisRepo(db *sqlx.DB, timeout time.Duration) persistence.QuantAnalysisRepo {
	return &quantAnalysisRepo{db: db, timeout: timeout}
}

func (r *quantAnalysisRepo) Insert(ctx context.Context, snapshotID, symbol string, analysis domain.QuantAnalysis) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	trendJSON, err := json.Marshal(analysis.Trend)
	if err != nil {
		return fmt.Errorf("marshal trend: %w", err)
	}
	oscJSON, err := json.Marshal(analysis.Oscillator)
	if err != nil {
		return fmt.Errorf("marshal oscillator: %w", err)
	}

	query := `
		INSERT INTO quant_analyses (snapshot_id, symbol, trend, oscillator, sentiment, composite, label, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		snapshotID, symbol, trendJSON, oscJSON, analysis.Sentiment, analysis.Composite,
		analysis.Label, pq.Array(analysis.Rationale))
	if err != nil {
		return fmt.Errorf("insert quant analysis: %w", err)
	}
	return nil
}

func (r *quantAnalysisRepo) GetBySnapshot(ctx context.Context, snapshotID string) (*domain.QuantAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		Trend      []byte         `db:"trend"`
		Oscillator []byte         `db:"oscillator"`
		Sentiment  float64        `db:"sentiment"`
		Composite  float64        `db:"composite"`
		Label      string         `db:"label"`
		Rationale  pq.StringArray `db:"rationale"`
	}

	query := `SELECT trend, oscillator, sentiment, composite, label, rationale
		FROM quant_analyses WHERE snapshot_id = $1`
	if err := r.db.GetContext(ctx, &row, query, snapshotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get quant analysis: %w", err)
	}

	analysis := &domain.QuantAnalysis{
		Sentiment: row.Sentiment,
		Composite: row.Composite,
		Label:     row.Label,
		Rationale: []string(row.Rationale),
	}
	if err := json.Unmarshal(row.Trend, &analysis.Trend); err != nil {
		return nil, fmt.Errorf("unmarshal trend: %w", err)
	}
	if err := json.Unmarshal(row.Oscillator, &analysis.Oscillator); err != nil {
		return nil, fmt.Errorf("unmarshal oscillator: %w", err)
	}
	return analysis, nil
}
