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

// snapshotsRepo implements persistence.SnapshotRepo for PostgreSQL.
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo builds a SnapshotRepo against the snapshots table.
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotsRepo{db: db, timeout: timeout}
}

// Insert appends a new snapshot row. snapshot_id carries a unique
// constraint so a replayed cycle after a crash fails loudly rather than
// silently duplicating history.
func (r *snapshotsRepo) Insert(ctx context.Context, snap domain.MarketSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	viewsJSON, err := json.Marshal(snap.Views)
	if err != nil {
		return fmt.Errorf("marshal views: %w", err)
	}
	fundingJSON, err := json.Marshal(snap.Funding)
	if err != nil {
		return fmt.Errorf("marshal funding: %w", err)
	}

	query := `
		INSERT INTO snapshots (snapshot_id, symbol, ts, views, funding, funding_available, alignment_ok, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		snap.SnapshotID, snap.Symbol, snap.Timestamp, viewsJSON, fundingJSON,
		snap.FundingAvailable, snap.AlignmentOK, pq.Array(snap.Warnings))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate snapshot %s: %w", snap.SnapshotID, err)
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *snapshotsRepo) GetByID(ctx context.Context, snapshotID string) (*domain.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		SnapshotID       string    `db:"snapshot_id"`
		Symbol           string    `db:"symbol"`
		Timestamp        time.Time `db:"ts"`
		Views            []byte    `db:"views"`
		Funding          []byte    `db:"funding"`
		FundingAvailable bool      `db:"funding_available"`
		AlignmentOK      bool      `db:"alignment_ok"`
		Warnings         pq.StringArray `db:"warnings"`
	}

	query := `SELECT snapshot_id, symbol, ts, views, funding, funding_available, alignment_ok, warnings
		FROM snapshots WHERE snapshot_id = $1`
	if err := r.db.GetContext(ctx, &row, query, snapshotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snap := domain.MarketSnapshot{
		SnapshotID:       row.SnapshotID,
		Symbol:           row.Symbol,
		Timestamp:        row.Timestamp,
		FundingAvailable: row.FundingAvailable,
		AlignmentOK:      row.AlignmentOK,
		Warnings:         []string(row.Warnings),
	}
	if err := json.Unmarshal(row.Views, &snap.Views); err != nil {
		return nil, fmt.Errorf("unmarshal views: %w", err)
	}
	if err := json.Unmarshal(row.Funding, &snap.Funding); err != nil {
		return nil, fmt.Errorf("unmarshal funding: %w", err)
	}
	return &snap, nil
}

func (r *snapshotsRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]domain.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT snapshot_id FROM snapshots
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC LIMIT $4`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, symbol, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	snaps := make([]domain.MarketSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			snaps = append(snaps, *snap)
		}
	}
	return snaps, nil
}
