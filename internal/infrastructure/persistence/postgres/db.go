package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bobdamio/tradeengine/internal/config"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
)

// Connect opens a pooled connection against cfg.DSN and verifies it with a
// ping, sizing the pool from cfg.MaxOpenConns/MaxIdleConns.
func Connect(cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// NewRepository builds a persistence.Repository wired against every
// postgres-backed repo, sharing one pooled connection.
func NewRepository(db *sqlx.DB, queryTimeout time.Duration) *persistence.Repository {
	return &persistence.Repository{
		Snapshots: NewSnapshotRepo(db, queryTimeout),
		Quant:     NewQuantAnalysisRepo(db, queryTimeout),
		Decisions: NewDecisionRepo(db, queryTimeout),
		RiskAudit: NewRiskAuditRepo(db, queryTimeout),
		Execution: NewExecutionRepo(db, queryTimeout),
	}
}
