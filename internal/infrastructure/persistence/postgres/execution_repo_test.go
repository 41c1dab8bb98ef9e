package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestExecutionRepo_Insert_IgnoresDuplicateSnapshotSymbol(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExecutionRepo(db, 5*time.Second)

	mock.ExpectExec(`INSERT INTO executions .* ON CONFLICT \(snapshot_id, symbol\) DO NOTHING`).
		WithArgs("snap-1", "BTCUSDT", "42", domain.ExecFilled, 1.5, 100.2, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), domain.ExecutionResult{
		SnapshotID: "snap-1", Symbol: "BTCUSDT", OrderID: "42",
		Status: domain.ExecFilled, FilledQty: 1.5, FilledPrice: 100.2,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepo_GetBySnapshotAndSymbol_NotFoundReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExecutionRepo(db, 5*time.Second)

	mock.ExpectQuery("SELECT snapshot_id, symbol, order_id, status, filled_qty, filled_price FROM executions").
		WithArgs("snap-missing", "BTCUSDT").
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id", "symbol", "order_id", "status", "filled_qty", "filled_price"}))

	result, err := repo.GetBySnapshotAndSymbol(context.Background(), "snap-missing", "BTCUSDT")

	assert.NoError(t, err)
	assert.Nil(t, result)
}
