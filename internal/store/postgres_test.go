package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscora/docaudit/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresSaveResult(t *testing.T) {
	s, mock := newMockStore(t)
	result := sampleResult("run-pg-1", model.OutcomeAutoApprove)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-pg-1", "completed", "invoice", "auto_approve", 0.88,
			"default", pgxmock.AnyArg(), result.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveResult(context.Background(), result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetResult(t *testing.T) {
	s, mock := newMockStore(t)
	payload, err := json.Marshal(sampleResult("run-pg-1", model.OutcomeNeedsReview))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM runs WHERE run_id").
		WithArgs("run-pg-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.GetResult(context.Background(), "run-pg-1")
	require.NoError(t, err)
	assert.Equal(t, "run-pg-1", got.RunID)
	assert.Equal(t, model.OutcomeNeedsReview, got.Judgment.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetResultMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM runs WHERE run_id").
		WithArgs("no-such-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetResult(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresListRecent(t *testing.T) {
	s, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"payload"})
	for _, runID := range []string{"run-b", "run-a"} {
		payload, err := json.Marshal(sampleResult(runID, model.OutcomeAutoApprove))
		require.NoError(t, err)
		rows.AddRow(payload)
	}
	mock.ExpectQuery("SELECT payload FROM runs ORDER BY created_at DESC").
		WithArgs(25).
		WillReturnRows(rows)

	results, err := s.ListRecent(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "run-b", results[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
