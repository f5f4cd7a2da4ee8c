package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fiscora/docaudit/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	profile    TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore is the shared-deployment backend.
type PostgresStore struct {
	pool pgxPool
}

// OpenPostgres connects to the database and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: migrate postgres schema")
	}
	return s, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.ProcessingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "store: marshal result")
	}

	confidence := 0.0
	if result.Record != nil {
		confidence = result.Record.Confidence
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, status, doc_type, outcome, confidence, profile, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			outcome = EXCLUDED.outcome,
			confidence = EXCLUDED.confidence,
			payload = EXCLUDED.payload`,
		result.RunID,
		string(result.Status),
		string(result.Classification.Type),
		string(result.Outcome()),
		confidence,
		result.Profile,
		payload,
		result.StartedAt,
	)
	if err != nil {
		return eris.Wrap(err, "store: save result")
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, runID string) (*model.ProcessingResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM runs WHERE run_id = $1`, runID).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get result")
	}
	return unmarshalResult(string(payload))
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*model.ProcessingResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list recent")
	}
	defer rows.Close()

	var results []*model.ProcessingResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "store: scan row")
		}
		result, err := unmarshalResult(string(payload))
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate rows")
	}
	return results, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
