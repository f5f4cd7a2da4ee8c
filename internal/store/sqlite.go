package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fiscora/docaudit/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	confidence REAL NOT NULL,
	profile    TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// SQLiteStore is the embedded single-file backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a sqlite database at the given path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "docaudit.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: migrate sqlite schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.ProcessingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "store: marshal result")
	}

	confidence := 0.0
	if result.Record != nil {
		confidence = result.Record.Confidence
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, status, doc_type, outcome, confidence, profile, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			outcome = excluded.outcome,
			confidence = excluded.confidence,
			payload = excluded.payload`,
		result.RunID,
		string(result.Status),
		string(result.Classification.Type),
		string(result.Outcome()),
		confidence,
		result.Profile,
		string(payload),
		result.StartedAt,
	)
	if err != nil {
		return eris.Wrap(err, "store: save result")
	}
	return nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, runID string) (*model.ProcessingResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get result")
	}
	return unmarshalResult(payload)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*model.ProcessingResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list recent")
	}
	defer rows.Close()

	var results []*model.ProcessingResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "store: scan row")
		}
		result, err := unmarshalResult(payload)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unmarshalResult(payload string) (*model.ProcessingResult, error) {
	var result model.ProcessingResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal payload")
	}
	return &result, nil
}
