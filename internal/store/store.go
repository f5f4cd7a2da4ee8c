// Package store persists processing run history. Two backends: embedded
// sqlite for single-machine use and postgres for shared deployments. The
// full result is stored as a JSON payload next to a few query columns.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fiscora/docaudit/internal/config"
	"github.com/fiscora/docaudit/internal/model"
)

// ErrNotFound indicates no run with the requested ID exists.
var ErrNotFound = eris.New("store: run not found")

// Store persists and retrieves processing results.
type Store interface {
	SaveResult(ctx context.Context, result *model.ProcessingResult) error
	GetResult(ctx context.Context, runID string) (*model.ProcessingResult, error)
	ListRecent(ctx context.Context, limit int) ([]*model.ProcessingResult, error)
	Close() error
}

// Open creates a store from configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.DatabaseURL)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
