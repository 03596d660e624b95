package database

import (
	"context"
	"log/slog"

	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/internal/repository/memory"
)

// OpenStore opens the store selected by DATABASE_DRIVER, migrating Postgres first.
// The returned func releases the underlying connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	db, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := Migrate(ctx, db.DB, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := repository.NewStore(db, repository.StoreOptions{
		Isolation:  cfg.GetIsolationLevel(),
		MaxRetries: cfg.Database.MaxTxRetries,
	}, logger)

	return store, func() { db.Close() }, nil
}
