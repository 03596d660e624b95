package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgreSQL error codes the store reacts to
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// StoreOptions tunes how units of work run against PostgreSQL
type StoreOptions struct {
	Isolation  sql.IsolationLevel
	MaxRetries int
}

type sqlStore struct {
	db     *sqlx.DB
	opts   StoreOptions
	logger *slog.Logger
}

// NewStore returns a Store backed by db
func NewStore(db *sqlx.DB, opts StoreOptions, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlStore{db: db, opts: opts, logger: logger}
}

func newRepositories(db sqlx.ExtContext) Repositories {
	return Repositories{
		Accounts: &accountRepository{db: db},
		Ledger:   &ledgerRepository{db: db},
		Loans:    &loanRepository{db: db},
	}
}

func (s *sqlStore) Repositories() Repositories {
	return newRepositories(s.db)
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) WithinTx(ctx context.Context, fn TxFunc) error {
	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= s.opts.MaxRetries || ctx.Err() != nil {
			return err
		}
		s.logger.WarnContext(ctx, "retrying unit of work",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
}

func (s *sqlStore) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: s.opts.Isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		// also runs while a panic unwinds
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// isRetryable reports whether PostgreSQL aborted the transaction so that it may be run again
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
