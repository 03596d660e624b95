package repository

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicate is returned when a create collides with an existing key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrEmptyAppend is returned when Append is called without entries.
	ErrEmptyAppend = errors.New("append requires at least one entry")
)

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Append commits drafts as one group: all of them get ids and one shared timestamp, or none is stored
	Append(ctx context.Context, drafts []domain.EntryDraft) ([]*domain.LedgerEntry, error)

	// Balance folds every entry touching account into its current balance
	Balance(ctx context.Context, account string) (decimal.Decimal, error)

	// ListByAccount returns up to limit entries touching account with id < beforeID, newest first.
	// A beforeID of 0 starts from the newest entry.
	ListByAccount(ctx context.Context, account string, beforeID int64, limit int) ([]*domain.LedgerEntry, error)

	// ListByLoan returns the entries referencing a loan, newest first
	ListByLoan(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error)
}

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	// Create creates a new account, ErrDuplicate when the number is taken
	Create(ctx context.Context, account *domain.Account) error

	// Get retrieves an account by number, sql.ErrNoRows when absent
	Get(ctx context.Context, number string) (*domain.Account, error)

	// Lock takes the row lock of an account until the unit of work ends, sql.ErrNoRows when absent
	Lock(ctx context.Context, number string) error
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create stores a new loan and fills in its ID and CreatedAt
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID, sql.ErrNoRows when absent
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)

	// ListByAccount retrieves every loan taken by an account, oldest first
	ListByAccount(ctx context.Context, account string) ([]*domain.Loan, error)

	// ListMaturedBefore retrieves loans whose term ended before date, oldest first
	ListMaturedBefore(ctx context.Context, date time.Time) ([]*domain.Loan, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Accounts AccountRepository
	Ledger   LedgerRepository
	Loans    LoanRepository
}

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store hands out repositories and runs units of work
type Store interface {
	// WithinTx runs fn in one transaction. The transaction commits only when fn returns nil
	// and may run fn more than once when the database asks for a retry.
	WithinTx(ctx context.Context, fn TxFunc) error

	// Repositories returns repositories for single-statement reads outside a unit of work
	Repositories() Repositories

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}
