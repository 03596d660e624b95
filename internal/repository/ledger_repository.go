package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const entryColumns = `id, primary_account, amount, to_account, from_account, kind, transfer_id, loan_id, created_at`

type ledgerRepository struct {
	db sqlx.ExtContext
}

// NewLedgerRepository returns a LedgerRepository running on db, which may be a pool or a transaction
func NewLedgerRepository(db sqlx.ExtContext) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, drafts []domain.EntryDraft) ([]*domain.LedgerEntry, error) {
	if len(drafts) == 0 {
		return nil, ErrEmptyAppend
	}

	// One statement keeps the group atomic even outside a transaction,
	// and now() gives every row the same timestamp.
	var (
		values []string
		args   []any
	)
	for i, draft := range drafts {
		if err := draft.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		n := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, now())",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args,
			draft.PrimaryAccount,
			draft.Amount,
			draft.ToAccount,
			draft.FromAccount,
			string(draft.Kind),
			draft.TransferID,
			draft.LoanID,
		)
	}

	query := `
		INSERT INTO ledger_entries (primary_account, amount, to_account, from_account, kind, transfer_id, loan_id, created_at)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id, created_at, primary_account, kind
	`

	var inserted []insertedEntry
	if err := sqlx.SelectContext(ctx, r.db, &inserted, query, args...); err != nil {
		return nil, err
	}
	if len(inserted) != len(drafts) {
		return nil, fmt.Errorf("append returned %d rows for %d entries", len(inserted), len(drafts))
	}

	return matchInserted(drafts, inserted)
}

type insertedEntry struct {
	ID             int64            `db:"id"`
	CreatedAt      time.Time        `db:"created_at"`
	PrimaryAccount string           `db:"primary_account"`
	Kind           domain.EntryKind `db:"kind"`
}

// matchInserted pairs RETURNING rows with their drafts by primary account and kind.
// Rows come back in no guaranteed order; ties go to the lowest id, and ids must
// ascend in draft order.
func matchInserted(drafts []domain.EntryDraft, inserted []insertedEntry) ([]*domain.LedgerEntry, error) {
	slices.SortFunc(inserted, func(a, b insertedEntry) int { return cmp.Compare(a.ID, b.ID) })
	used := make([]bool, len(inserted))

	entries := make([]*domain.LedgerEntry, 0, len(drafts))
	for i, draft := range drafts {
		j := -1
		for k, row := range inserted {
			if !used[k] && row.PrimaryAccount == draft.PrimaryAccount && row.Kind == draft.Kind {
				j = k
				break
			}
		}
		if j < 0 {
			return nil, fmt.Errorf("entry %d: no inserted row for %s %s", i, draft.Kind, draft.PrimaryAccount)
		}
		used[j] = true

		row := inserted[j]
		if len(entries) > 0 && row.ID <= entries[len(entries)-1].ID {
			return nil, fmt.Errorf("entry %d: id %d does not follow %d", i, row.ID, entries[len(entries)-1].ID)
		}

		entries = append(entries, &domain.LedgerEntry{
			ID:             row.ID,
			PrimaryAccount: draft.PrimaryAccount,
			Amount:         draft.Amount,
			ToAccount:      draft.ToAccount,
			FromAccount:    draft.FromAccount,
			Kind:           draft.Kind,
			TransferID:     draft.TransferID,
			LoanID:         draft.LoanID,
			CreatedAt:      row.CreatedAt,
		})
	}
	return entries, nil
}

func (r *ledgerRepository) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN kind IN ('deposit', 'transfer_in', 'loan_disbursement') AND to_account = $1 THEN amount
				WHEN kind IN ('withdrawal', 'transfer_out', 'loan_repayment') AND from_account = $1 THEN -amount
				ELSE 0
			END
		), 0)
		FROM ledger_entries
		WHERE to_account = $1 OR from_account = $1
	`

	var balance decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &balance, query, account); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, account string, beforeID int64, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE (primary_account = $1 OR to_account = $1 OR from_account = $1)
		  AND ($2::bigint = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`

	var entries []*domain.LedgerEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, account, beforeID, limit); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *ledgerRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE loan_id = $1
		ORDER BY id DESC
	`

	var entries []*domain.LedgerEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, loanID); err != nil {
		return nil, err
	}

	return entries, nil
}
