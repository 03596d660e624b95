// Package memory is an in-process implementation of repository.Store.
//
// Units of work run one at a time under a single mutex. Writes are staged
// and only become visible when the unit commits, so a failing unit leaves
// nothing behind.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	loans    []domain.Loan

	failNextAppend error
	now            func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FailNextAppend makes the next Append return err instead of staging entries.
func (s *Store) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextAppend = err
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	u := s.begin()
	if err := fn(ctx, newRepositories(func(f func(*unit) error) error { return f(u) })); err != nil {
		return err
	}
	u.commit()
	return nil
}

// Repositories returns repositories whose every call is its own unit of work.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.autocommit)
}

func (s *Store) autocommit(f func(*unit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.begin()
	if err := f(u); err != nil {
		return err
	}
	u.commit()
	return nil
}

func (s *Store) begin() *unit {
	return &unit{store: s, accounts: make(map[string]domain.Account)}
}

// unit holds the writes of one unit of work until commit. Callers hold store.mu.
type unit struct {
	store *Store

	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	loans    []domain.Loan
}

func newRepositories(with func(func(*unit) error) error) repository.Repositories {
	return repository.Repositories{
		Accounts: &accountRepository{with: with},
		Ledger:   &ledgerRepository{with: with},
		Loans:    &loanRepository{with: with},
	}
}

func (u *unit) commit() {
	s := u.store
	for number, account := range u.accounts {
		s.accounts[number] = account
	}
	s.entries = append(s.entries, u.entries...)
	s.loans = append(s.loans, u.loans...)
}

func (u *unit) account(number string) (domain.Account, bool) {
	if account, ok := u.accounts[number]; ok {
		return account, true
	}
	account, ok := u.store.accounts[number]
	return account, ok
}

// allEntries returns committed then staged entries, ascending by id.
func (u *unit) allEntries() []domain.LedgerEntry {
	all := make([]domain.LedgerEntry, 0, len(u.store.entries)+len(u.entries))
	all = append(all, u.store.entries...)
	return append(all, u.entries...)
}

func (u *unit) allLoans() []domain.Loan {
	all := make([]domain.Loan, 0, len(u.store.loans)+len(u.loans))
	all = append(all, u.store.loans...)
	return append(all, u.loans...)
}

type accountRepository struct {
	with func(func(*unit) error) error
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	return r.with(func(u *unit) error {
		if _, exists := u.account(account.Number); exists {
			return repository.ErrDuplicate
		}
		account.CreatedAt = u.store.now()
		u.accounts[account.Number] = *account
		return nil
	})
}

func (r *accountRepository) Get(ctx context.Context, number string) (*domain.Account, error) {
	var found domain.Account
	err := r.with(func(u *unit) error {
		account, ok := u.account(number)
		if !ok {
			return sql.ErrNoRows
		}
		found = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// Lock only checks existence; the store mutex already serializes units of work.
func (r *accountRepository) Lock(ctx context.Context, number string) error {
	return r.with(func(u *unit) error {
		if _, ok := u.account(number); !ok {
			return sql.ErrNoRows
		}
		return nil
	})
}

type ledgerRepository struct {
	with func(func(*unit) error) error
}

func (r *ledgerRepository) Append(ctx context.Context, drafts []domain.EntryDraft) ([]*domain.LedgerEntry, error) {
	if len(drafts) == 0 {
		return nil, repository.ErrEmptyAppend
	}
	for i, draft := range drafts {
		if err := draft.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	var appended []*domain.LedgerEntry
	err := r.with(func(u *unit) error {
		if err := u.store.failNextAppend; err != nil {
			u.store.failNextAppend = nil
			return err
		}

		nextID := int64(len(u.store.entries) + len(u.entries))
		now := u.store.now()
		for _, draft := range drafts {
			nextID++
			entry := domain.LedgerEntry{
				ID:             nextID,
				PrimaryAccount: draft.PrimaryAccount,
				Amount:         draft.Amount,
				ToAccount:      draft.ToAccount,
				FromAccount:    draft.FromAccount,
				Kind:           draft.Kind,
				TransferID:     draft.TransferID,
				LoanID:         draft.LoanID,
				CreatedAt:      now,
			}
			u.entries = append(u.entries, entry)
			appended = append(appended, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

func (r *ledgerRepository) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := r.with(func(u *unit) error {
		for _, entry := range u.allEntries() {
			balance = balance.Add(entry.EffectOn(account))
		}
		return nil
	})
	return balance, err
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, account string, beforeID int64, limit int) ([]*domain.LedgerEntry, error) {
	var page []*domain.LedgerEntry
	err := r.with(func(u *unit) error {
		all := u.allEntries()
		for i := len(all) - 1; i >= 0 && len(page) < limit; i-- {
			entry := all[i]
			if beforeID > 0 && entry.ID >= beforeID {
				continue
			}
			if entry.Touches(account) {
				page = append(page, &entry)
			}
		}
		return nil
	})
	return page, err
}

func (r *ledgerRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.with(func(u *unit) error {
		all := u.allEntries()
		for i := len(all) - 1; i >= 0; i-- {
			entry := all[i]
			if entry.LoanID != nil && *entry.LoanID == loanID {
				entries = append(entries, &entry)
			}
		}
		return nil
	})
	return entries, err
}

type loanRepository struct {
	with func(func(*unit) error) error
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	return r.with(func(u *unit) error {
		loan.ID = int64(len(u.store.loans)+len(u.loans)) + 1
		loan.CreatedAt = u.store.now()
		u.loans = append(u.loans, *loan)
		return nil
	})
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	var found *domain.Loan
	err := r.with(func(u *unit) error {
		for _, loan := range u.allLoans() {
			if loan.ID == id {
				found = &loan
				return nil
			}
		}
		return sql.ErrNoRows
	})
	return found, err
}

func (r *loanRepository) ListByAccount(ctx context.Context, account string) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := r.with(func(u *unit) error {
		for _, loan := range u.allLoans() {
			if loan.AccountNumber == account {
				loans = append(loans, &loan)
			}
		}
		return nil
	})
	return loans, err
}

func (r *loanRepository) ListMaturedBefore(ctx context.Context, date time.Time) ([]*domain.Loan, error) {
	cutoff := utils.DateOf(date, nil)
	var loans []*domain.Loan
	err := r.with(func(u *unit) error {
		for _, loan := range u.allLoans() {
			if utils.DateOf(loan.MaturityDate(), nil).Before(cutoff) {
				loans = append(loans, &loan)
			}
		}
		return nil
	})
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].DateCreated.Before(loans[j].DateCreated)
	})
	return loans, err
}
