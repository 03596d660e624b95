package service

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// Balance folds the ledger for account. Accounts without entries have a zero balance.
func (s *BankingService) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	balance, err := s.store.Repositories().Ledger.Balance(ctx, account)
	if err != nil {
		return decimal.Zero, customError.WrapStoreFailure(err)
	}
	return balance, nil
}

// Statement yields every entry touching account, newest first. Pages are fetched
// lazily; each range over the sequence starts again from the newest entry.
func (s *BankingService) Statement(ctx context.Context, account string) iter.Seq2[*domain.LedgerEntry, error] {
	return func(yield func(*domain.LedgerEntry, error) bool) {
		ledger := s.store.Repositories().Ledger

		var before int64
		for {
			page, err := ledger.ListByAccount(ctx, account, before, s.pageSize)
			if err != nil {
				yield(nil, customError.WrapStoreFailure(err))
				return
			}

			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}

			if len(page) < s.pageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// QuoteLoanPayoff returns what the borrower owes on loanID as of asOf
func (s *BankingService) QuoteLoanPayoff(ctx context.Context, loanID int64, asOf time.Time) (*domain.LoanQuote, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapStoreFailure(err)
	}

	quote := s.policy.Quote(loan, asOf)
	return &quote, nil
}

// LoansForAccount quotes every loan taken by account as of asOf
func (s *BankingService) LoansForAccount(ctx context.Context, account string, asOf time.Time) ([]*domain.LoanQuote, error) {
	loans, err := s.store.Repositories().Loans.ListByAccount(ctx, account)
	if err != nil {
		return nil, customError.WrapStoreFailure(err)
	}

	quotes := make([]*domain.LoanQuote, 0, len(loans))
	for _, loan := range loans {
		quote := s.policy.Quote(loan, asOf)
		quotes = append(quotes, &quote)
	}
	return quotes, nil
}

// LoanActivity lists the disbursement and every repayment recorded against loanID, newest first
func (s *BankingService) LoanActivity(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapStoreFailure(err)
	}

	entries, err := s.store.Repositories().Ledger.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, customError.WrapStoreFailure(err)
	}
	return entries, nil
}

// OverdueLoans quotes every loan whose term has elapsed by asOf. It only reads.
func (s *BankingService) OverdueLoans(ctx context.Context, asOf time.Time) ([]*domain.LoanQuote, error) {
	day := utils.DateOf(asOf, nil)

	// a term can end on asOf itself, so include loans maturing that day
	loans, err := s.store.Repositories().Loans.ListMaturedBefore(ctx, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, customError.WrapStoreFailure(err)
	}

	var overdue []*domain.LoanQuote
	for _, loan := range loans {
		quote := s.policy.Quote(loan, asOf)
		if quote.Overdue {
			overdue = append(overdue, &quote)
		}
	}

	s.logger.DebugContext(ctx, "overdue loans scanned",
		slog.Int("matured", len(loans)),
		slog.Int("overdue", len(overdue)))
	return overdue, nil
}
