package mocks

import (
	"context"
	"iter"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockBankingService struct {
	mock.Mock
}

func (m *MockBankingService) OpenAccount(ctx context.Context, number, holderName string, initialDeposit decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, number, holderName, initialDeposit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockBankingService) Deposit(ctx context.Context, account string, amount decimal.Decimal) error {
	args := m.Called(ctx, account, amount)
	return args.Error(0)
}

func (m *MockBankingService) Withdraw(ctx context.Context, account string, amount decimal.Decimal) error {
	args := m.Called(ctx, account, amount)
	return args.Error(0)
}

func (m *MockBankingService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (uuid.UUID, error) {
	args := m.Called(ctx, from, to, amount)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockBankingService) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// Statement yields the entries given to Return, then the error if one was given
func (m *MockBankingService) Statement(ctx context.Context, account string) iter.Seq2[*domain.LedgerEntry, error] {
	args := m.Called(ctx, account)
	entries, _ := args.Get(0).([]*domain.LedgerEntry)
	err := args.Error(1)

	return func(yield func(*domain.LedgerEntry, error) bool) {
		for _, entry := range entries {
			if !yield(entry, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func (m *MockBankingService) DisburseLoan(ctx context.Context, account string, principal, annualRatePercent decimal.Decimal, durationYears int) (int64, error) {
	args := m.Called(ctx, account, principal, annualRatePercent, durationYears)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBankingService) QuoteLoanPayoff(ctx context.Context, loanID int64, asOf time.Time) (*domain.LoanQuote, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanQuote), args.Error(1)
}

func (m *MockBankingService) RepayLoan(ctx context.Context, account string, loanID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, account, loanID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockBankingService) LoansForAccount(ctx context.Context, account string, asOf time.Time) ([]*domain.LoanQuote, error) {
	args := m.Called(ctx, account, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanQuote), args.Error(1)
}

func (m *MockBankingService) LoanActivity(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LedgerEntry), args.Error(1)
}

func (m *MockBankingService) OverdueLoans(ctx context.Context, asOf time.Time) ([]*domain.LoanQuote, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanQuote), args.Error(1)
}

func (m *MockBankingService) Today() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}
