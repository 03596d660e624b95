package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/tests/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockedStore runs every unit of work directly against mocked repositories
type mockedStore struct {
	repos repository.Repositories
}

func (s *mockedStore) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return fn(ctx, s.repos)
}

func (s *mockedStore) Repositories() repository.Repositories { return s.repos }

func (s *mockedStore) Ping(ctx context.Context) error { return nil }

type mockedRepos struct {
	accounts *mocks.MockAccountRepository
	ledger   *mocks.MockLedgerRepository
	loans    *mocks.MockLoanRepository
}

func newMockedService() (*BankingService, mockedRepos) {
	m := mockedRepos{
		accounts: new(mocks.MockAccountRepository),
		ledger:   new(mocks.MockLedgerRepository),
		loans:    new(mocks.MockLoanRepository),
	}
	store := &mockedStore{repos: repository.Repositories{Accounts: m.accounts, Ledger: m.ledger, Loans: m.loans}}

	svc := NewBankingService(store, nil, Options{
		Now:    func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, m
}

func TestTransfer_LocksAccountsInSortedOrder(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()
	amount := decimal.NewFromInt(40)

	mock.InOrder(
		m.accounts.On("Lock", ctx, "ACC-A").Return(nil),
		m.accounts.On("Lock", ctx, "ACC-B").Return(nil),
	)
	m.ledger.On("Balance", ctx, "ACC-B").Return(decimal.NewFromInt(100), nil)
	m.ledger.On("Append", ctx, mock.MatchedBy(func(drafts []domain.EntryDraft) bool {
		return len(drafts) == 2 && drafts[0].TransferID == drafts[1].TransferID
	})).Return([]*domain.LedgerEntry{{ID: 1}, {ID: 2}}, nil)

	_, err := svc.Transfer(ctx, "ACC-B", "ACC-A", amount)

	assert.NoError(t, err)
	m.accounts.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
}

func TestWithdraw_InsufficientFundsNeverAppends(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.accounts.On("Lock", ctx, "ACC-1").Return(nil)
	m.ledger.On("Balance", ctx, "ACC-1").Return(decimal.NewFromInt(10), nil)

	err := svc.Withdraw(ctx, "ACC-1", decimal.NewFromInt(25))

	assert.True(t, errors.Is(err, customError.ErrInsufficientFunds))
	m.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestDeposit_UnknownAccountStopsAtLock(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.accounts.On("Lock", ctx, "ACC-404").Return(sql.ErrNoRows)

	err := svc.Deposit(ctx, "ACC-404", decimal.NewFromInt(5))

	assert.True(t, errors.Is(err, customError.ErrAccountNotFound))
	m.ledger.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
	m.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRepayLoan_OwnershipCheckedBeforeLock(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.loans.On("GetByID", ctx, int64(9)).Return(&domain.Loan{
		ID:                9,
		Principal:         decimal.NewFromInt(1000),
		AccountNumber:     "ACC-OWNER",
		AnnualRatePercent: decimal.NewFromInt(5),
		DateCreated:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationYears:     1,
	}, nil)

	_, err := svc.RepayLoan(ctx, "ACC-OTHER", 9)

	assert.True(t, errors.Is(err, customError.ErrLoanAccountMismatch))
	m.accounts.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
	m.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestInvalidAmount_NeverOpensUnitOfWork(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	err := svc.Deposit(ctx, "ACC-1", decimal.RequireFromString("1.005"))

	assert.True(t, errors.Is(err, customError.ErrInvalidAmount))
	m.accounts.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
}

func TestAppendFailure_IsStoreFailure(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.accounts.On("Lock", ctx, "ACC-1").Return(nil)
	m.ledger.On("Append", ctx, mock.Anything).Return(nil, errors.New("connection reset"))

	err := svc.Deposit(ctx, "ACC-1", decimal.NewFromInt(5))

	assert.True(t, errors.Is(err, customError.ErrStoreFailure))
}
