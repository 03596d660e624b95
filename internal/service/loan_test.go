package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	customError "github.com/segyhp/ledger-engine/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisburseLoan(t *testing.T) {
	svc, _, _ := newTestService(t, "A")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)

	requireBalance(t, svc, "A", "1000")

	quote, err := svc.QuoteLoanPayoff(ctx, loanID, svc.Today())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), quote.Loan.DateCreated)
	assert.True(t, quote.AmountOwed.Equal(dec("1000")))
	assert.False(t, quote.Overdue)

	entries := collect(t, svc, "A")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryKindLoanDisbursement, entries[0].Kind)
	require.NotNil(t, entries[0].LoanID)
	assert.Equal(t, loanID, *entries[0].LoanID)
}

func TestDisburseLoan_Guards(t *testing.T) {
	svc, _, _ := newTestService(t, "A")
	ctx := context.Background()

	tests := []struct {
		name      string
		account   string
		principal string
		rate      string
		years     int
		expected  error
	}{
		{name: "zero principal", account: "A", principal: "0", rate: "5", years: 1, expected: customError.ErrInvalidAmount},
		{name: "fractional cents", account: "A", principal: "10.001", rate: "5", years: 1, expected: customError.ErrInvalidAmount},
		{name: "negative rate", account: "A", principal: "100", rate: "-0.5", years: 1, expected: customError.ErrInvalidLoanTerms},
		{name: "zero duration", account: "A", principal: "100", rate: "5", years: 0, expected: customError.ErrInvalidLoanTerms},
		{name: "unknown account", account: "GHOST", principal: "100", rate: "5", years: 1, expected: customError.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DisburseLoan(ctx, tt.account, dec(tt.principal), dec(tt.rate), tt.years)
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	quotes, err := svc.LoansForAccount(ctx, "A", svc.Today())
	require.NoError(t, err)
	assert.Empty(t, quotes)
	requireBalance(t, svc, "A", "0")
}

func TestDisburseLoan_StoreFailureLeavesNoLoan(t *testing.T) {
	svc, store, _ := newTestService(t, "A")
	ctx := context.Background()

	store.FailNextAppend(errors.New("write timeout"))
	_, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	assert.ErrorIs(t, err, customError.ErrStoreFailure)

	quotes, err := svc.LoansForAccount(ctx, "A", svc.Today())
	require.NoError(t, err)
	assert.Empty(t, quotes)
	requireBalance(t, svc, "A", "0")

	_, err = svc.QuoteLoanPayoff(ctx, 1, svc.Today())
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}

func TestRepayLoan_SameDayChargesPrincipal(t *testing.T) {
	svc, _, _ := newTestService(t, "A")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)

	charged, err := svc.RepayLoan(ctx, "A", loanID)
	require.NoError(t, err)

	assert.True(t, charged.Equal(dec("1000")))
	requireBalance(t, svc, "A", "0")
}

func TestRepayLoan_AfterTwoYears(t *testing.T) {
	svc, _, clock := newTestService(t, "A")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("5000"), dec("12"), 2)
	require.NoError(t, err)
	require.NoError(t, svc.Deposit(ctx, "A", dec("2000")))

	clock.AddDays(730)

	quote, err := svc.QuoteLoanPayoff(ctx, loanID, svc.Today())
	require.NoError(t, err)
	assert.True(t, quote.AmountOwed.Equal(dec("6332.83")), "got %s", quote.AmountOwed)

	charged, err := svc.RepayLoan(ctx, "A", loanID)
	require.NoError(t, err)
	assert.True(t, charged.Equal(quote.AmountOwed))
	requireBalance(t, svc, "A", "667.17")

	entries := collect(t, svc, "A")
	require.Len(t, entries, 3)
	assert.Equal(t, domain.EntryKindLoanRepayment, entries[0].Kind)
	assert.Equal(t, loanID, *entries[0].LoanID)
}

func TestRepayLoan_Guards(t *testing.T) {
	svc, _, clock := newTestService(t, "A", "B")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)

	t.Run("unknown loan is reported before the account", func(t *testing.T) {
		_, err := svc.RepayLoan(ctx, "GHOST", 999)
		assert.ErrorIs(t, err, customError.ErrLoanNotFound)
	})

	t.Run("loan of another account", func(t *testing.T) {
		_, err := svc.RepayLoan(ctx, "B", loanID)
		assert.ErrorIs(t, err, customError.ErrLoanAccountMismatch)
	})

	t.Run("interest exceeds balance", func(t *testing.T) {
		clock.AddDays(200)
		_, err := svc.RepayLoan(ctx, "A", loanID)
		assert.ErrorIs(t, err, customError.ErrInsufficientFunds)
		requireBalance(t, svc, "A", "1000")
	})
}

func TestRepayLoan_RepeatedRepaymentsAreVisible(t *testing.T) {
	svc, _, _ := newTestService(t, "A")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("100"), dec("5"), 1)
	require.NoError(t, err)
	require.NoError(t, svc.Deposit(ctx, "A", dec("100")))

	// loans are never closed: each repayment recomputes from the original terms
	_, err = svc.RepayLoan(ctx, "A", loanID)
	require.NoError(t, err)
	_, err = svc.RepayLoan(ctx, "A", loanID)
	require.NoError(t, err)

	activity, err := svc.LoanActivity(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	assert.Equal(t, domain.EntryKindLoanRepayment, activity[0].Kind)
	assert.Equal(t, domain.EntryKindLoanRepayment, activity[1].Kind)
	assert.Equal(t, domain.EntryKindLoanDisbursement, activity[2].Kind)
	requireBalance(t, svc, "A", "0")

	_, err = svc.LoanActivity(ctx, 999)
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}

func TestQuoteLoanPayoff_AsOfBeforeCreation(t *testing.T) {
	svc, _, _ := newTestService(t, "A")
	ctx := context.Background()

	loanID, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)

	quote, err := svc.QuoteLoanPayoff(ctx, loanID, svc.Today().AddDate(0, -6, 0))
	require.NoError(t, err)
	assert.True(t, quote.AmountOwed.Equal(dec("1000")))
	assert.True(t, quote.ElapsedYears.IsZero())
}

func TestLoansForAccount(t *testing.T) {
	svc, _, clock := newTestService(t, "A", "B")
	ctx := context.Background()

	_, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)
	_, err = svc.DisburseLoan(ctx, "A", dec("2000"), dec("0"), 3)
	require.NoError(t, err)
	_, err = svc.DisburseLoan(ctx, "B", dec("500"), dec("5"), 1)
	require.NoError(t, err)

	clock.AddDays(548)

	quotes, err := svc.LoansForAccount(ctx, "A", svc.Today())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, quotes[0].Overdue)
	assert.Equal(t, int64(1), quotes[0].HalfYearsOverdue)
	assert.False(t, quotes[1].Overdue)
	assert.True(t, quotes[1].AmountOwed.Equal(dec("2000")))
}

func TestOverdueLoans(t *testing.T) {
	svc, _, clock := newTestService(t, "A", "B")
	ctx := context.Background()

	shortID, err := svc.DisburseLoan(ctx, "A", dec("1000"), dec("5"), 1)
	require.NoError(t, err)
	_, err = svc.DisburseLoan(ctx, "B", dec("1000"), dec("5"), 3)
	require.NoError(t, err)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	overdue, err := svc.OverdueLoans(ctx, day(2024, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, overdue)

	// 2024 is a leap year: 366 days already exceed one 365.25-day year
	overdue, err = svc.OverdueLoans(ctx, day(2025, 1, 1))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, shortID, overdue[0].Loan.ID)

	clock.AddDays(5 * 365)
	overdue, err = svc.OverdueLoans(ctx, svc.Today())
	require.NoError(t, err)
	assert.Len(t, overdue, 2)
	for _, quote := range overdue {
		assert.True(t, quote.AmountOwed.GreaterThan(decimal.NewFromInt(1000)))
	}
}
