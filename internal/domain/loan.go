package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan represents a loan entity. Terms are fixed at creation; repayment state is
// derived from the ledger, never stored here.
type Loan struct {
	ID                int64           `json:"id" db:"id"`
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	AccountNumber     string          `json:"account_number" db:"account_number"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" db:"annual_rate_percent"`
	DateCreated       time.Time       `json:"date_created" db:"date_created"`
	DurationYears     int             `json:"duration_years" db:"duration_years"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// MaturityDate is the calendar date the loan's original term ends.
func (l *Loan) MaturityDate() time.Time {
	return l.DateCreated.AddDate(l.DurationYears, 0, 0)
}

// LoanQuote is the payoff figure for a loan as of a date, with the inputs that produced it.
type LoanQuote struct {
	Loan                 *Loan           `json:"loan"`
	AsOf                 time.Time       `json:"as_of"`
	ElapsedYears         decimal.Decimal `json:"elapsed_years"`
	Overdue              bool            `json:"overdue"`
	HalfYearsOverdue     int64           `json:"half_years_overdue"`
	PenaltyPercent       decimal.Decimal `json:"penalty_percent"`
	EffectiveRatePercent decimal.Decimal `json:"effective_rate_percent"`
	AmountOwed           decimal.Decimal `json:"amount_owed"`
}

// DTOs for requests and responses

type DisburseLoanRequest struct {
	AccountNumber     string          `json:"account_number" validate:"required,max=32"`
	Principal         decimal.Decimal `json:"principal" validate:"required,decimal_gt=0"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"decimal_gte=0"`
	DurationYears     int             `json:"duration_years" validate:"required,gt=0"`
}

type DisburseLoanResponse struct {
	LoanID int64 `json:"loan_id"`
}

type RepayLoanRequest struct {
	AccountNumber string `json:"account_number" validate:"required,max=32"`
}

type RepayLoanResponse struct {
	LoanID        int64           `json:"loan_id"`
	AmountCharged decimal.Decimal `json:"amount_charged"`
}
