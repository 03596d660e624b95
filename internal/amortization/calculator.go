// Package amortization computes what a borrower owes on a loan at a point in time.
//
// Interest compounds quarterly over the elapsed time since the loan was taken,
// with the exponent continuous in time. Once the original term has passed, the
// annual rate grows by a fixed penalty for every full half-year overdue.
// Every function here is pure: it reads the loan terms and the as-of date and
// never touches the ledger.
package amortization

import (
	"fmt"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// powPrecision is the minimum number of fractional digits kept by the compounding step.
const powPrecision = 16

var (
	two     = decimal.NewFromInt(2)
	four    = decimal.NewFromInt(4)
	hundred = decimal.NewFromInt(100)
)

// Policy holds the numeric constants of the payoff calculation.
type Policy struct {
	// DaysPerYear converts elapsed days to years.
	DaysPerYear decimal.Decimal
	// PenaltyPercentPerHalfYear is added to the annual rate for each full half-year overdue.
	PenaltyPercentPerHalfYear decimal.Decimal
	// Scale is the number of fractional digits intermediate values are rounded to.
	Scale int32
}

// DefaultPolicy is 365.25-day years, one percentage point per half-year overdue and
// ten fractional digits of intermediate precision.
var DefaultPolicy = Policy{
	DaysPerYear:               decimal.RequireFromString("365.25"),
	PenaltyPercentPerHalfYear: decimal.NewFromInt(1),
	Scale:                     10,
}

// AmountOwed returns the payoff of loan as of asOf under DefaultPolicy.
func AmountOwed(loan *domain.Loan, asOf time.Time) decimal.Decimal {
	return DefaultPolicy.AmountOwed(loan, asOf)
}

// AmountOwed returns the payoff of loan as of asOf, rounded half-up to cents.
func (p Policy) AmountOwed(loan *domain.Loan, asOf time.Time) decimal.Decimal {
	return p.Quote(loan, asOf).AmountOwed
}

// ElapsedYears converts the calendar days between created and asOf to years.
// Dates before created count as zero elapsed time.
func (p Policy) ElapsedYears(created, asOf time.Time) decimal.Decimal {
	days := utils.DaysBetween(created, asOf)
	if days <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(days).DivRound(p.DaysPerYear, p.Scale)
}

// Quote computes the payoff of loan as of asOf together with the rate inputs used.
func (p Policy) Quote(loan *domain.Loan, asOf time.Time) domain.LoanQuote {
	quote := p.quoteElapsed(loan, p.ElapsedYears(loan.DateCreated, asOf))
	quote.AsOf = utils.DateOf(asOf, nil)
	return quote
}

func (p Policy) quoteElapsed(loan *domain.Loan, elapsed decimal.Decimal) domain.LoanQuote {
	quote := domain.LoanQuote{
		Loan:                 loan,
		ElapsedYears:         elapsed,
		PenaltyPercent:       decimal.Zero,
		EffectiveRatePercent: loan.AnnualRatePercent,
	}

	duration := decimal.NewFromInt(int64(loan.DurationYears))
	if elapsed.GreaterThan(duration) {
		// only whole half-years count towards the penalty
		halfYears := elapsed.Sub(duration).Mul(two).Floor().IntPart()
		quote.Overdue = true
		quote.HalfYearsOverdue = halfYears
		quote.PenaltyPercent = decimal.NewFromInt(halfYears).Mul(p.PenaltyPercentPerHalfYear)
		quote.EffectiveRatePercent = loan.AnnualRatePercent.Add(quote.PenaltyPercent)
	}
	if quote.EffectiveRatePercent.IsNegative() {
		quote.EffectiveRatePercent = decimal.Zero
	}

	quarterlyRate := quote.EffectiveRatePercent.DivRound(hundred, p.Scale).DivRound(four, p.Scale)
	quarters := elapsed.Mul(four)

	quote.AmountOwed = loan.Principal.Mul(growth(quarterlyRate, quarters)).Round(domain.CurrencyScale)
	return quote
}

// growth returns (1 + rate) ^ periods for a non-negative rate and fractional periods.
func growth(rate, periods decimal.Decimal) decimal.Decimal {
	if periods.IsZero() {
		return decimal.NewFromInt(1)
	}
	factor, err := decimal.NewFromInt(1).Add(rate).PowWithPrecision(periods, powPrecision)
	if err != nil {
		// the base is at least 1, so PowWithPrecision has no failure case left
		panic(fmt.Sprintf("amortization: compounding (1+%s)^%s: %v", rate, periods, err))
	}
	return factor
}
