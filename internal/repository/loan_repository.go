package repository

import (
	"context"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, principal, account_number, annual_rate_percent, date_created, duration_years, created_at`

type loanRepository struct {
	db sqlx.ExtContext
}

// NewLoanRepository returns a LoanRepository running on db
func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (principal, account_number, annual_rate_percent, date_created, duration_years)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		loan.Principal,
		loan.AccountNumber,
		loan.AnnualRatePercent,
		loan.DateCreated,
		loan.DurationYears,
	).Scan(&loan.ID, &loan.CreatedAt)
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE id = $1
	`

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListByAccount(ctx context.Context, account string) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE account_number = $1
		ORDER BY id
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, account); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) ListMaturedBefore(ctx context.Context, date time.Time) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE (date_created + make_interval(years => duration_years))::date < $1
		ORDER BY date_created, id
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, date); err != nil {
		return nil, err
	}

	return loans, nil
}
