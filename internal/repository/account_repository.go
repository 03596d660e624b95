package repository

import (
	"context"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type accountRepository struct {
	db sqlx.ExtContext
}

// NewAccountRepository returns an AccountRepository running on db
func NewAccountRepository(db sqlx.ExtContext) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, holder_name)
		VALUES ($1, $2)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query, account.Number, account.HolderName).Scan(&account.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}

	return err
}

func (r *accountRepository) Get(ctx context.Context, number string) (*domain.Account, error) {
	query := `
		SELECT account_number, holder_name, created_at
		FROM accounts
		WHERE account_number = $1
	`

	var account domain.Account
	if err := sqlx.GetContext(ctx, r.db, &account, query, number); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountRepository) Lock(ctx context.Context, number string) error {
	query := `
		SELECT account_number
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE
	`

	var locked string
	return sqlx.GetContext(ctx, r.db, &locked, query, number)
}
