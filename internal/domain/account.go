package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account identifies a customer account. It has no balance; balances are folded
// from the ledger on every read.
type Account struct {
	Number     string    `json:"account_number" db:"account_number"`
	HolderName string    `json:"holder_name" db:"holder_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type OpenAccountRequest struct {
	AccountNumber  string          `json:"account_number" validate:"required,max=32"`
	HolderName     string          `json:"holder_name" validate:"required,max=200"`
	InitialDeposit decimal.Decimal `json:"initial_deposit" validate:"decimal_gte=0"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
}

type TransferRequest struct {
	ToAccount string          `json:"to_account" validate:"required,max=32"`
	Amount    decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
}

type TransferResponse struct {
	TransferID uuid.UUID `json:"transfer_id"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
}

type StatementResponse struct {
	AccountNumber string         `json:"account_number"`
	Entries       []*LedgerEntry `json:"entries"`
}
