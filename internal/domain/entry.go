package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind tags what a ledger entry represents.
type EntryKind string

const (
	EntryKindDeposit          EntryKind = "deposit"
	EntryKindWithdrawal       EntryKind = "withdrawal"
	EntryKindTransferOut      EntryKind = "transfer_out"
	EntryKindTransferIn       EntryKind = "transfer_in"
	EntryKindLoanDisbursement EntryKind = "loan_disbursement"
	EntryKindLoanRepayment    EntryKind = "loan_repayment"
)

// CurrencyScale is the number of fractional digits money carries at rest.
const CurrencyScale = 2

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindDeposit, EntryKindWithdrawal, EntryKindTransferOut,
		EntryKindTransferIn, EntryKindLoanDisbursement, EntryKindLoanRepayment:
		return true
	}
	return false
}

// IsCredit reports whether the entry moves money into its primary account.
func (k EntryKind) IsCredit() bool {
	return k == EntryKindDeposit || k == EntryKindTransferIn || k == EntryKindLoanDisbursement
}

var (
	errDraftNoSide       = errors.New("entry must set to_account or from_account")
	errDraftPrimary      = errors.New("primary account must be the credited or debited side")
	errDraftAmount       = errors.New("entry amount must be non-negative with at most 2 fractional digits")
	errDraftKind         = errors.New("unknown entry kind")
	errDraftCreditTarget = errors.New("credit entry must credit its primary account")
	errDraftDebitSource  = errors.New("debit entry must debit its primary account")
)

// EntryDraft is a ledger entry before the store assigns its id and timestamp.
type EntryDraft struct {
	PrimaryAccount string
	Amount         decimal.Decimal
	ToAccount      *string
	FromAccount    *string
	Kind           EntryKind
	TransferID     uuid.NullUUID
	LoanID         *int64
}

// Validate checks the shape invariants every committed entry must satisfy.
func (d EntryDraft) Validate() error {
	if !d.Kind.Valid() {
		return errDraftKind
	}
	if d.ToAccount == nil && d.FromAccount == nil {
		return errDraftNoSide
	}
	if !sameAccount(d.ToAccount, d.PrimaryAccount) && !sameAccount(d.FromAccount, d.PrimaryAccount) {
		return errDraftPrimary
	}
	if d.Amount.IsNegative() || !IsCurrencyAmount(d.Amount) {
		return errDraftAmount
	}
	if d.Kind.IsCredit() && !sameAccount(d.ToAccount, d.PrimaryAccount) {
		return errDraftCreditTarget
	}
	if !d.Kind.IsCredit() && !sameAccount(d.FromAccount, d.PrimaryAccount) {
		return errDraftDebitSource
	}
	return nil
}

// LedgerEntry is an immutable, committed record of money moving into or out of an account.
type LedgerEntry struct {
	ID             int64           `json:"id" db:"id"`
	PrimaryAccount string          `json:"primary_account" db:"primary_account"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	ToAccount      *string         `json:"to_account,omitempty" db:"to_account"`
	FromAccount    *string         `json:"from_account,omitempty" db:"from_account"`
	Kind           EntryKind       `json:"kind" db:"kind"`
	TransferID     uuid.NullUUID   `json:"transfer_id" db:"transfer_id"`
	LoanID         *int64          `json:"loan_id,omitempty" db:"loan_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// EffectOn returns the signed amount this entry contributes to account's balance.
// Both legs of a transfer name both accounts, so an entry only counts on the side
// its kind moves money for.
func (e *LedgerEntry) EffectOn(account string) decimal.Decimal {
	if e.Kind.IsCredit() {
		if sameAccount(e.ToAccount, account) {
			return e.Amount
		}
		return decimal.Zero
	}
	if sameAccount(e.FromAccount, account) {
		return e.Amount.Neg()
	}
	return decimal.Zero
}

// Touches reports whether the entry belongs on account's statement.
func (e *LedgerEntry) Touches(account string) bool {
	return e.PrimaryAccount == account || sameAccount(e.ToAccount, account) || sameAccount(e.FromAccount, account)
}

// Deposit builds a draft crediting account.
func Deposit(account string, amount decimal.Decimal) EntryDraft {
	return EntryDraft{PrimaryAccount: account, Amount: amount, ToAccount: &account, Kind: EntryKindDeposit}
}

// Withdrawal builds a draft debiting account.
func Withdrawal(account string, amount decimal.Decimal) EntryDraft {
	return EntryDraft{PrimaryAccount: account, Amount: amount, FromAccount: &account, Kind: EntryKindWithdrawal}
}

// TransferPair builds the two linked legs of a transfer. Both legs name both accounts
// and share transferID.
func TransferPair(from, to string, amount decimal.Decimal, transferID uuid.UUID) []EntryDraft {
	pair := uuid.NullUUID{UUID: transferID, Valid: true}
	return []EntryDraft{
		{PrimaryAccount: from, Amount: amount, ToAccount: &to, FromAccount: &from, Kind: EntryKindTransferOut, TransferID: pair},
		{PrimaryAccount: to, Amount: amount, ToAccount: &to, FromAccount: &from, Kind: EntryKindTransferIn, TransferID: pair},
	}
}

// LoanDisbursement builds the draft crediting a borrower with the loan principal.
func LoanDisbursement(account string, principal decimal.Decimal, loanID int64) EntryDraft {
	return EntryDraft{PrimaryAccount: account, Amount: principal, ToAccount: &account, Kind: EntryKindLoanDisbursement, LoanID: &loanID}
}

// LoanRepayment builds the draft debiting a borrower for a loan payoff.
func LoanRepayment(account string, amount decimal.Decimal, loanID int64) EntryDraft {
	return EntryDraft{PrimaryAccount: account, Amount: amount, FromAccount: &account, Kind: EntryKindLoanRepayment, LoanID: &loanID}
}

// IsCurrencyAmount reports whether d has no more fractional digits than money carries.
func IsCurrencyAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(CurrencyScale))
}

func sameAccount(side *string, account string) bool {
	return side != nil && *side == account
}
