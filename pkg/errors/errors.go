package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidLoanTerms    = errors.New("invalid loan terms")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrSameAccount         = errors.New("source and destination account are the same")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAccountMismatch = errors.New("loan belongs to a different account")
	ErrStoreFailure        = errors.New("store failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInvalidLoanTerms    = "INVALID_LOAN_TERMS"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountExists       = "ACCOUNT_EXISTS"
	ErrCodeSameAccount         = "SAME_ACCOUNT"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeLoanAccountMismatch = "LOAN_ACCOUNT_MISMATCH"
	ErrCodeStoreFailure        = "STORE_FAILURE"
)

// Wrap common errors with business context
func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Amount %s must be positive with at most 2 decimal places", amount),
		ErrInvalidAmount,
	)
}

// WrapMalformedAmount reports an amount that could not be read as a decimal number
func WrapMalformedAmount(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		"Amount must be a decimal number",
		fmt.Errorf("%w: %w", ErrInvalidAmount, err),
	)
}

func WrapInvalidLoanTerms(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		reason,
		ErrInvalidLoanTerms,
	)
}

func WrapAccountNotFound(accountNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeAccountNotFound,
		fmt.Sprintf("Account %s not found", accountNumber),
		ErrAccountNotFound,
	)
}

func WrapAccountExists(accountNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeAccountExists,
		fmt.Sprintf("Account %s already exists", accountNumber),
		ErrAccountExists,
	)
}

func WrapSameAccount(accountNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeSameAccount,
		fmt.Sprintf("Cannot transfer from account %s to itself", accountNumber),
		ErrSameAccount,
	)
}

func WrapInsufficientFunds(accountNumber, balance, required string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientFunds,
		fmt.Sprintf("Account %s has balance %s, requires %s", accountNumber, balance, required),
		ErrInsufficientFunds,
	)
}

func WrapLoanNotFound(loanID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %d not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAccountMismatch(loanID int64, accountNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAccountMismatch,
		fmt.Sprintf("Loan with ID %d does not belong to account %s", loanID, accountNumber),
		ErrLoanAccountMismatch,
	)
}

// WrapStoreFailure marks err as a store failure. Nothing was committed, so the
// whole operation may be retried.
func WrapStoreFailure(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStoreFailure,
		"store operation failed",
		fmt.Errorf("%w: %w", ErrStoreFailure, err),
	)
}

// AsBusinessError returns err unchanged when it already carries a business reason
// and wraps it as a store failure otherwise.
func AsBusinessError(err error) *BusinessError {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	return WrapStoreFailure(err)
}
