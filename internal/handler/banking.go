package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/response"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	defaultStatementLimit = 100
	maxStatementLimit     = 1000
)

// BankingService is what the HTTP adapter needs from the core
type BankingService interface {
	OpenAccount(ctx context.Context, number, holderName string, initialDeposit decimal.Decimal) (*domain.Account, error)
	Deposit(ctx context.Context, account string, amount decimal.Decimal) error
	Withdraw(ctx context.Context, account string, amount decimal.Decimal) error
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (uuid.UUID, error)
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
	Statement(ctx context.Context, account string) iter.Seq2[*domain.LedgerEntry, error]
	DisburseLoan(ctx context.Context, account string, principal, annualRatePercent decimal.Decimal, durationYears int) (int64, error)
	QuoteLoanPayoff(ctx context.Context, loanID int64, asOf time.Time) (*domain.LoanQuote, error)
	RepayLoan(ctx context.Context, account string, loanID int64) (decimal.Decimal, error)
	LoansForAccount(ctx context.Context, account string, asOf time.Time) ([]*domain.LoanQuote, error)
	LoanActivity(ctx context.Context, loanID int64) ([]*domain.LedgerEntry, error)
	OverdueLoans(ctx context.Context, asOf time.Time) ([]*domain.LoanQuote, error)
	Today() time.Time
}

type BankingHandler struct {
	service   BankingService
	validator *validator.Validate
	logger    *slog.Logger
}

func NewBankingHandler(service BankingService, logger *slog.Logger) *BankingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BankingHandler{
		service:   service,
		validator: newValidator(),
		logger:    logger,
	}
}

// newValidator validates decimal.Decimal fields through their string form
// and adds decimal_gt / decimal_gte comparisons.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", decimalComparison(func(cmp int) bool { return cmp > 0 }))
	_ = v.RegisterValidation("decimal_gte", decimalComparison(func(cmp int) bool { return cmp >= 0 }))

	return v
}

func decimalComparison(accept func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		limit, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return accept(value.Cmp(limit))
	}
}

// OpenAccount handles POST /accounts
func (h *BankingHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.service.OpenAccount(r.Context(), req.AccountNumber, req.HolderName, req.InitialDeposit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Created(w, account)
}

// Deposit handles POST /accounts/{account}/deposits
func (h *BankingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var req domain.AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Deposit(r.Context(), account, req.Amount); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeBalance(w, r, account)
}

// Withdraw handles POST /accounts/{account}/withdrawals
func (h *BankingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var req domain.AmountRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Withdraw(r.Context(), account, req.Amount); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeBalance(w, r, account)
}

// Transfer handles POST /accounts/{account}/transfers
func (h *BankingHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var req domain.TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	transferID, err := h.service.Transfer(r.Context(), account, req.ToAccount, req.Amount)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Created(w, domain.TransferResponse{TransferID: transferID})
}

// Balance handles GET /accounts/{account}/balance
func (h *BankingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, mux.Vars(r)["account"])
}

func (h *BankingHandler) writeBalance(w http.ResponseWriter, r *http.Request, account string) {
	balance, err := h.service.Balance(r.Context(), account)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, domain.BalanceResponse{AccountNumber: account, Balance: balance})
}

// Statement handles GET /accounts/{account}/statement?limit=N
func (h *BankingHandler) Statement(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	limit := defaultStatementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxStatementLimit {
			response.BadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxStatementLimit), err)
			return
		}
		limit = parsed
	}

	entries := make([]*domain.LedgerEntry, 0)
	for entry, err := range h.service.Statement(r.Context(), account) {
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		entries = append(entries, entry)
		if len(entries) == limit {
			break
		}
	}

	response.Success(w, domain.StatementResponse{AccountNumber: account, Entries: entries})
}

// AccountLoans handles GET /accounts/{account}/loans?as_of=YYYY-MM-DD
func (h *BankingHandler) AccountLoans(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	quotes, err := h.service.LoansForAccount(r.Context(), mux.Vars(r)["account"], asOf)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, quotes)
}

// DisburseLoan handles POST /loans
func (h *BankingHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.DisburseLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loanID, err := h.service.DisburseLoan(r.Context(), req.AccountNumber, req.Principal, req.AnnualRatePercent, req.DurationYears)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Created(w, domain.DisburseLoanResponse{LoanID: loanID})
}

// LoanPayoff handles GET /loans/{loanId}/payoff?as_of=YYYY-MM-DD
func (h *BankingHandler) LoanPayoff(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFrom(w, r)
	if !ok {
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	quote, err := h.service.QuoteLoanPayoff(r.Context(), loanID, asOf)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, quote)
}

// RepayLoan handles POST /loans/{loanId}/repayments
func (h *BankingHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFrom(w, r)
	if !ok {
		return
	}

	var req domain.RepayLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	charged, err := h.service.RepayLoan(r.Context(), req.AccountNumber, loanID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, domain.RepayLoanResponse{LoanID: loanID, AmountCharged: charged})
}

// LoanActivity handles GET /loans/{loanId}/activity
func (h *BankingHandler) LoanActivity(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFrom(w, r)
	if !ok {
		return
	}

	entries, err := h.service.LoanActivity(r.Context(), loanID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, entries)
}

// OverdueLoans handles GET /loans/overdue?as_of=YYYY-MM-DD
func (h *BankingHandler) OverdueLoans(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	quotes, err := h.service.OverdueLoans(r.Context(), asOf)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	response.Success(w, quotes)
}

func (h *BankingHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isAmountDecodeError(err) {
			h.handleError(w, r, customError.WrapMalformedAmount(err))
			return false
		}
		response.BadRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		if be := typedValidationError(err); be != nil {
			h.handleError(w, r, be)
			return false
		}
		response.BadRequest(w, "Validation failed", err)
		return false
	}

	return true
}

// isAmountDecodeError reports whether a decode error came from a decimal field.
// Decimals are the only request fields with their own UnmarshalJSON, and json
// returns those errors unwrapped; syntax and plain type errors have their own types.
func isAmountDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return false
	}
	return true
}

// typedValidationError gives amount and loan term failures the same codes the service uses
func typedValidationError(err error) *customError.BusinessError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	for _, fe := range fieldErrs {
		switch {
		case fe.StructField() == "AnnualRatePercent":
			return customError.WrapInvalidLoanTerms("annual rate must not be negative")
		case fe.StructField() == "DurationYears":
			return customError.WrapInvalidLoanTerms("duration must be at least one year")
		case fe.Tag() == "decimal_gt", fe.Tag() == "decimal_gte":
			return customError.WrapInvalidAmount(fmt.Sprint(fe.Value()))
		}
	}
	return nil
}

func (h *BankingHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.service.Today(), true
	}

	asOf, err := utils.ParseDate(raw)
	if err != nil {
		response.BadRequest(w, "as_of must be a date in YYYY-MM-DD format", err)
		return time.Time{}, false
	}
	return asOf, true
}

func loanIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	loanID, err := strconv.ParseInt(mux.Vars(r)["loanId"], 10, 64)
	if err != nil || loanID <= 0 {
		response.BadRequest(w, "Invalid loan ID", err)
		return 0, false
	}
	return loanID, true
}

func (h *BankingHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	be := customError.AsBusinessError(err)
	status := statusFor(be.Code)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	response.ErrorWithCode(w, status, be.Code, be.Message, nil)
}

func statusFor(code string) int {
	switch code {
	case customError.ErrCodeInvalidAmount, customError.ErrCodeInvalidLoanTerms, customError.ErrCodeSameAccount:
		return http.StatusBadRequest
	case customError.ErrCodeAccountNotFound, customError.ErrCodeLoanNotFound:
		return http.StatusNotFound
	case customError.ErrCodeLoanAccountMismatch:
		return http.StatusForbidden
	case customError.ErrCodeAccountExists:
		return http.StatusConflict
	case customError.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case customError.ErrCodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
