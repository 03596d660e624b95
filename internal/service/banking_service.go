package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/segyhp/ledger-engine/internal/amortization"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultStatementPageSize = 50

// Options tunes a BankingService. Zero values fall back to defaults.
type Options struct {
	Policy            amortization.Policy
	Location          *time.Location
	StatementPageSize int
	Now               func() time.Time
	Logger            *slog.Logger
}

// OptionsFromConfig builds service options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	policy := amortization.DefaultPolicy
	policy.PenaltyPercentPerHalfYear = cfg.GetPenaltyPercentPerHalfYear()

	return Options{
		Policy:            policy,
		Location:          cfg.GetLocation(),
		StatementPageSize: cfg.Business.StatementPageSize,
		Logger:            logger,
	}
}

// BankingService executes ledger mutations as atomic units of work and answers
// balance, statement and loan payoff queries.
type BankingService struct {
	store    repository.Store
	loans    repository.LoanReader
	policy   amortization.Policy
	location *time.Location
	pageSize int
	now      func() time.Time
	logger   *slog.Logger
}

// NewBankingService wires the service. loans serves payoff lookups outside a unit of
// work (usually a repository.LoanCache); nil reads straight from the store.
func NewBankingService(store repository.Store, loans repository.LoanReader, opts Options) *BankingService {
	if loans == nil {
		loans = store.Repositories().Loans
	}
	if opts.Policy.DaysPerYear.IsZero() {
		opts.Policy = amortization.DefaultPolicy
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatementPageSize <= 0 {
		opts.StatementPageSize = defaultStatementPageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &BankingService{
		store:    store,
		loans:    loans,
		policy:   opts.Policy,
		location: opts.Location,
		pageSize: opts.StatementPageSize,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// Today is the current calendar date in the business timezone
func (s *BankingService) Today() time.Time {
	return utils.DateOf(s.now(), s.location)
}

// Deposit credits account with amount
func (s *BankingService) Deposit(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return s.reject(ctx, "deposit", err)
	}

	err := s.mutate(ctx, "deposit", func(ctx context.Context, repos repository.Repositories) error {
		if err := lockAccounts(ctx, repos, account); err != nil {
			return err
		}
		_, err := repos.Ledger.Append(ctx, []domain.EntryDraft{domain.Deposit(account, amount)})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "deposit committed",
		slog.String("account", account),
		slog.String("amount", amount.String()))
	return nil
}

// Withdraw debits amount from account when the balance covers it
func (s *BankingService) Withdraw(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return s.reject(ctx, "withdraw", err)
	}

	err := s.mutate(ctx, "withdraw", func(ctx context.Context, repos repository.Repositories) error {
		if err := lockAccounts(ctx, repos, account); err != nil {
			return err
		}
		if err := requireFunds(ctx, repos, account, amount); err != nil {
			return err
		}
		_, err := repos.Ledger.Append(ctx, []domain.EntryDraft{domain.Withdrawal(account, amount)})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "withdrawal committed",
		slog.String("account", account),
		slog.String("amount", amount.String()))
	return nil
}

// Transfer moves amount from one account to another as two linked ledger entries
// and returns the id they share.
func (s *BankingService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (uuid.UUID, error) {
	if err := validateAmount(amount); err != nil {
		return uuid.Nil, s.reject(ctx, "transfer", err)
	}
	if from == to {
		return uuid.Nil, s.reject(ctx, "transfer", customError.WrapSameAccount(from))
	}

	transferID := uuid.New()
	err := s.mutate(ctx, "transfer", func(ctx context.Context, repos repository.Repositories) error {
		if err := lockAccounts(ctx, repos, from, to); err != nil {
			return err
		}
		if err := requireFunds(ctx, repos, from, amount); err != nil {
			return err
		}
		_, err := repos.Ledger.Append(ctx, domain.TransferPair(from, to, amount, transferID))
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.InfoContext(ctx, "transfer committed",
		slog.String("transfer_id", transferID.String()),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("amount", amount.String()))
	return transferID, nil
}

// DisburseLoan records a new loan dated today and credits its principal to account
func (s *BankingService) DisburseLoan(ctx context.Context, account string, principal, annualRatePercent decimal.Decimal, durationYears int) (int64, error) {
	if err := validateAmount(principal); err != nil {
		return 0, s.reject(ctx, "disburse_loan", err)
	}
	if annualRatePercent.IsNegative() {
		return 0, s.reject(ctx, "disburse_loan", customError.WrapInvalidLoanTerms("annual rate must not be negative"))
	}
	if durationYears <= 0 {
		return 0, s.reject(ctx, "disburse_loan", customError.WrapInvalidLoanTerms("duration must be at least one year"))
	}

	var loanID int64
	err := s.mutate(ctx, "disburse_loan", func(ctx context.Context, repos repository.Repositories) error {
		if err := lockAccounts(ctx, repos, account); err != nil {
			return err
		}

		loan := &domain.Loan{
			Principal:         principal,
			AccountNumber:     account,
			AnnualRatePercent: annualRatePercent,
			DateCreated:       s.Today(),
			DurationYears:     durationYears,
		}
		if err := repos.Loans.Create(ctx, loan); err != nil {
			return err
		}
		if _, err := repos.Ledger.Append(ctx, []domain.EntryDraft{domain.LoanDisbursement(account, principal, loan.ID)}); err != nil {
			return err
		}

		loanID = loan.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "loan disbursed",
		slog.Int64("loan_id", loanID),
		slog.String("account", account),
		slog.String("principal", principal.String()),
		slog.String("annual_rate_percent", annualRatePercent.String()),
		slog.Int("duration_years", durationYears))
	return loanID, nil
}

// RepayLoan charges account the payoff of loanID as of today. The amount is
// recomputed and the balance rechecked inside the unit of work, so a stale quote
// can never overdraw the account.
func (s *BankingService) RepayLoan(ctx context.Context, account string, loanID int64) (decimal.Decimal, error) {
	var charged decimal.Decimal
	err := s.mutate(ctx, "repay_loan", func(ctx context.Context, repos repository.Repositories) error {
		loan, err := repos.Loans.GetByID(ctx, loanID)
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapLoanNotFound(loanID)
		}
		if err != nil {
			return err
		}
		if loan.AccountNumber != account {
			return customError.WrapLoanAccountMismatch(loanID, account)
		}

		if err := lockAccounts(ctx, repos, account); err != nil {
			return err
		}

		owed := s.policy.AmountOwed(loan, s.Today())
		if err := requireFunds(ctx, repos, account, owed); err != nil {
			return err
		}
		if _, err := repos.Ledger.Append(ctx, []domain.EntryDraft{domain.LoanRepayment(account, owed, loan.ID)}); err != nil {
			return err
		}

		charged = owed
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.InfoContext(ctx, "loan repaid",
		slog.Int64("loan_id", loanID),
		slog.String("account", account),
		slog.String("amount", charged.String()))
	return charged, nil
}

// OpenAccount creates an account and, when initialDeposit is positive, credits it
// in the same unit of work.
func (s *BankingService) OpenAccount(ctx context.Context, number, holderName string, initialDeposit decimal.Decimal) (*domain.Account, error) {
	if initialDeposit.IsNegative() || !domain.IsCurrencyAmount(initialDeposit) {
		return nil, s.reject(ctx, "open_account", customError.WrapInvalidAmount(initialDeposit.String()))
	}

	var opened *domain.Account
	err := s.mutate(ctx, "open_account", func(ctx context.Context, repos repository.Repositories) error {
		account := &domain.Account{Number: number, HolderName: holderName}
		err := repos.Accounts.Create(ctx, account)
		if errors.Is(err, repository.ErrDuplicate) {
			return customError.WrapAccountExists(number)
		}
		if err != nil {
			return err
		}

		if initialDeposit.IsPositive() {
			if _, err := repos.Ledger.Append(ctx, []domain.EntryDraft{domain.Deposit(number, initialDeposit)}); err != nil {
				return err
			}
		}

		opened = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account opened",
		slog.String("account", number),
		slog.String("initial_deposit", initialDeposit.String()))
	return opened, nil
}

// mutate runs fn as one unit of work and turns whatever escapes it into a business error
func (s *BankingService) mutate(ctx context.Context, op string, fn repository.TxFunc) error {
	err := s.store.WithinTx(ctx, fn)
	if err == nil {
		return nil
	}

	be := customError.AsBusinessError(err)
	if be.Code == customError.ErrCodeStoreFailure {
		s.logger.ErrorContext(ctx, "unit of work failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return be
	}
	return s.reject(ctx, op, be)
}

func (s *BankingService) reject(ctx context.Context, op string, be *customError.BusinessError) error {
	s.logger.DebugContext(ctx, "operation rejected",
		slog.String("operation", op),
		slog.String("code", be.Code),
		slog.String("reason", be.Message))
	return be
}

func validateAmount(amount decimal.Decimal) *customError.BusinessError {
	if !amount.IsPositive() || !domain.IsCurrencyAmount(amount) {
		return customError.WrapInvalidAmount(amount.String())
	}
	return nil
}

// lockAccounts takes the row locks in sorted order so concurrent units never deadlock
func lockAccounts(ctx context.Context, repos repository.Repositories, accounts ...string) error {
	sorted := slices.Clone(accounts)
	slices.Sort(sorted)

	for _, account := range slices.Compact(sorted) {
		err := repos.Accounts.Lock(ctx, account)
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapAccountNotFound(account)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func requireFunds(ctx context.Context, repos repository.Repositories, account string, amount decimal.Decimal) error {
	balance, err := repos.Ledger.Balance(ctx, account)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return customError.WrapInsufficientFunds(account, balance.StringFixed(domain.CurrencyScale), amount.StringFixed(domain.CurrencyScale))
	}
	return nil
}
