package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/database"
	"github.com/segyhp/ledger-engine/internal/service"
	"github.com/segyhp/ledger-engine/pkg/logger"

	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting ledger scheduler")

	if err := cfg.ValidateScheduler(); err != nil {
		log.Error("scheduler cannot report on this store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, closeStore, err := database.OpenStore(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialize store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// The report only reads, so loans are fetched without the Redis cache
	svc := service.NewBankingService(store, store.Repositories().Loans, service.OptionsFromConfig(cfg, log))

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.GetLocation()))

	// Schedule tasks
	if err := setupCronJobs(c, cfg, svc, log); err != nil {
		log.Error("failed to schedule jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	log.Info("scheduler started", slog.String("overdue_report", cfg.Scheduler.OverdueReportSpec))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, svc *service.BankingService, log *slog.Logger) error {
	_, err := c.AddFunc(cfg.Scheduler.OverdueReportSpec, func() {
		reportOverdueLoans(context.Background(), svc, log)
	})
	return err
}

// reportOverdueLoans logs every loan past its term with today's payoff
func reportOverdueLoans(ctx context.Context, svc *service.BankingService, log *slog.Logger) {
	today := svc.Today()
	log.Info("running overdue loan report", slog.Time("as_of", today))

	quotes, err := svc.OverdueLoans(ctx, today)
	if err != nil {
		log.Error("overdue loan report failed", slog.String("error", err.Error()))
		return
	}

	for _, quote := range quotes {
		log.Warn("loan overdue",
			slog.Int64("loan_id", quote.Loan.ID),
			slog.String("account", quote.Loan.AccountNumber),
			slog.Time("maturity_date", quote.Loan.MaturityDate()),
			slog.Int64("half_years_overdue", quote.HalfYearsOverdue),
			slog.String("effective_rate_percent", quote.EffectiveRatePercent.String()),
			slog.String("amount_owed", quote.AmountOwed.String()))
	}

	log.Info("overdue loan report finished", slog.Int("overdue", len(quotes)))
}
