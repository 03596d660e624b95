package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/database"
	"github.com/segyhp/ledger-engine/internal/handler"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/internal/service"
	"github.com/segyhp/ledger-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx := context.Background()

	// Initialize store
	store, closeStore, err := database.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize Redis
	redisClient := database.ConnectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize service
	loanCache := repository.NewLoanCache(store.Repositories().Loans, redisClient, cfg.Redis.LoanCacheTTL, log)
	bankingService := service.NewBankingService(store, loanCache, service.OptionsFromConfig(cfg, log))

	bankingHandler := handler.NewBankingHandler(bankingService, log)
	healthHandler := handler.NewHealthHandler(store, redisClient, cfg.Health.Timeout)

	// Start server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.NewRouter(bankingHandler, healthHandler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", slog.String("address", server.Addr), slog.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}
