package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segyhp/ledger-engine/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Connect opens the PostgreSQL pool and applies the pool limits from cfg
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// ConnectRedis returns a client for the loan cache, or nil when Redis is not
// configured or unreachable. The service keeps working without it.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("redis not configured, loan cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without loan cache",
			slog.String("addr", cfg.Addr),
			slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}

	return client
}
