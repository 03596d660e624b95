package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

// LoanReader is the read side of LoanRepository used by payoff quotes
type LoanReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)
}

// LoanCache is a read-through Redis cache in front of loan lookups. Loan terms never
// change after creation, so entries are only ever evicted by TTL.
type LoanCache struct {
	loans  LoanReader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLoanCache wraps loans with a cache on client. A nil client disables caching.
func NewLoanCache(loans LoanReader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *LoanCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanCache{loans: loans, client: client, ttl: ttl, logger: logger}
}

func loanCacheKey(id int64) string {
	return "loan:" + strconv.FormatInt(id, 10)
}

func (c *LoanCache) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	if c.client == nil {
		return c.loans.GetByID(ctx, id)
	}

	key := loanCacheKey(id)
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var loan domain.Loan
		if jsonErr := json.Unmarshal([]byte(cached), &loan); jsonErr == nil {
			return &loan, nil
		}
		c.logger.WarnContext(ctx, "discarding unreadable cached loan", slog.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "loan cache unavailable", slog.String("error", err.Error()))
	}

	loan, err := c.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(loan)
	if err != nil {
		return loan, nil
	}
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to cache loan", slog.String("key", key), slog.String("error", err.Error()))
	}

	return loan, nil
}
