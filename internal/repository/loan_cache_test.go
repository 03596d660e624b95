package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/tests/mocks"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedLoan() *domain.Loan {
	return &domain.Loan{
		ID:                7,
		Principal:         decimal.RequireFromString("1000"),
		AccountNumber:     "ACC-1",
		AnnualRatePercent: decimal.RequireFromString("5"),
		DateCreated:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationYears:     1,
		CreatedAt:         time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestLoanCache_MissLoadsAndStores(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	loans := new(mocks.MockLoanRepository)
	loan := cachedLoan()
	payload, err := json.Marshal(loan)
	require.NoError(t, err)

	redisMock.ExpectGet("loan:7").RedisNil()
	redisMock.ExpectSet("loan:7", string(payload), time.Hour).SetVal("OK")
	loans.On("GetByID", context.Background(), int64(7)).Return(loan, nil).Once()

	cache := NewLoanCache(loans, client, time.Hour, nil)
	got, err := cache.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Same(t, loan, got)
	loans.AssertExpectations(t)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestLoanCache_HitSkipsRepository(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	loans := new(mocks.MockLoanRepository)
	loan := cachedLoan()
	payload, err := json.Marshal(loan)
	require.NoError(t, err)

	redisMock.ExpectGet("loan:7").SetVal(string(payload))

	cache := NewLoanCache(loans, client, time.Hour, nil)
	got, err := cache.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)
	assert.True(t, loan.Principal.Equal(got.Principal))
	assert.True(t, loan.DateCreated.Equal(got.DateCreated))
	loans.AssertNotCalled(t, "GetByID", context.Background(), int64(7))
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestLoanCache_RedisDownFallsBackToRepository(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	loans := new(mocks.MockLoanRepository)
	loan := cachedLoan()
	payload, err := json.Marshal(loan)
	require.NoError(t, err)

	redisMock.ExpectGet("loan:7").SetErr(errors.New("connection refused"))
	redisMock.ExpectSet("loan:7", string(payload), time.Hour).SetErr(errors.New("connection refused"))
	loans.On("GetByID", context.Background(), int64(7)).Return(loan, nil).Once()

	cache := NewLoanCache(loans, client, time.Hour, nil)
	got, err := cache.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Same(t, loan, got)
	loans.AssertExpectations(t)
}

func TestLoanCache_NotFoundIsNotCached(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	loans := new(mocks.MockLoanRepository)

	redisMock.ExpectGet("loan:99").RedisNil()
	loans.On("GetByID", context.Background(), int64(99)).Return(nil, sql.ErrNoRows).Once()

	cache := NewLoanCache(loans, client, time.Hour, nil)
	_, err := cache.GetByID(context.Background(), 99)

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestLoanCache_NilClientPassesThrough(t *testing.T) {
	loans := new(mocks.MockLoanRepository)
	loan := cachedLoan()
	loans.On("GetByID", context.Background(), int64(7)).Return(loan, nil).Once()

	cache := NewLoanCache(loans, nil, time.Hour, nil)
	got, err := cache.GetByID(context.Background(), 7)

	require.NoError(t, err)
	assert.Same(t, loan, got)
	loans.AssertExpectations(t)
}
