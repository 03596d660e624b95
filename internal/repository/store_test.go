package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lockQuery = regexp.QuoteMeta("SELECT account_number FROM accounts WHERE account_number = $1 FOR UPDATE")

func newMockStore(t *testing.T, maxRetries int) (Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(sqlx.NewDb(db, "postgres"), StoreOptions{
		Isolation:  sql.LevelSerializable,
		MaxRetries: maxRetries,
	}, nil)
	return store, mock
}

func lockAccount(ctx context.Context, repos Repositories) error {
	return repos.Accounts.Lock(ctx, "ACC-1")
}

func TestWithinTx_Commit(t *testing.T) {
	store, mock := newMockStore(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("ACC-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_number"}).AddRow("ACC-1"))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), lockAccount)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	store, mock := newMockStore(t, 3)
	guardErr := errors.New("guard rejected")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return guardErr
	})

	assert.ErrorIs(t, err, guardErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	store, mock := newMockStore(t, 3)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RetriesSerializationFailure(t *testing.T) {
	store, mock := newMockStore(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("ACC-1").
		WillReturnError(&pq.Error{Code: pqSerializationFailure})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("ACC-1").
		WillReturnError(&pq.Error{Code: pqDeadlockDetected})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("ACC-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_number"}).AddRow("ACC-1"))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), lockAccount)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_GivesUpAfterMaxRetries(t *testing.T) {
	store, mock := newMockStore(t, 1)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ACC-1").
			WillReturnError(&pq.Error{Code: pqSerializationFailure})
		mock.ExpectRollback()
	}

	err := store.WithinTx(context.Background(), lockAccount)

	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode(pqSerializationFailure), pqErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_DoesNotRetryOtherErrors(t *testing.T) {
	store, mock := newMockStore(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs("ACC-1").
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), lockAccount)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_CommitFailure(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_BeginFailure(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
