package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: featured_reservations.id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("lock: %w", &pgconn.PgError{Code: "55P03"})))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(gorm.ErrRecordNotFound))
	assert.False(t, IsRetryable(nil))
}

func TestSQLState(t *testing.T) {
	assert.Equal(t, "55P03", SQLState(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "55P03"})))
	assert.Equal(t, "23505", SQLState(&pq.Error{Code: "23505"}))
	assert.Empty(t, SQLState(errors.New("boom")))
	assert.Empty(t, SQLState(nil))
}
