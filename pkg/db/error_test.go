package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert claim: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: settlement_window_claims.recipient_id")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsUndefinedTableErr(t *testing.T) {
	assert.True(t, IsUndefinedTableErr(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, IsUndefinedTableErr(errors.New("no such table: settlement_window_claims")))
	assert.True(t, IsUndefinedTableErr(errors.New(`ERROR: relation "settlement_window_claims" does not exist`)))
	assert.False(t, IsUndefinedTableErr(errors.New("syntax error")))
}

func TestIsStatementTimeoutErr(t *testing.T) {
	assert.True(t, IsStatementTimeoutErr(context.DeadlineExceeded))
	assert.True(t, IsStatementTimeoutErr(fmt.Errorf("sum: %w", &pgconn.PgError{Code: "57014"})))
	assert.False(t, IsStatementTimeoutErr(context.Canceled))
	assert.False(t, IsStatementTimeoutErr(nil))
}

func TestLockAndSerializationCodes(t *testing.T) {
	assert.True(t, IsLockTimeoutErr(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsSerializationErr(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsSerializationErr(&pgconn.PgError{Code: "55P03"}))
}
