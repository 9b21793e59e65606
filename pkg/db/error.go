package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgUndefinedTable       = "42P01"
	pgQueryCanceled        = "57014"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, pgUniqueViolation) {
		return true
	}

	msg := err.Error()
	// PostgreSQL without pgconn in the chain
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	// MySQL (error code 1062)
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	// SQLite (error code 2067)
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsUndefinedTableErr reports a missing relation, e.g. a partially migrated store.
func IsUndefinedTableErr(err error) bool {
	if err == nil {
		return false
	}
	if hasPGCode(err, pgUndefinedTable) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "Error 1146") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// IsStatementTimeoutErr covers both server-side statement_timeout and client deadlines.
func IsStatementTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return hasPGCode(err, pgQueryCanceled)
}

func IsLockTimeoutErr(err error) bool {
	return hasPGCode(err, pgLockNotAvailable)
}

func IsSerializationErr(err error) bool {
	return hasPGCode(err, pgSerializationFailure)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
