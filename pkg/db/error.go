package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/eroom/internal/errs"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// transientPGCodes are postgres SQLSTATEs worth retrying: serialization
// failure, deadlock, lock not available, statement cancelled.
var transientPGCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
	"57014": {},
}

// IsTransientErr reports lock contention or connection loss.
func IsTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientPGCodes[pgErr.Code]; ok {
			return true
		}
		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection refused")
}

// Classify wraps transient storage failures so callers can retry them.
// Everything else passes through untouched.
func Classify(err error) error {
	if err == nil || errs.Kind(err) != nil {
		return err
	}
	if IsTransientErr(err) {
		return errs.Transient(err)
	}
	return err
}
