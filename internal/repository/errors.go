package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsDuplicate - signals that the error is a duplicate key violation.
func IsDuplicate(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == "23505"
}

// IsNotFound - signals that the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsTransient - signals serialization failures, deadlocks and lock timeouts
// that are safe to retry.
func IsTransient(err error) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return false
	}
	switch pgerr.Code {
	case "40001", "40P01", "55P03":
		return true
	default:
		return false
	}
}
