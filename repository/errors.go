package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"warden/apperr"
)

// Postgres error codes the layer classifies
const (
	pgUniqueViolation    = "23505"
	pgCheckViolation     = "23514"
	pgForeignKeyViolation = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected   = "40P01"
)

// mapError translates a pgx error into the stable taxonomy. Callers wrap the
// result with operation context.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, "record not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, err, "database operation timed out")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation, pgSerializationFailure, pgDeadlockDetected:
			return apperr.Wrap(apperr.KindConflict, err, "conflicting update")
		case pgForeignKeyViolation:
			return apperr.Wrap(apperr.KindConflict, err, "referenced record missing")
		}
	}

	return apperr.Wrap(apperr.KindTransport, err, "database unavailable")
}

// IsConflict reports whether an error is a classified conflict
func IsConflict(err error) bool {
	return apperr.Is(err, apperr.KindConflict)
}
