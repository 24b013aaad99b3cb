package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mindlog/session-worker/internal/store"
)

// PostgreSQL error codes this package cares about.
const (
	pgForeignKeyViolationCode = "23503"
	pgUniqueViolationCode     = "23505"
)

// mapError translates driver-level errors into store sentinel errors so
// callers never depend on pgx types.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolationCode, pgUniqueViolationCode:
			return store.ErrInvalidEntity
		}
	}
	return err
}
