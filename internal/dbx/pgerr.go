package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation = "23505"
	pgUndefinedColumn = "42703"
)

// PgCode returns the SQLSTATE carried by err, or "".
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool { return PgCode(err) == pgUniqueViolation }

func IsUndefinedColumn(err error) bool { return PgCode(err) == pgUndefinedColumn }
