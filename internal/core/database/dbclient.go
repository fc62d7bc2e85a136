package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/markdave123-py/Scanlens/internal/core"
)

var _ core.DbClient = (*DatabaseClient)(nil)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
