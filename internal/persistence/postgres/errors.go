package postgres

import (
	"errors"
	"fmt"

	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// mapError translates pgx errors into persistence sentinels, keeping the cause.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		case codeCheckViolation, codeNotNullViolation:
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}
