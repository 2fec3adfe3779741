package dbx

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkarpis/chatdb/internal/common"
)

// MapError translates PostgreSQL error codes into the shared sentinel
// errors so callers can match them with errors.Is without importing pgconn.
// Errors that carry no PgError are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == pgerrcode.SerializationFailure,
		pgErr.Code == pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: %s", common.ErrSerializationFailure, pgErr.Message)
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return fmt.Errorf("%w: %s", common.ErrorConstraint, pgErr.Message)
	}

	return err
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation. Repositories use it to turn inserts against missing parents
// into not-found errors.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
