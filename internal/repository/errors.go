package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateODSCode is returned when a write violates ix_location_ods_code.
var ErrDuplicateODSCode = errors.New("duplicate ods_code")

const (
	pgUniqueViolation  = "23505"
	odsCodeConstraint  = "ix_location_ods_code"
	sqliteUniqueFailed = "UNIQUE constraint failed"
)

// isODSCodeViolation reports whether err is the ods_code unique violation.
// Other constraint failures are left untranslated.
func isODSCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == odsCodeConstraint
	}
	msg := err.Error()
	return strings.Contains(msg, sqliteUniqueFailed) && strings.Contains(msg, "location.ods_code")
}

func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isODSCodeViolation(err) {
		return errors.Join(ErrDuplicateODSCode, err)
	}
	return err
}
