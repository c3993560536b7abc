// Package errs defines the error kinds shared across the SDK.
//
// Three kinds exist: invalid caller input (ErrInvalidArgument), values that
// cannot be cast to their declared column type (CoercionError), and failures
// surfaced by the database driver (DatabaseError). The first two are raised
// before any database work begins so that malformed input never causes a
// partial write.
package errs

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidArgument is the sentinel for malformed caller input: mismatched
// column/type counts, missing companion arguments, conflicting flags.
// Wrap it with fmt.Errorf("%w: ...") and test with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentf wraps ErrInvalidArgument with a formatted detail message.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CoercionError reports a value that could not be cast to its declared
// column type. Row is zero-based within the batch.
type CoercionError struct {
	Column string
	Row    int
	Value  any
	Target string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce column %q row %d: cannot cast %v (%T) to %s: %v",
		e.Column, e.Row, e.Value, e.Value, e.Target, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// DatabaseError wraps a failure surfaced by the driver, annotated with the
// operation and target table for log correlation.
type DatabaseError struct {
	Op    string
	Table string
	Err   error
}

func (e *DatabaseError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Database wraps err as a *DatabaseError unless it already is one or carries
// one of the caller-input kinds, which propagate unchanged.
func Database(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	var coErr *CoercionError
	if errors.Is(err, ErrInvalidArgument) || errors.As(err, &coErr) {
		return err
	}
	return &DatabaseError{Op: op, Table: table, Err: err}
}

// Postgres SQLSTATE codes used for classification.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Conflicts handled by an ON CONFLICT clause never surface here;
// this catches the ones that fall outside the declared conflict target.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// IsNotNullViolation reports whether err is a not-null violation.
func IsNotNullViolation(err error) bool {
	return pgCode(err) == codeNotNullViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
