package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a query or mutation matches no rows.
	ErrNotFound = errors.New("db: record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("db: duplicate key")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("db: foreign key violation")

	// ErrDeadlock is returned when the database detects a deadlock or lock contention.
	ErrDeadlock = errors.New("db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("db: query timeout")

	// ErrCheckViolation is returned when a CHECK constraint is violated or a
	// value does not fit its column.
	ErrCheckViolation = errors.New("db: check constraint violation")

	// ErrConnectionFailed is returned when the driver cannot reach the server.
	ErrConnectionFailed = errors.New("db: connection failed")
)

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool        { return errors.Is(err, ErrDuplicateKey) }
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func IsDeadlock(err error) bool            { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func IsCheckViolation(err error) bool      { return errors.Is(err, ErrCheckViolation) }
func IsConnectionFailed(err error) bool    { return errors.Is(err, ErrConnectionFailed) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError — rich error type preserving original driver error
// ─────────────────────────────────────────────────────────────────────────────

// DBError pairs a sentinel with the original driver error so callers can use
// errors.Is(err, ErrDuplicateKey) or inspect Cause for detail.
type DBError struct {
	// Sentinel is one of the package-level Err* variables.
	Sentinel error
	// Cause is the original driver error.
	Cause error
	// Message is an optional human-readable hint.
	Message string
}

func (e *DBError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Sentinel, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (cause: %v)", e.Sentinel, e.Cause)
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates raw driver errors into the package sentinels.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc adapts a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// DefaultErrorMapper handles lib/pq, pgx, MySQL and SQLite errors. Open uses
// the narrower mapper of a registered Driver when there is one.
func DefaultErrorMapper() ErrorMapper {
	return newErrorMapper(mapPQError, mapPGXError, mapMySQLError, mapSQLiteError)
}

// newErrorMapper handles the driver-independent cases and then tries each
// driver-specific mapping in order. A mapping returns nil when the error is
// not one of its own.
func newErrorMapper(driverMaps ...func(error) error) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil {
			return nil
		}

		if errors.Is(err, sql.ErrNoRows) {
			return &DBError{Sentinel: ErrNotFound, Cause: err}
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &DBError{Sentinel: ErrTimeout, Cause: err}
		}

		// Already mapped; do not double-wrap.
		var dbe *DBError
		if errors.As(err, &dbe) {
			return err
		}

		for _, m := range driverMaps {
			if mapped := m(err); mapped != nil {
				return mapped
			}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq, pgx)
// ─────────────────────────────────────────────────────────────────────────────

func mapPQError(err error) error {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return mapByPGCode(string(pqe.Code), err)
	}
	return mapByPGCode(pqCodeFromString(err.Error()), err)
}

// pqCodeFromString recovers a SQLSTATE from messages that were flattened to
// text by an intermediate layer ("... (SQLSTATE 23505)").
func pqCodeFromString(s string) string {
	const marker = "(SQLSTATE "
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(marker):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func mapPGXError(err error) error {
	// pgconn.PgError from pgx v5.
	type pgxErr interface {
		SQLState() string
	}
	var pge pgxErr
	if !errors.As(err, &pge) {
		return nil
	}
	return mapByPGCode(pge.SQLState(), err)
}

func mapByPGCode(code string, cause error) error {
	switch code {
	case pgerrcode.UniqueViolation:
		return &DBError{Sentinel: ErrDuplicateKey, Cause: cause}
	case pgerrcode.ForeignKeyViolation:
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: cause}
	case pgerrcode.CheckViolation, pgerrcode.StringDataRightTruncationDataException, pgerrcode.NotNullViolation:
		return &DBError{Sentinel: ErrCheckViolation, Cause: cause}
	case pgerrcode.DeadlockDetected:
		return &DBError{Sentinel: ErrDeadlock, Cause: cause}
	case pgerrcode.QueryCanceled:
		return &DBError{Sentinel: ErrTimeout, Cause: cause}
	case pgerrcode.CannotConnectNow:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: cause}
	}
	if pgerrcode.IsConnectionException(code) {
		return &DBError{Sentinel: ErrConnectionFailed, Cause: cause}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case 1062: // ER_DUP_ENTRY
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case 1452, 1216, 1217: // ER_NO_REFERENCED_ROW, ER_ROW_IS_REFERENCED
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case 3819, 1406, 1048: // ER_CHECK_CONSTRAINT_VIOLATED, ER_DATA_TOO_LONG, ER_BAD_NULL_ERROR
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case 3024: // ER_QUERY_TIMEOUT
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case 1045, 2002, 2003, 2006, 2013:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (string-based)
// ─────────────────────────────────────────────────────────────────────────────

func mapSQLiteError(err error) error {
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint failed"):
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case strings.Contains(s, "FOREIGN KEY constraint failed"):
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case strings.Contains(s, "CHECK constraint failed"), strings.Contains(s, "NOT NULL constraint failed"):
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case strings.Contains(s, "database is locked"):
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case strings.Contains(s, "unable to open database file"):
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}
