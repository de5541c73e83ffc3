package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// StatementError ties a store failure to the statement that caused it.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return e.Err.Error()
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// DriverDetail extracts the driver-level code and detail from err, or ""
// when err carries no recognised driver error.
func DriverDetail(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("mysql error %d: %s", myErr.Number, myErr.Message)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail := fmt.Sprintf("postgres error %s: %s", pgErr.Code, pgErr.Message)
		if pgErr.Detail != "" {
			detail += " (" + pgErr.Detail + ")"
		}
		if pgErr.Hint != "" {
			detail += " hint: " + pgErr.Hint
		}
		return detail
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return fmt.Sprintf("sqlite error %d", liteErr.Code())
	}

	return ""
}

// Describe renders err for an operator log line: the message, the nested
// driver error when it adds anything, and the failing statement.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if detail := DriverDetail(err); detail != "" && !strings.Contains(msg, detail) {
		msg += " [" + detail + "]"
	}

	var stmtErr *StatementError
	if errors.As(err, &stmtErr) {
		msg += "; statement: " + oneLine(stmtErr.Statement)
	}
	return msg
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
