package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tulisin/apperr"
)

// failure is the vendor-neutral category of a storage error.
type failure int

const (
	failureUnknown failure = iota
	failureUnique
	failureForeignKey
	failureNotNull
	failureCheck
	failureMissingTable
	failureMissingColumn
	failureConnection
)

var failureMessages = map[failure]string{
	failureUnique:        "A record with this information already exists",
	failureForeignKey:    "Referenced record does not exist",
	failureNotNull:       "Required field is missing",
	failureCheck:         "Data violates database constraints",
	failureMissingTable:  "Database table not found",
	failureMissingColumn: "Database column not found",
	failureConnection:    "Database connection error",
}

// MySQL server error numbers.
const (
	mysqlDupEntry          = 1062
	mysqlDupEntryWithKey   = 1586
	mysqlNoReferencedRow   = 1216
	mysqlRowIsReferenced   = 1217
	mysqlRowIsReferenced2  = 1451
	mysqlNoReferencedRow2  = 1452
	mysqlBadNull           = 1048
	mysqlNoDefaultForField = 1364
	mysqlCheckViolated     = 3819
	mysqlNoSuchTable       = 1146
	mysqlBadField          = 1054
)

// classify turns a driver error into an *apperr.Error. Errors that are
// already typed are returned as is.
func classify(err error, query string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.From(err); ok {
		return err
	}

	kind, vendorCode := categorize(err)

	log.Error().
		Err(err).
		Str("query", compactQuery(query)).
		Str("code", vendorCode).
		Msg("Database error")

	details := map[string]any{}
	if vendorCode != "" {
		details["vendorCode"] = vendorCode
	}

	switch kind {
	case failureUnique:
		conflict := apperr.Conflict(failureMessages[kind])
		conflict.Details = details
		return conflict.WithCause(err)
	case failureForeignKey, failureNotNull, failureCheck:
		return apperr.BadRequest(failureMessages[kind], details).WithCause(err)
	case failureMissingTable, failureMissingColumn, failureConnection:
		return apperr.Internal(failureMessages[kind], details).WithCause(err)
	default:
		details["originalError"] = err.Error()
		return apperr.Internal("Database operation failed", details).WithCause(err)
	}
}

func categorize(err error) (failure, string) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return categorizeMySQL(myErr.Number), strconv.Itoa(int(myErr.Number))
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return categorizeSQLite(liteErr.Code(), liteErr.Error()), strconv.Itoa(liteErr.Code())
	}

	if isConnectionError(err) {
		return failureConnection, ""
	}
	return failureUnknown, ""
}

func categorizeMySQL(number uint16) failure {
	switch number {
	case mysqlDupEntry, mysqlDupEntryWithKey:
		return failureUnique
	case mysqlNoReferencedRow, mysqlRowIsReferenced, mysqlRowIsReferenced2, mysqlNoReferencedRow2:
		return failureForeignKey
	case mysqlBadNull, mysqlNoDefaultForField:
		return failureNotNull
	case mysqlCheckViolated:
		return failureCheck
	case mysqlNoSuchTable:
		return failureMissingTable
	case mysqlBadField:
		return failureMissingColumn
	}
	return failureUnknown
}

func categorizeSQLite(code int, msg string) failure {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return failureUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return failureForeignKey
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return failureNotNull
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return failureCheck
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
		return failureConnection
	}
	// without extended codes, and for plain SQLITE_ERROR, only the message tells
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return failureUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return failureForeignKey
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return failureNotNull
	case strings.Contains(msg, "no such table"):
		return failureMissingTable
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
		return failureMissingColumn
	}
	return failureUnknown
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
