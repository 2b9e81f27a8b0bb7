package store

import (
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Errors callers are expected to match with errors.Is.
var (
	ErrUnitNotFound    = errors.New("unit not found")
	ErrUnitUnavailable = errors.New("unit is already on loan")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrLoanReturned    = errors.New("loan already returned")
	ErrEventNotFound   = errors.New("event not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrTokenNotFound   = errors.New("recovery token not found")
	ErrTokenExpired    = errors.New("recovery token expired")
	ErrTokenUsed       = errors.New("recovery token already used")
)

// dialect builds the dynamic queries.
var dialect = goqu.Dialect("sqlite3")

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
