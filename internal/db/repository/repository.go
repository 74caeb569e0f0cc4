package repository

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx so that repository
// methods can run inside a caller-owned transaction when an operation
// must be atomic (approval transition plus QR issuance).
type Queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// IsUniqueViolation reports whether err is a SQLite unique constraint
// failure. The QR coordinator relies on this to turn an insert race into
// a fetch of the already-issued record.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
