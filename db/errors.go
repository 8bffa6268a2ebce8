package db

import (
	"strings"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// ErrDatabaseClosed marks writes that raced a tenant database being closed
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed matches ErrDatabaseClosed anywhere in the chain, or the
// driver's own message, which database/sql returns unwrapped.
func IsDatabaseClosed(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDatabaseClosed):
		return true
	default:
		return strings.Contains(err.Error(), "database is closed")
	}
}
