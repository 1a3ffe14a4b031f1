package db

import (
	"strings"

	"github.com/teranos/vgate/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
// Batch runs may still be tracking usage when the CLI closes the database on exit.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The sql driver returns its own error values, so raw messages are matched as a fallback.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	return strings.Contains(err.Error(), "database is closed")
}
