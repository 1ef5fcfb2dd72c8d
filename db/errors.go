package db

import (
	"strings"

	"github.com/meridian-hq/ABMX/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a
// closed database. This happens during shutdown when the connection is
// closed while the scheduler still has a sweep in flight.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether an error indicates the database
// connection is closed. It recognizes both wrapped ErrDatabaseClosed
// and the raw driver message, which the sql package produces itself
// and cannot be wrapped at the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	return strings.Contains(err.Error(), "database is closed")
}
