package errorz

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConstraintViolated = errors.New("constraint violated")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrTooManyRequests    = errors.New("too many requests")
)

// MapDBErr maps database errors to appropriate errorz errors.
// Both supported SQLite drivers are recognized.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	cgoErr := sqlite3.Error{}
	if errors.As(err, &cgoErr) {
		if cgoErr.Code == sqlite3.ErrConstraint {
			return errors.Join(ErrConstraintViolated, err)
		}
	}

	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		// Extended result codes carry the primary code in the lowest byte.
		if pureErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT {
			return errors.Join(ErrConstraintViolated, err)
		}
	}

	return err
}
