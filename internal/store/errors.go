package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a playlist or content item does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageFull is returned when the database rejects a write for lack
// of space, so callers can surface a quota error instead of a generic
// failure.
var ErrStorageFull = errors.New("storage quota exceeded")

// Postgres SQLSTATE classes for exhausted storage.
const (
	sqlstateDiskFull       = "53100"
	sqlstateOutOfMemory    = "53200"
	sqlstateConfiguredFull = "53400"
)

// translateErr maps low-level driver errors onto the package sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateDiskFull, sqlstateOutOfMemory, sqlstateConfiguredFull:
			return fmt.Errorf("%w: %s", ErrStorageFull, pgErr.Message)
		}
	}
	return err
}
