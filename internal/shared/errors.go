package shared

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig    = fmt.Errorf("configuration not found")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrDuplicateTrigger = fmt.Errorf("duplicate trigger name")
	ErrUnboundTrigger   = fmt.Errorf("no handler bound to trigger")
	ErrUnknownPlayer    = fmt.Errorf("unknown media player")

	// Mapping errors
	ErrUnmappedID      = fmt.Errorf("no remote id mapped for local id")
	ErrMappingConflict = fmt.Errorf("mapping already exists")

	// ErrLocalOutdated is raised by a handler that expected to find local data and did not.
	// It usually means the remote object the handler meant to touch is already gone.
	ErrLocalOutdated = fmt.Errorf("local data is outdated")

	// Remote service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsTransientStorage reports whether err is a SQLite error that may succeed on retry (busy or locked database).
func IsTransientStorage(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
