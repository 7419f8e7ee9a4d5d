package bench

import (
	"errors"
	"fmt"

	"blobbench/internal/database"
)

// ErrInvalidName is returned when a run is requested for an empty name.
var ErrInvalidName = errors.New("name must not be empty")

// ObjectStoreError reports a failure on the object-store path. It aborts the
// run it occurs in.
type ObjectStoreError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectStoreError) Error() string {
	return fmt.Sprintf("object store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectStoreError) Unwrap() error {
	return e.Err
}

// RelationalStoreError reports a failure on the relational path. Runs keep
// it in Result.Relational.Err instead of returning it.
type RelationalStoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *RelationalStoreError) Error() string {
	return fmt.Sprintf("relational store %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *RelationalStoreError) Unwrap() error {
	return e.Err
}

// Cause returns a short human-readable explanation suitable for display.
func (e *RelationalStoreError) Cause() string {
	switch {
	case errors.Is(e.Err, database.ErrPayloadTooLarge):
		return "payload exceeds the relational store's maximum blob size (max_allowed_packet or configured limit)"
	case errors.Is(e.Err, database.ErrNotFound):
		return fmt.Sprintf("no row named %q in the relational store", e.Name)
	default:
		return e.Err.Error()
	}
}
