package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when the requested key does not exist in the
// object store.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the interface for a key-addressed blob store used as
// the "unstructured" side of a benchmark.
type ObjectStore interface {
	// Put stores data under key, overwriting any existing object. An empty
	// contentType lets the backend pick its default.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves the payload previously stored under key. It returns
	// ErrObjectNotFound if there is no such key.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns every key in the store, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes the object stored under key. It returns
	// ErrObjectNotFound if the key was already absent.
	Delete(ctx context.Context, key string) error
}
