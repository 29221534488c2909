// Package blob abstracts the durable object containers the pipeline lands
// batches in and archives them to. Implementations exist for S3 buckets and
// local directories; tests use the in-memory store from internal/testutil.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Delete when the object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store is an object container. Keys are flat names; objects are immutable
// once written except that Put overwrites an existing key.
type Store interface {
	// Put writes the object under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the full content of the object, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys with the given prefix, sorted lexicographically.
	List(ctx context.Context, prefix string) ([]string, error)
}
