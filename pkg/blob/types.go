package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the archive backend for topology snapshots.
type BlobStore interface {
	// Put uploads content under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves content for a key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns all keys under the prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob.
	Delete(ctx context.Context, key string) error
}
