// Package objstore adapts an S3-compatible object store behind a small
// interface with a normalized error vocabulary: missing keys wrap
// common.ErrNotFound, retryable backend trouble wraps common.ErrTransient,
// anything else is permanent.
package objstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is the object-store capability set the coordinator depends on.
type Store interface {
	// Put writes size bytes from body at key, overwriting any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Get opens the object at key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Head returns metadata for the object at key without fetching bytes.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns info for every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
