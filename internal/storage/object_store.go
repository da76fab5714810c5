package storage

import (
	"context"
	"io"
)

// ObjectStore receives finished job archives.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	// DeleteObjects removes every object whose key starts with prefix.
	DeleteObjects(ctx context.Context, prefix string) error
}
