// Package storage archives finished video assets. Local disk is the
// default; S3 is used when an archive bucket is configured.
package storage

import (
	"context"
	"io"
)

type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	// GetObject returns a reader for the stored object; the caller closes it.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	DeleteObject(ctx context.Context, key string) error
}
