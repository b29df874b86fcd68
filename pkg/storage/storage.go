package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// Object is a stored blob and its content type
type Object struct {
	Body        []byte
	ContentType string
}

// ObjectStore reads and writes blobs addressed by bucket and key
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (*Object, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
