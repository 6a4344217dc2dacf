package storage

import (
	"context"
	"io"
)

// Object describes an upload destination.
type Object struct {
	Key         string
	ContentType string
	Body        io.Reader
}

// Service stores publicly served user uploads such as avatars.
type Service interface {
	PutObject(ctx context.Context, obj Object) error
	DeleteObject(ctx context.Context, key string) error
	// PublicURL returns the address clients use to fetch the object.
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL. It reports false for URLs this store did not produce.
	KeyFromURL(url string) (string, bool)
}
