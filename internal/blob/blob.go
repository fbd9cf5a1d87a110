package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under the requested id.
var ErrNotFound = errors.New("blob not found")

// Object is a stored binary payload with its content type.
type Object struct {
	ContentType string
	Data        []byte
}

// Store holds image bytes outside of the participant record.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, id string) (*Object, error)
	Delete(ctx context.Context, id string) error
}
