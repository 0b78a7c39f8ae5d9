// Package storage defines the document store the persistence layer writes to.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document has never been written.
var ErrNotFound = errors.New("document not found")

// Backend reads and writes whole named documents.
type Backend interface {
	// Read returns the document body or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write replaces the document body.
	Write(ctx context.Context, name string, data []byte) error
	// Close releases the backend's resources.
	Close() error
}
