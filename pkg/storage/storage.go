package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers must not assume a write succeeded when they receive it.
var ErrUnavailable = errors.New("store unavailable")

// Storage provides an abstraction over key-value style document storage.
// Every call is a potentially blocking I/O operation and honors ctx
// cancellation and deadlines.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Move relocates a record from src to dst, overwriting dst if present.
	// Repositories use it to move records between a live collection and its
	// archive counterpart.
	Move(ctx context.Context, src, dst string) error
}
