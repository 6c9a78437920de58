package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when metadata or content is requested for a
	// name that is not present in the backend.
	ErrNotFound = errors.New("storage: object not found")

	// ErrWrite is returned when the underlying medium rejects a write.
	ErrWrite = errors.New("storage: write failed")

	// ErrNameCollision is returned by Save when the target name already
	// exists. Callers may retry with a different desired name.
	ErrNameCollision = errors.New("storage: name already taken")

	// ErrInvalidName is returned for names that are not a single flat path
	// element.
	ErrInvalidName = errors.New("storage: invalid name")
)

// Backend is the capability set every storage variant implements.
// Names are flat: no directory component.
type Backend interface {
	// Exists reports whether an object with the given name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Save persists the full contents of r under name and returns the name
	// actually used. It never overwrites an existing object.
	Save(ctx context.Context, name string, r io.Reader) (string, error)

	// Size returns the byte length of the named object.
	Size(ctx context.Context, name string) (int64, error)

	// Path returns the absolute location or public URL for name. It is a
	// pure function of name and backend configuration.
	Path(name string) string

	// Open returns a reader over the named object. The caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Deleter is implemented by backends that can remove objects.
// Deleting a missing object is not an error.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

// Delete removes name from b when b supports deletion. It reports whether
// the backend was able to try.
func Delete(ctx context.Context, b Backend, name string) (bool, error) {
	d, ok := b.(Deleter)
	if !ok {
		return false, nil
	}
	return true, d.Delete(ctx, name)
}
