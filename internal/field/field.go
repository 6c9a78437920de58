// Package field binds uploaded files to database columns.
//
// A column holds only the stored name. Binding an upload saves its bytes
// to a storage.Backend under a collision-free name and yields a Value;
// loading a row rebuilds the descriptor from the name without touching the
// backend. Size and path are always recomputed from the backend.
package field

import (
	"context"
	"database/sql/driver"
	"io"

	"stash/internal/storage"
)

// Descriptor is what a Value holds when a file is present.
type Descriptor interface {
	Name() string
}

// Value is either absent or a stored file. The zero value is absent.
type Value[F Descriptor] struct {
	file  F
	valid bool
}

// Absent returns the empty value.
func Absent[F Descriptor]() Value[F] {
	return Value[F]{}
}

// Stored wraps f. A descriptor without a name collapses to Absent.
func Stored[F Descriptor](f F) Value[F] {
	if f.Name() == "" {
		return Value[F]{}
	}
	return Value[F]{file: f, valid: true}
}

// Get returns the descriptor and whether one is present.
func (v Value[F]) Get() (F, bool) {
	return v.file, v.valid
}

func (v Value[F]) IsAbsent() bool { return !v.valid }

// Name returns the stored name, or "" when absent.
func (v Value[F]) Name() string {
	if !v.valid {
		return ""
	}
	return v.file.Name()
}

func (v Value[F]) String() string {
	if !v.valid {
		return "<absent>"
	}
	return v.file.Name()
}

// Value implements driver.Valuer: the stored name, or NULL when absent.
func (v Value[F]) Value() (driver.Value, error) {
	if !v.valid {
		return nil, nil
	}
	return v.file.Name(), nil
}

// StoredFile describes a file saved in a backend.
type StoredFile struct {
	name    string
	backend storage.Backend
}

func newStoredFile(name string, b storage.Backend) *StoredFile {
	return &StoredFile{name: name, backend: b}
}

func (f *StoredFile) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Size asks the backend for the current byte length.
func (f *StoredFile) Size(ctx context.Context) (int64, error) {
	return f.backend.Size(ctx, f.name)
}

// Path returns the backend path or URL for the file.
func (f *StoredFile) Path() string {
	return f.backend.Path(f.name)
}

// Open returns the stored bytes. The caller must close the reader.
func (f *StoredFile) Open(ctx context.Context) (io.ReadCloser, error) {
	return f.backend.Open(ctx, f.name)
}
