package field

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"stash/internal/logging"
	"stash/internal/storage"
	"stash/internal/upload"
)

// FileType is the column type for arbitrary files.
type FileType struct {
	backend storage.Backend
}

// NewFileType returns a FileType storing into b.
func NewFileType(b storage.Backend) *FileType {
	return &FileType{backend: b}
}

func (t *FileType) Backend() storage.Backend { return t.backend }

// Bind saves src and returns the value to assign to the column. An empty
// upload yields Absent without touching the backend.
func (t *FileType) Bind(ctx context.Context, src upload.Source) (Value[*StoredFile], error) {
	name, ok, err := t.save(ctx, src)
	if err != nil || !ok {
		return Value[*StoredFile]{}, err
	}
	return Stored(newStoredFile(name, t.backend)), nil
}

// Load rebuilds a value from a persisted name. It does not validate.
func (t *FileType) Load(name string) Value[*StoredFile] {
	if name == "" {
		return Value[*StoredFile]{}
	}
	return Stored(newStoredFile(name, t.backend))
}

// Column returns a scanner that loads the column into dst.
func (t *FileType) Column(dst *Value[*StoredFile]) sql.Scanner {
	return column[*StoredFile]{dst: dst, load: t.Load}
}

func (t *FileType) save(ctx context.Context, src upload.Source) (string, bool, error) {
	payload, ok, err := upload.Normalize(src)
	if err != nil || !ok {
		return "", false, err
	}

	name, err := storage.AvailableName(ctx, t.backend, payload.Filename)
	if err != nil {
		return "", false, fmt.Errorf("resolve name for %q: %w", payload.Filename, err)
	}
	saved, err := t.backend.Save(ctx, name, payload.Reader)
	if err != nil {
		return "", false, err
	}

	logging.Debug("file stored",
		zap.String("filename", payload.Filename),
		zap.String("name", saved))
	return saved, true, nil
}

// column adapts a Value pointer to sql.Scanner.
type column[F Descriptor] struct {
	dst  *Value[F]
	load func(string) Value[F]
}

func (c column[F]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dst = Value[F]{}
	case string:
		*c.dst = c.load(v)
	case []byte:
		*c.dst = c.load(string(v))
	default:
		return fmt.Errorf("field: cannot scan %T into a file column", src)
	}
	return nil
}
