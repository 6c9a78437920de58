package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// tmpDirName holds in-flight writes. It lives under the root so the final
// link or rename stays on one filesystem.
const tmpDirName = ".tmp"

// FileSystem stores objects as files directly under a root directory.
type FileSystem struct {
	root string
}

var (
	_ Backend = (*FileSystem)(nil)
	_ Deleter = (*FileSystem)(nil)
)

// NewFileSystem returns a backend rooted at root. The directory is created
// on first write.
func NewFileSystem(root string) (*FileSystem, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &FileSystem{root: abs}, nil
}

// Root returns the absolute root directory.
func (fs *FileSystem) Root() string { return fs.root }

func (fs *FileSystem) Path(name string) string {
	return filepath.Join(fs.root, name)
}

func (fs *FileSystem) Exists(_ context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, nil
	}
	_, err := os.Lstat(fs.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Save writes r to a temp file and publishes it under name with a hard
// link, which fails if name already exists. On filesystems without hard
// links it falls back to stat followed by rename.
func (fs *FileSystem) Save(ctx context.Context, name string, r io.Reader) (saved string, err error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	tmpDir := filepath.Join(fs.root, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create tmp dir: %w", ErrWrite, err)
	}

	tmpFile, err := os.CreateTemp(tmpDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: create tmp file: %w", ErrWrite, err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmpFile, contextReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrWrite, name, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return "", fmt.Errorf("%w: sync %s: %w", ErrWrite, name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("%w: close tmp file: %w", ErrWrite, err)
	}

	final := fs.Path(name)
	linkErr := os.Link(tmpName, final)
	if linkErr == nil {
		return name, nil
	}
	if errors.Is(linkErr, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrNameCollision, name)
	}

	if _, statErr := os.Lstat(final); statErr == nil {
		return "", fmt.Errorf("%w: %s", ErrNameCollision, name)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("%w: move %s: %w", ErrWrite, name, err)
	}
	return name, nil
}

func (fs *FileSystem) Size(_ context.Context, name string) (int64, error) {
	if !validName(name) {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	info, err := os.Stat(fs.Path(name))
	if err != nil {
		return 0, fs.readErr(name, err)
	}
	return info.Size(), nil
}

func (fs *FileSystem) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	f, err := os.Open(fs.Path(name))
	if err != nil {
		return nil, fs.readErr(name, err)
	}
	return f, nil
}

func (fs *FileSystem) Delete(_ context.Context, name string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.Remove(fs.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (fs *FileSystem) readErr(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("open %s: %w", name, err)
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
