package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFileSystem(t *testing.T) *FileSystem {
	t.Helper()
	fs, err := NewFileSystem(filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatalf("NewFileSystem() error = %v", err)
	}
	return fs
}

func TestFileSystem_SaveOpenRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	data := []byte("Hello, World! This is test file data.\x00\xff")
	name, err := fs.Save(ctx, "hello.bin", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if name != "hello.bin" {
		t.Fatalf("Save() name = %q, want %q", name, "hello.bin")
	}

	rc, err := fs.Open(ctx, name)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip = %q, want %q", got, data)
	}

	size, err := fs.Size(ctx, name)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != int64(len(data)) {
		t.Fatalf("Size() = %d, want %d", size, len(data))
	}
}

func TestFileSystem_CreatesRootOnFirstWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	if _, err := os.Stat(fs.Root()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("root exists before first write, stat err = %v", err)
	}
	if _, err := fs.Save(ctx, "a.txt", strings.NewReader("a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.Root(), "a.txt")); err != nil {
		t.Fatalf("stat saved file: %v", err)
	}
}

func TestFileSystem_SaveNeverOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	if _, err := fs.Save(ctx, "same.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	_, err := fs.Save(ctx, "same.txt", strings.NewReader("second"))
	if !errors.Is(err, ErrNameCollision) {
		t.Fatalf("second Save() error = %v, want ErrNameCollision", err)
	}

	got, err := os.ReadFile(fs.Path("same.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("content = %q, want %q", got, "first")
	}
}

func TestFileSystem_NoLeftoverTempFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	if _, err := fs.Save(ctx, "x.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_, _ = fs.Save(ctx, "x.txt", strings.NewReader("y"))

	entries, err := os.ReadDir(filepath.Join(fs.Root(), tmpDirName))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("tmp dir has %d entries, want 0", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestFileSystem_SaveWriteErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	_, err := fs.Save(ctx, "broken.txt", failingReader{})
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Save() error = %v, want ErrWrite", err)
	}
	if ok, _ := fs.Exists(ctx, "broken.txt"); ok {
		t.Fatalf("half-written file is visible under its final name")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fs.Save(cancelled, "late.txt", strings.NewReader("late"))
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Save() with cancelled ctx error = %v, want ErrWrite", err)
	}
}

func TestFileSystem_MissingObjects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	ok, err := fs.Exists(ctx, "nope.png")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v; want false, nil", ok, err)
	}
	if _, err := fs.Size(ctx, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Size() error = %v, want ErrNotFound", err)
	}
	if _, err := fs.Open(ctx, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
	if err := fs.Delete(ctx, "nope.png"); err != nil {
		t.Fatalf("Delete() missing error = %v", err)
	}
}

func TestFileSystem_RejectsNestedNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	for _, name := range []string{"", ".", "..", "../escape.txt", "a/b.txt", `a\b.txt`} {
		if _, err := fs.Save(ctx, name, strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := fs.Open(ctx, name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Open(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestFileSystem_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	if _, err := fs.Save(ctx, "gone.txt", strings.NewReader("bye")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	tried, err := Delete(ctx, fs, "gone.txt")
	if !tried || err != nil {
		t.Fatalf("Delete() = %v, %v; want true, nil", tried, err)
	}
	if ok, _ := fs.Exists(ctx, "gone.txt"); ok {
		t.Fatalf("file still exists after Delete")
	}
}

func TestFileSystem_PathIsPure(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	a, err := NewFileSystem(root)
	if err != nil {
		t.Fatalf("NewFileSystem() error = %v", err)
	}
	b, err := NewFileSystem(root)
	if err != nil {
		t.Fatalf("NewFileSystem() error = %v", err)
	}

	want := filepath.Join(root, "image.png")
	if got := a.Path("image.png"); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
	if a.Path("image.png") != b.Path("image.png") {
		t.Fatalf("Path() differs between backends with the same root")
	}
	if _, err := os.Stat(want); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Path() touched the medium, stat err = %v", err)
	}
}
