package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCleanName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "image.png", "image.png"},
		{"spaces", "my  holiday photo.jpg", "my_holiday_photo.jpg"},
		{"unix path", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\avatar.gif`, "avatar.gif"},
		{"accents folded", "café.png", "cafe.png"},
		{"symbols dropped", "re$ume(final)!.pdf", "reumefinal.pdf"},
		{"leading dots trimmed", "..hidden.txt", "hidden.txt"},
		{"only non ascii", "日本", "_"},
		{"non ascii stem keeps extension", "фото.png", "_.png"},
		{"bare extension", ".png", "_.png"},
		{"already fallback", "_.png", "_.png"},
		{"trailing dot", "фото.", "_"},
		{"empty", "", "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanName(tt.in); got != tt.want {
				t.Fatalf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in        string
		stem, ext string
	}{
		{"image.png", "image", ".png"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".png", "_", ".png"},
	}
	for _, tt := range tests {
		stem, ext := splitName(tt.in)
		if stem != tt.stem || ext != tt.ext {
			t.Fatalf("splitName(%q) = %q, %q; want %q, %q", tt.in, stem, ext, tt.stem, tt.ext)
		}
	}
}

func TestAvailableName_CountsUpDeterministically(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	want := []string{"image.png", "image_1.png", "image_2.png", "image_3.png"}
	for i, w := range want {
		name, err := AvailableName(ctx, fs, "image.png")
		if err != nil {
			t.Fatalf("AvailableName() #%d error = %v", i, err)
		}
		if name != w {
			t.Fatalf("AvailableName() #%d = %q, want %q", i, name, w)
		}
		if _, err := fs.Save(ctx, name, strings.NewReader("x")); err != nil {
			t.Fatalf("Save(%q) error = %v", name, err)
		}
	}
}

func TestAvailableName_FillsGaps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	for _, n := range []string{"doc.txt", "doc_2.txt"} {
		if _, err := fs.Save(ctx, n, strings.NewReader("x")); err != nil {
			t.Fatalf("Save(%q) error = %v", n, err)
		}
	}
	name, err := AvailableName(ctx, fs, "doc.txt")
	if err != nil {
		t.Fatalf("AvailableName() error = %v", err)
	}
	if name != "doc_1.txt" {
		t.Fatalf("AvailableName() = %q, want %q", name, "doc_1.txt")
	}
}

func TestAvailableName_NoExtension(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := newTestFileSystem(t)

	if _, err := fs.Save(ctx, "Makefile", strings.NewReader("all:")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	name, err := AvailableName(ctx, fs, "Makefile")
	if err != nil {
		t.Fatalf("AvailableName() error = %v", err)
	}
	if name != "Makefile_1" {
		t.Fatalf("AvailableName() = %q, want %q", name, "Makefile_1")
	}
}

type existsErrorBackend struct{ *FileSystem }

func (existsErrorBackend) Exists(context.Context, string) (bool, error) {
	return false, errors.New("backend unreachable")
}

func TestAvailableName_ProbeError(t *testing.T) {
	t.Parallel()
	b := existsErrorBackend{newTestFileSystem(t)}
	if _, err := AvailableName(context.Background(), b, "a.txt"); err == nil {
		t.Fatalf("AvailableName() error = nil, want non-nil")
	}
}
