package upload

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalize_NoFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  Source
	}{
		{"nil source", nil},
		{"empty filename", New(strings.NewReader("content"), "")},
		{"blank filename", New(strings.NewReader("content"), "   ")},
		{"empty stream", New(strings.NewReader(""), "image.png")},
		{"nil stream", New(nil, "image.png")},
		{"empty stream and filename", New(bytes.NewReader(nil), "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok, err := Normalize(tt.src)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if ok {
				t.Fatalf("Normalize() ok = true, want false")
			}
		})
	}
}

func TestNormalize_PassesFullContentThrough(t *testing.T) {
	t.Parallel()
	data := strings.Repeat("0123456789", 1000)
	p, ok, err := Normalize(New(strings.NewReader(data), "digits.txt"))
	if err != nil || !ok {
		t.Fatalf("Normalize() = %v, %v; want ok", ok, err)
	}
	if p.Filename != "digits.txt" {
		t.Fatalf("Filename = %q, want digits.txt", p.Filename)
	}
	got, err := io.ReadAll(p.Reader)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(got) != data {
		t.Fatalf("payload length = %d, want %d", len(got), len(data))
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestNormalize_ReadError(t *testing.T) {
	t.Parallel()
	if _, _, err := Normalize(New(brokenReader{}, "a.bin")); err == nil {
		t.Fatalf("Normalize() error = nil, want non-nil")
	}
}

func parseMultipart(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	_, fh, err := req.FormFile("file")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	return fh
}

func TestFromFileHeader(t *testing.T) {
	t.Parallel()
	fh := parseMultipart(t, "notes.txt", []byte("remember the milk"))

	src, err := FromFileHeader(fh)
	if err != nil {
		t.Fatalf("FromFileHeader() error = %v", err)
	}
	defer src.Close()

	p, ok, err := Normalize(src)
	if err != nil || !ok {
		t.Fatalf("Normalize() = %v, %v; want ok", ok, err)
	}
	got, _ := io.ReadAll(p.Reader)
	if string(got) != "remember the milk" || p.Filename != "notes.txt" {
		t.Fatalf("payload = %q (%q), want content and notes.txt", got, p.Filename)
	}
}

func TestFromFileHeader_EmptyPart(t *testing.T) {
	t.Parallel()
	fh := parseMultipart(t, "empty.png", nil)

	src, err := FromFileHeader(fh)
	if err != nil {
		t.Fatalf("FromFileHeader() error = %v", err)
	}
	defer src.Close()
	if _, ok, _ := Normalize(src); ok {
		t.Fatalf("Normalize() ok = true for empty part, want false")
	}

	nilSrc, err := FromFileHeader(nil)
	if err != nil {
		t.Fatalf("FromFileHeader(nil) error = %v", err)
	}
	if _, ok, _ := Normalize(nilSrc); ok {
		t.Fatalf("Normalize() ok = true for nil header, want false")
	}
}
