// Package upload normalizes uploaded files into a (reader, filename) pair
// and is the single place that decides what counts as "no file".
package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

// Source is anything that exposes a byte stream and a client filename.
type Source interface {
	Filename() string
	Reader() io.Reader
}

// File is the plain Source implementation.
type File struct {
	Name string
	Body io.Reader
}

func (f File) Filename() string  { return f.Name }
func (f File) Reader() io.Reader { return f.Body }

// New pairs r with filename.
func New(r io.Reader, filename string) File {
	return File{Name: filename, Body: r}
}

// Payload is a non-empty upload ready for saving. Reader yields the full
// original content and must be read exactly once.
type Payload struct {
	Filename string
	Reader   io.Reader
}

// Normalize turns src into a Payload. ok is false when there is no file:
// a nil source, an empty filename, a nil stream or a stream with zero bytes.
func Normalize(src Source) (p Payload, ok bool, err error) {
	if src == nil {
		return Payload{}, false, nil
	}
	filename := strings.TrimSpace(src.Filename())
	if filename == "" {
		return Payload{}, false, nil
	}
	r := src.Reader()
	if r == nil {
		return Payload{}, false, nil
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return Payload{}, false, nil
		}
		return Payload{}, false, fmt.Errorf("read upload %q: %w", filename, err)
	}
	return Payload{Filename: filename, Reader: br}, true, nil
}

// Multipart adapts a multipart file header, as handed out by echo's
// FormFile, into a Source. Close releases the opened part.
type Multipart struct {
	header *multipart.FileHeader
	file   multipart.File
}

// FromFileHeader opens fh. A nil header or one with zero size is returned
// as an empty source without opening anything.
func FromFileHeader(fh *multipart.FileHeader) (*Multipart, error) {
	if fh == nil || fh.Size == 0 {
		return &Multipart{header: fh}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	return &Multipart{header: fh, file: f}, nil
}

func (m *Multipart) Filename() string {
	if m.header == nil {
		return ""
	}
	return m.header.Filename
}

func (m *Multipart) Reader() io.Reader {
	if m.file == nil {
		return nil
	}
	return m.file
}

func (m *Multipart) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
