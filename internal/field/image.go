package field

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"stash/internal/logging"
	"stash/internal/storage"
	"stash/internal/upload"
)

// ErrInvalidImage is returned by ImageType.Bind when the stored bytes do
// not decode as a supported image.
var ErrInvalidImage = errors.New("invalid image")

// ImageFile is a StoredFile known to hold an image. Dimensions are read
// from the backend on first use and cached for the lifetime of the value.
type ImageFile struct {
	StoredFile

	mu   sync.Mutex
	info *imageInfo
}

type imageInfo struct {
	width       int
	height      int
	orientation int
}

func newImageFile(name string, b storage.Backend) *ImageFile {
	return &ImageFile{StoredFile: StoredFile{name: name, backend: b}}
}

func (f *ImageFile) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Dimensions returns the pixel width and height.
func (f *ImageFile) Dimensions(ctx context.Context) (width, height int, err error) {
	info, err := f.inspect(ctx)
	if err != nil {
		return 0, 0, err
	}
	return info.width, info.height, nil
}

func (f *ImageFile) Width(ctx context.Context) (int, error) {
	w, _, err := f.Dimensions(ctx)
	return w, err
}

func (f *ImageFile) Height(ctx context.Context) (int, error) {
	_, h, err := f.Dimensions(ctx)
	return h, err
}

// Orientation returns the EXIF orientation tag, 1 when the image carries
// none.
func (f *ImageFile) Orientation(ctx context.Context) (int, error) {
	info, err := f.inspect(ctx)
	if err != nil {
		return 0, err
	}
	return info.orientation, nil
}

// inspect reads the header once. Failures are not cached so a later call
// can succeed once the backend recovers.
func (f *ImageFile) inspect(ctx context.Context) (imageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.info != nil {
		return *f.info, nil
	}

	rc, err := f.Open(ctx)
	if err != nil {
		return imageInfo{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return imageInfo{}, fmt.Errorf("read image %q: %w", f.name, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageInfo{}, fmt.Errorf("%w: %s: %w", ErrInvalidImage, f.name, err)
	}
	info := imageInfo{width: cfg.Width, height: cfg.Height, orientation: orientation(data)}
	f.info = &info
	return info, nil
}

func orientation(data []byte) (o int) {
	// goexif can panic on malformed segments.
	defer func() {
		if recover() != nil {
			o = 1
		}
	}()
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ImageType is the column type for images. Bind stores the upload and then
// fully decodes it; bytes that do not decode are rejected.
type ImageType struct {
	files          *FileType
	removeRejected bool
}

type ImageOption func(*ImageType)

// RemoveRejected deletes rejected uploads from backends that support it.
// By default rejected bytes stay where they were written.
func RemoveRejected(on bool) ImageOption {
	return func(t *ImageType) { t.removeRejected = on }
}

func NewImageType(b storage.Backend, opts ...ImageOption) *ImageType {
	t := &ImageType{files: NewFileType(b)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ImageType) Backend() storage.Backend { return t.files.backend }

// Bind saves src, validates it and returns the value to assign to the
// column. An empty upload yields Absent.
func (t *ImageType) Bind(ctx context.Context, src upload.Source) (Value[*ImageFile], error) {
	name, ok, err := t.files.save(ctx, src)
	if err != nil || !ok {
		return Value[*ImageFile]{}, err
	}
	if err := t.validate(ctx, name); err != nil {
		if errors.Is(err, ErrInvalidImage) {
			t.reject(ctx, name)
		}
		return Value[*ImageFile]{}, err
	}
	return Stored(newImageFile(name, t.files.backend)), nil
}

// Load rebuilds a value from a persisted name without decoding anything.
func (t *ImageType) Load(name string) Value[*ImageFile] {
	if name == "" {
		return Value[*ImageFile]{}
	}
	return Stored(newImageFile(name, t.files.backend))
}

func (t *ImageType) Column(dst *Value[*ImageFile]) sql.Scanner {
	return column[*ImageFile]{dst: dst, load: t.Load}
}

func (t *ImageType) validate(ctx context.Context, name string) error {
	rc, err := t.files.backend.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("open %q for validation: %w", name, err)
	}
	defer rc.Close()
	if _, err := imaging.Decode(rc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidImage, name, err)
	}
	return nil
}

func (t *ImageType) reject(ctx context.Context, name string) {
	if !t.removeRejected {
		logging.Warn("rejected image left in storage", zap.String("name", name))
		return
	}
	removed, err := storage.Delete(ctx, t.files.backend, name)
	switch {
	case err != nil:
		logging.Warn("remove rejected image", zap.String("name", name), zap.Error(err))
	case !removed:
		logging.Warn("backend cannot delete rejected image", zap.String("name", name))
	}
}
