package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stash/internal/field"
	"stash/internal/logging"
	"stash/internal/metrics"
	"stash/internal/storage"
	"stash/internal/store"
	"stash/internal/upload"
)

// Repository is the persistence the service needs. *store.Store
// implements it.
type Repository interface {
	GetAsset(ctx context.Context, id uuid.UUID) (store.Asset, error)
	ListAssets(ctx context.Context, limit int, offset int) ([]store.Asset, error)
	InTx(ctx context.Context, fn func(store.AssetTx) error) error
}

type Service struct {
	repo   Repository
	files  *field.FileType
	images *field.ImageType
}

func New(repo Repository, files *field.FileType, images *field.ImageType) *Service {
	return &Service{repo: repo, files: files, images: images}
}

// Change says what an update does to one file column. The zero value
// leaves the column untouched; a set Change with an empty source clears it.
type Change struct {
	Set    bool
	Source upload.Source
}

func Keep() Change { return Change{} }

func Replace(src upload.Source) Change { return Change{Set: true, Source: src} }

func Clear() Change { return Change{Set: true} }

type CreateInput struct {
	Label string
	File  upload.Source
	Image upload.Source
}

type UpdateInput struct {
	Label *string
	File  Change
	Image Change
}

func (s *Service) GetAsset(ctx context.Context, id uuid.UUID) (store.Asset, error) {
	a, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return store.Asset{}, mapStoreError(err)
	}
	return a, nil
}

func (s *Service) ListAssets(ctx context.Context, limit int, offset int) ([]store.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	assets, err := s.repo.ListAssets(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (s *Service) CreateAsset(ctx context.Context, in CreateInput) (store.Asset, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return store.Asset{}, fmt.Errorf("%w: label required", ErrInvalidInput)
	}

	file, err := s.bindFile(ctx, in.File)
	if err != nil {
		return store.Asset{}, err
	}
	image, err := s.bindImage(ctx, in.Image)
	if err != nil {
		s.discard(ctx, s.files.Backend(), file.Name())
		return store.Asset{}, err
	}

	var created store.Asset
	err = s.repo.InTx(ctx, func(tx store.AssetTx) error {
		var err error
		created, err = tx.InsertAsset(ctx, store.Asset{Label: label, File: file, Image: image})
		return err
	})
	if err != nil {
		s.discard(ctx, s.files.Backend(), file.Name())
		s.discard(ctx, s.images.Backend(), image.Name())
		return store.Asset{}, mapStoreError(err)
	}

	logging.WithContext(ctx).Info("asset created",
		zap.String("id", created.ID.String()),
		zap.String("file", file.Name()),
		zap.String("image", image.Name()))
	return created, nil
}

// UpdateAsset applies in to the asset. New uploads are stored before the
// row is locked; objects the row no longer references are removed only
// after commit.
func (s *Service) UpdateAsset(ctx context.Context, id uuid.UUID, in UpdateInput) (store.Asset, error) {
	var label string
	if in.Label != nil {
		label = strings.TrimSpace(*in.Label)
		if label == "" {
			return store.Asset{}, fmt.Errorf("%w: label cannot be empty", ErrInvalidInput)
		}
	}

	var file field.Value[*field.StoredFile]
	var image field.Value[*field.ImageFile]
	var err error
	if in.File.Set {
		if file, err = s.bindFile(ctx, in.File.Source); err != nil {
			return store.Asset{}, err
		}
	}
	if in.Image.Set {
		if image, err = s.bindImage(ctx, in.Image.Source); err != nil {
			s.discard(ctx, s.files.Backend(), file.Name())
			return store.Asset{}, err
		}
	}

	var updated, previous store.Asset
	err = s.repo.InTx(ctx, func(tx store.AssetTx) error {
		cur, err := tx.LockAsset(ctx, id)
		if err != nil {
			return err
		}
		previous = cur
		next := cur
		if in.Label != nil {
			next.Label = label
		}
		if in.File.Set {
			next.File = file
		}
		if in.Image.Set {
			next.Image = image
		}
		updated, err = tx.UpdateAsset(ctx, next)
		return err
	})
	if err != nil {
		s.discard(ctx, s.files.Backend(), file.Name())
		s.discard(ctx, s.images.Backend(), image.Name())
		return store.Asset{}, mapStoreError(err)
	}

	if in.File.Set {
		s.discard(ctx, s.files.Backend(), replaced(previous.File.Name(), updated.File.Name()))
	}
	if in.Image.Set {
		s.discard(ctx, s.images.Backend(), replaced(previous.Image.Name(), updated.Image.Name()))
	}
	return updated, nil
}

func (s *Service) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	var removed store.Asset
	err := s.repo.InTx(ctx, func(tx store.AssetTx) error {
		cur, err := tx.LockAsset(ctx, id)
		if err != nil {
			return err
		}
		removed = cur
		return tx.DeleteAsset(ctx, id)
	})
	if err != nil {
		return mapStoreError(err)
	}

	s.discard(ctx, s.files.Backend(), removed.File.Name())
	s.discard(ctx, s.images.Backend(), removed.Image.Name())
	logging.WithContext(ctx).Info("asset deleted", zap.String("id", id.String()))
	return nil
}

// OpenStored returns the stored object called name from the file backend.
func (s *Service) OpenStored(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if name == "" || strings.HasPrefix(name, ".") || storage.CleanName(name) != name {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	b := s.files.Backend()
	size, err := b.Size(ctx, name)
	if err != nil {
		return nil, 0, mapStorageError(err)
	}
	rc, err := b.Open(ctx, name)
	if err != nil {
		return nil, 0, mapStorageError(err)
	}
	return rc, size, nil
}

func (s *Service) bindFile(ctx context.Context, src upload.Source) (field.Value[*field.StoredFile], error) {
	v, err := s.files.Bind(ctx, src)
	if err != nil {
		metrics.RecordUpload("file", metrics.ResultError)
		return v, mapStorageError(err)
	}
	s.recordStored(ctx, "file", v.Name(), func() (int64, error) {
		f, _ := v.Get()
		return f.Size(ctx)
	})
	return v, nil
}

func (s *Service) bindImage(ctx context.Context, src upload.Source) (field.Value[*field.ImageFile], error) {
	v, err := s.images.Bind(ctx, src)
	if err != nil {
		if errors.Is(err, field.ErrInvalidImage) {
			metrics.RecordUpload("image", metrics.ResultRejected)
			return v, err
		}
		metrics.RecordUpload("image", metrics.ResultError)
		return v, mapStorageError(err)
	}
	s.recordStored(ctx, "image", v.Name(), func() (int64, error) {
		img, _ := v.Get()
		return img.Size(ctx)
	})
	return v, nil
}

func (s *Service) recordStored(ctx context.Context, kind, name string, size func() (int64, error)) {
	if name == "" {
		metrics.RecordUpload(kind, metrics.ResultEmpty)
		return
	}
	metrics.RecordUpload(kind, metrics.ResultStored)
	n, err := size()
	if err != nil {
		logging.WithContext(ctx).Warn("size of stored upload", zap.String("name", name), zap.Error(err))
		return
	}
	metrics.RecordBytesStored(n)
}

// discard removes an object nothing references any more. Failures are
// logged and otherwise ignored.
func (s *Service) discard(ctx context.Context, b storage.Backend, name string) {
	if name == "" {
		return
	}
	tried, err := storage.Delete(context.WithoutCancel(ctx), b, name)
	log := logging.WithContext(ctx)
	switch {
	case err != nil:
		log.Warn("remove unreferenced object", zap.String("name", name), zap.Error(err))
	case !tried:
		log.Debug("backend keeps unreferenced object", zap.String("name", name))
	}
}

func replaced(previous, current string) string {
	if previous == current {
		return ""
	}
	return previous
}

func mapStoreError(err error) error {
	switch {
	case store.IsNotFound(err):
		return fmt.Errorf("%w: asset", ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrNameCollision):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
