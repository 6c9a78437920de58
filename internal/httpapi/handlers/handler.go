package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"stash/internal/service"
	"stash/internal/store"
)

// AssetService is the part of *service.Service the handlers call.
type AssetService interface {
	ListAssets(ctx context.Context, limit int, offset int) ([]store.Asset, error)
	GetAsset(ctx context.Context, id uuid.UUID) (store.Asset, error)
	CreateAsset(ctx context.Context, in service.CreateInput) (store.Asset, error)
	UpdateAsset(ctx context.Context, id uuid.UUID, in service.UpdateInput) (store.Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
	OpenStored(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

type Handler struct {
	svc AssetService
}

func New(svc AssetService) *Handler {
	return &Handler{svc: svc}
}
