package asset

import (
	"context"
	"io"

	"listing-images/internal/domain"
)

type assetRepository interface {
	Create(ctx context.Context, a *domain.ImageAsset, wantPrimary bool) error
	GetByID(ctx context.Context, id string) (*domain.ImageAsset, error)
	ListByListing(ctx context.Context, listingID int64) ([]domain.ImageAsset, error)
	SetPrimary(ctx context.Context, imageID string, listingID int64) error
	Reorder(ctx context.Context, listingID int64, updates []domain.OrderUpdate) error
	AttachRendition(ctx context.Context, imageID, name, path string) error
	Delete(ctx context.Context, imageID string) error
	HealPrimary(ctx context.Context, listingID int64) (string, error)
}

type listingRepository interface {
	OwnerOf(ctx context.Context, listingID int64) (int64, error)
}

type fileStore interface {
	Store(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	PublicURL(path string) string
}

type taskProducer interface {
	SendTask(ctx context.Context, task *domain.RebuildTask) error
}
