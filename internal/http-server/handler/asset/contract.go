package asset

import (
	"context"

	"listing-images/internal/domain"
	asset_uc "listing-images/internal/usecase/asset"
)

type assetUsecase interface {
	Upload(ctx context.Context, listingID, requesterID int64, files []asset_uc.UploadFile) ([]asset_uc.UploadResult, error)
	ListByListing(ctx context.Context, listingID int64) ([]domain.ImageAsset, error)
	SetPrimary(ctx context.Context, imageID string, requesterID int64) error
	Reorder(ctx context.Context, listingID int64, updates []domain.OrderUpdate, requesterID int64) error
	Delete(ctx context.Context, imageID string, requesterID int64) error
	ResolveURL(ctx context.Context, imageID, size string) (url string, ready bool, err error)
	RenditionURLs(a *domain.ImageAsset) map[string]string
}
