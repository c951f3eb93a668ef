package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"listing-images/internal/config"
	"listing-images/internal/domain"
	"listing-images/internal/pipeline"
	repoasset "listing-images/internal/repository/asset"
	repolisting "listing-images/internal/repository/listing"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// AssetUsecase orchestrates the ingestion pipeline and owns the per-image
// metadata record, including the at-most-one-primary-image invariant.
type AssetUsecase struct {
	repo      assetRepository
	listings  listingRepository
	store     fileStore
	producer  taskProducer
	validator *pipeline.Validator
	filenames *pipeline.FilenameGenerator
	builder   *pipeline.Builder
	cfg       *config.Config
	logger    *zlog.Zerolog
}

func NewAssetUsecase(
	repo assetRepository,
	listings listingRepository,
	store fileStore,
	producer taskProducer,
	builder *pipeline.Builder,
	cfg *config.Config,
	logger *zlog.Zerolog,
) *AssetUsecase {
	return &AssetUsecase{
		repo:      repo,
		listings:  listings,
		store:     store,
		producer:  producer,
		validator: pipeline.NewValidator(cfg.Pipeline.MaxFileSize, cfg.Pipeline.MinWidth, cfg.Pipeline.MinHeight, pipeline.DefaultFormats()),
		filenames: pipeline.NewFilenameGenerator(),
		builder:   builder,
		cfg:       cfg,
		logger:    logger,
	}
}

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name string
	Data []byte
}

// UploadResult reports the outcome per file. Batch uploads are
// partial-failure: files that process cleanly succeed even when siblings in
// the same request fail.
type UploadResult struct {
	Filename string
	Asset    *domain.ImageAsset
	Err      error
}

// Upload ingests a batch of images for one listing. The whole batch is
// rejected when the listing does not exist or the requester does not own it;
// everything after that is per-file.
func (u *AssetUsecase) Upload(ctx context.Context, listingID, requesterID int64, files []UploadFile) ([]UploadResult, error) {
	if err := u.authorize(ctx, listingID, requesterID); err != nil {
		return nil, err
	}

	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		a, err := u.ingest(ctx, listingID, f)
		if err != nil {
			u.logger.Warn().Err(err).Str("filename", f.Name).Int64("listing_id", listingID).Msg("Image ingestion failed")
		}
		results = append(results, UploadResult{Filename: f.Name, Asset: a, Err: err})
	}

	return results, nil
}

func (u *AssetUsecase) ingest(ctx context.Context, listingID int64, f UploadFile) (*domain.ImageAsset, error) {
	reader := bytes.NewReader(f.Data)
	if err := u.validator.Validate(reader, int64(len(f.Data))); err != nil {
		return nil, err
	}

	src, err := pipeline.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	generated := u.filenames.Generate(f.Name)
	ext := filepath.Ext(generated)
	base := strings.TrimSuffix(generated, ext)

	built, failures := u.builder.BuildAll(src)
	if len(built) == 0 {
		return nil, fmt.Errorf("%w: no rendition could be built from %s", ErrProcessingFailed, f.Name)
	}

	// The pristine source is kept so failed renditions can be rebuilt later.
	// If it cannot be stored, the upload fails as a whole: nothing would be
	// recoverable.
	sourcePath := u.cfg.Storage.SourcePrefix + generated
	if _, err := u.store.Store(ctx, sourcePath, f.Data, http.DetectContentType(f.Data)); err != nil {
		return nil, err
	}

	renditionPaths := make(map[string]string, len(built))
	for name, data := range built {
		path := u.objectPath(base, name)
		if _, err := u.store.Store(ctx, path, data, "image/jpeg"); err != nil {
			failures[name] = err
			continue
		}
		renditionPaths[name] = path
	}
	if len(renditionPaths) == 0 {
		return nil, fmt.Errorf("%w: could not store any rendition of %s", repoasset.ErrStorage, f.Name)
	}

	bounds := src.Bounds()
	a := &domain.ImageAsset{
		ID:         uuid.NewString(),
		ListingID:  listingID,
		BaseName:   base,
		SourcePath: sourcePath,
		FileSize:   int64(len(f.Data)),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Renditions: renditionPaths,
		UploadedAt: time.Now(),
	}

	if err := u.repo.Create(ctx, a, false); err != nil {
		return nil, fmt.Errorf("failed to save image metadata: %w", err)
	}

	u.logger.Info().
		Str("image_id", a.ID).
		Int64("listing_id", listingID).
		Bool("is_primary", a.IsPrimary).
		Int("renditions", len(renditionPaths)).
		Msg("Image ingested")

	if len(failures) > 0 {
		u.queueRebuild(ctx, a, failures)
	}

	return a, nil
}

// queueRebuild records which renditions are missing and hands them to the
// worker. A failed enqueue only delays repair: readers already treat a missing
// rendition path as "still processing".
func (u *AssetUsecase) queueRebuild(ctx context.Context, a *domain.ImageAsset, failures map[string]error) {
	missing := make([]string, 0, len(failures))
	for name, err := range failures {
		u.logger.Error().Err(err).Str("image_id", a.ID).Str("rendition", name).Msg("Rendition missing after ingestion")
		missing = append(missing, name)
	}

	task := &domain.RebuildTask{
		ID:         uuid.NewString(),
		AssetID:    a.ID,
		ListingID:  a.ListingID,
		SourcePath: a.SourcePath,
		BaseName:   a.BaseName,
		Renditions: missing,
	}
	if err := u.producer.SendTask(ctx, task); err != nil {
		u.logger.Error().Err(err).Str("image_id", a.ID).Msg("Failed to queue rendition rebuild")
	}
}

// RebuildRenditions regenerates the named renditions from the stored source.
// Called by the worker; a task for a deleted asset is dropped silently.
func (u *AssetUsecase) RebuildRenditions(ctx context.Context, task *domain.RebuildTask) error {
	if _, err := u.repo.GetByID(ctx, task.AssetID); err != nil {
		if errors.Is(err, repoasset.ErrAssetNotFound) {
			u.logger.Info().Str("image_id", task.AssetID).Msg("Asset gone, dropping rebuild task")
			return nil
		}
		return fmt.Errorf("failed to load asset for rebuild: %w", err)
	}

	rc, err := u.store.Get(ctx, task.SourcePath)
	if err != nil {
		if errors.Is(err, repoasset.ErrObjectNotFound) {
			u.logger.Warn().Str("image_id", task.AssetID).Str("path", task.SourcePath).Msg("Source object gone, dropping rebuild task")
			return nil
		}
		return err
	}
	defer rc.Close()

	src, err := pipeline.Decode(rc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	var errs []error
	for _, name := range task.Renditions {
		data, err := u.builder.Build(src, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("rendition %q: %w", name, err))
			continue
		}
		path := u.objectPath(task.BaseName, name)
		if _, err := u.store.Store(ctx, path, data, "image/jpeg"); err != nil {
			errs = append(errs, fmt.Errorf("rendition %q: %w", name, err))
			continue
		}
		if err := u.repo.AttachRendition(ctx, task.AssetID, name, path); err != nil {
			errs = append(errs, fmt.Errorf("rendition %q: %w", name, err))
			continue
		}
		u.logger.Info().Str("image_id", task.AssetID).Str("rendition", name).Str("path", path).Msg("Rendition rebuilt")
	}

	return errors.Join(errs...)
}

// SetPrimary designates the image as its listing's cover image. Sibling flags
// are cleared in the same atomic unit.
func (u *AssetUsecase) SetPrimary(ctx context.Context, imageID string, requesterID int64) error {
	before, err := u.getAsset(ctx, imageID)
	if err != nil {
		return err
	}
	if err := u.authorize(ctx, before.ListingID, requesterID); err != nil {
		return err
	}

	if err := u.repo.SetPrimary(ctx, imageID, before.ListingID); err != nil {
		if errors.Is(err, repoasset.ErrAssetNotFound) {
			return ErrAssetNotFound
		}
		return fmt.Errorf("failed to set primary image: %w", err)
	}

	after := *before
	after.IsPrimary = true
	u.logAssetChanges(before, &after)
	return nil
}

// Reorder applies a batch of display-order updates. Any image id not
// belonging to the listing fails the whole batch.
func (u *AssetUsecase) Reorder(ctx context.Context, listingID int64, updates []domain.OrderUpdate, requesterID int64) error {
	if err := u.authorize(ctx, listingID, requesterID); err != nil {
		return err
	}

	before, err := u.repo.ListByListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("failed to load listing images: %w", err)
	}

	if err := u.repo.Reorder(ctx, listingID, updates); err != nil {
		if errors.Is(err, repoasset.ErrImageNotInListing) {
			return fmt.Errorf("%w: %w", ErrImageNotInListing, err)
		}
		return fmt.Errorf("failed to reorder listing images: %w", err)
	}

	u.logReorder(listingID, before, updates)
	return nil
}

// Delete removes the metadata record first, then best-effort deletes the
// stored objects. A storage delete failure is logged and never blocks the
// record deletion.
func (u *AssetUsecase) Delete(ctx context.Context, imageID string, requesterID int64) error {
	a, err := u.getAsset(ctx, imageID)
	if err != nil {
		return err
	}
	if err := u.authorize(ctx, a.ListingID, requesterID); err != nil {
		return err
	}

	if err := u.repo.Delete(ctx, imageID); err != nil {
		if errors.Is(err, repoasset.ErrAssetNotFound) {
			return ErrAssetNotFound
		}
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	paths := []string{a.SourcePath}
	for _, p := range a.Renditions {
		paths = append(paths, p)
	}
	for _, p := range paths {
		if err := u.store.Delete(ctx, p); err != nil {
			u.logger.Warn().Err(err).Str("image_id", imageID).Str("path", p).Msg("Failed to delete stored object")
		}
	}

	u.logger.Info().Str("image_id", imageID).Int64("listing_id", a.ListingID).Msg("Image deleted")
	return nil
}

// ListByListing returns the listing's images in display order. A
// multi-primary anomaly should be impossible, but if one is observed the
// lowest-order image is promoted and the rest demoted before returning.
func (u *AssetUsecase) ListByListing(ctx context.Context, listingID int64) ([]domain.ImageAsset, error) {
	assets, err := u.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listing images: %w", err)
	}

	primaries := 0
	for _, a := range assets {
		if a.IsPrimary {
			primaries++
		}
	}
	if primaries <= 1 {
		return assets, nil
	}

	u.logger.Error().Int64("listing_id", listingID).Int("primaries", primaries).Msg("Primary invariant violated, healing")
	kept, err := u.repo.HealPrimary(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to heal primary flags: %w", err)
	}
	u.logger.Info().Int64("listing_id", listingID).Str("image_id", kept).Msg("Primary flag healed")

	assets, err = u.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listing images: %w", err)
	}
	return assets, nil
}

// ResolveURL returns the public URL of the named rendition. Unconfigured size
// names fall back to the original. ready is false while the rendition is
// still being processed; that is a valid state, not an error.
func (u *AssetUsecase) ResolveURL(ctx context.Context, imageID, size string) (url string, ready bool, err error) {
	a, err := u.getAsset(ctx, imageID)
	if err != nil {
		return "", false, err
	}

	path, ok := a.RenditionPath(size)
	if !ok {
		return "", false, nil
	}
	return u.store.PublicURL(path), true, nil
}

// RenditionURLs maps every available rendition of the asset to its public URL.
func (u *AssetUsecase) RenditionURLs(a *domain.ImageAsset) map[string]string {
	urls := make(map[string]string, len(a.Renditions))
	for name, path := range a.Renditions {
		urls[name] = u.store.PublicURL(path)
	}
	return urls
}

func (u *AssetUsecase) getAsset(ctx context.Context, imageID string) (*domain.ImageAsset, error) {
	a, err := u.repo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, repoasset.ErrAssetNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return a, nil
}

func (u *AssetUsecase) authorize(ctx context.Context, listingID, requesterID int64) error {
	owner, err := u.listings.OwnerOf(ctx, listingID)
	if err != nil {
		if errors.Is(err, repolisting.ErrListingNotFound) {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to resolve listing owner: %w", err)
	}
	if owner != requesterID {
		return ErrForbidden
	}
	return nil
}

func (u *AssetUsecase) objectPath(base, rendition string) string {
	name := u.builder.ObjectName(base, rendition)
	if rendition == u.builder.Primary() {
		return u.cfg.Storage.ImagePrefix + name
	}
	return u.cfg.Storage.ThumbnailPrefix + name
}
