package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"listing-images/internal/domain"
	"listing-images/internal/repository/asset"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

type AssetsRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewAssetsRepository(db *dbpg.DB, retries retry.Strategy) *AssetsRepository {
	return &AssetsRepository{
		db:      db,
		retries: retries,
	}
}

// lockListing serializes primary-flag read-modify-write cycles for one
// listing. The lock is transaction-scoped and keyed by listing id, so
// concurrent inserts for different listings never contend.
func lockListing(ctx context.Context, tx *sql.Tx, listingID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, listingID); err != nil {
		return fmt.Errorf("failed to take listing lock: %w", err)
	}
	return nil
}

// Create inserts the asset and its known rendition paths in one transaction.
// The auto-promotion check ("first image, no primary yet") runs inside the
// same locked transaction as the insert, so two concurrent first uploads
// cannot both become primary.
func (r *AssetsRepository) Create(ctx context.Context, a *domain.ImageAsset, wantPrimary bool) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockListing(ctx, tx, a.ListingID); err != nil {
		return err
	}

	isPrimary := wantPrimary
	if wantPrimary {
		if _, err := tx.ExecContext(ctx,
			`UPDATE listing_images SET is_primary = FALSE WHERE listing_id = $1 AND is_primary`,
			a.ListingID,
		); err != nil {
			return fmt.Errorf("failed to clear sibling primary flags: %w", err)
		}
	} else {
		var total, primaries int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_primary) FROM listing_images WHERE listing_id = $1`,
			a.ListingID,
		).Scan(&total, &primaries)
		if err != nil {
			return fmt.Errorf("failed to count listing images: %w", err)
		}
		isPrimary = total == 0 && primaries == 0
	}

	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO listing_images (
			id, listing_id, base_name, source_path, is_primary,
			sort_order, file_size, width, height, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.ListingID, a.BaseName, a.SourcePath, isPrimary,
		a.SortOrder, a.FileSize, a.Width, a.Height, a.UploadedAt,
	); err != nil {
		return fmt.Errorf("failed to insert image asset: %w", err)
	}

	for name, path := range a.Renditions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO image_renditions (id, image_id, name, path, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), a.ID, name, path, time.Now(),
		); err != nil {
			return fmt.Errorf("failed to insert rendition %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image asset: %w", err)
	}

	a.IsPrimary = isPrimary
	return nil
}

func (r *AssetsRepository) GetByID(ctx context.Context, id string) (*domain.ImageAsset, error) {
	row, err := r.db.QueryRowWithRetry(ctx, r.retries, `
		SELECT id, listing_id, base_name, source_path, is_primary,
		       sort_order, file_size, width, height, uploaded_at
		FROM listing_images
		WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query image asset: %w", err)
	}

	var a domain.ImageAsset
	err = row.Scan(
		&a.ID, &a.ListingID, &a.BaseName, &a.SourcePath, &a.IsPrimary,
		&a.SortOrder, &a.FileSize, &a.Width, &a.Height, &a.UploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, asset.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image asset: %w", err)
	}

	a.Renditions, err = r.renditionsFor(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (r *AssetsRepository) renditionsFor(ctx context.Context, imageID string) (map[string]string, error) {
	rows, err := r.db.QueryWithRetry(ctx, r.retries,
		`SELECT name, path FROM image_renditions WHERE image_id = $1`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query renditions: %w", err)
	}
	defer rows.Close()

	renditions := make(map[string]string)
	for rows.Next() {
		var name, path string
		if err := rows.Scan(&name, &path); err != nil {
			return nil, fmt.Errorf("failed to scan rendition: %w", err)
		}
		renditions[name] = path
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating renditions: %w", err)
	}

	return renditions, nil
}

// ListByListing returns the listing's assets in display order: sort_order
// first, upload time breaking ties.
func (r *AssetsRepository) ListByListing(ctx context.Context, listingID int64) ([]domain.ImageAsset, error) {
	rows, err := r.db.QueryWithRetry(ctx, r.retries, `
		SELECT id, listing_id, base_name, source_path, is_primary,
		       sort_order, file_size, width, height, uploaded_at
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY sort_order, uploaded_at`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query listing images: %w", err)
	}
	defer rows.Close()

	var assets []domain.ImageAsset
	byID := make(map[string]int)
	for rows.Next() {
		var a domain.ImageAsset
		err := rows.Scan(
			&a.ID, &a.ListingID, &a.BaseName, &a.SourcePath, &a.IsPrimary,
			&a.SortOrder, &a.FileSize, &a.Width, &a.Height, &a.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image asset: %w", err)
		}
		a.Renditions = make(map[string]string)
		byID[a.ID] = len(assets)
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing images: %w", err)
	}

	if len(assets) == 0 {
		return assets, nil
	}

	rrows, err := r.db.QueryWithRetry(ctx, r.retries, `
		SELECT r.image_id, r.name, r.path
		FROM image_renditions r
		JOIN listing_images i ON i.id = r.image_id
		WHERE i.listing_id = $1`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query renditions: %w", err)
	}
	defer rrows.Close()

	for rrows.Next() {
		var imageID, name, path string
		if err := rrows.Scan(&imageID, &name, &path); err != nil {
			return nil, fmt.Errorf("failed to scan rendition: %w", err)
		}
		if idx, ok := byID[imageID]; ok {
			assets[idx].Renditions[name] = path
		}
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating renditions: %w", err)
	}

	return assets, nil
}

// SetPrimary clears every sibling's primary flag and sets the target's inside
// one locked transaction.
func (r *AssetsRepository) SetPrimary(ctx context.Context, imageID string, listingID int64) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockListing(ctx, tx, listingID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listing_images SET is_primary = FALSE WHERE listing_id = $1 AND is_primary AND id <> $2`,
		listingID, imageID,
	); err != nil {
		return fmt.Errorf("failed to clear sibling primary flags: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE listing_images SET is_primary = TRUE WHERE id = $1 AND listing_id = $2`,
		imageID, listingID,
	)
	if err != nil {
		return fmt.Errorf("failed to set primary flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return asset.ErrAssetNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit primary flag: %w", err)
	}
	return nil
}

// Reorder applies all order updates atomically. An image id that does not
// belong to the listing fails the whole batch; nothing is applied partially.
func (r *AssetsRepository) Reorder(ctx context.Context, listingID int64, updates []domain.OrderUpdate) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			`UPDATE listing_images SET sort_order = $1 WHERE id = $2 AND listing_id = $3`,
			u.SortOrder, u.ImageID, listingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update order of %s: %w", u.ImageID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", asset.ErrImageNotInListing, u.ImageID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// AttachRendition records a rendition path produced after the asset was
// created (worker rebuild path).
func (r *AssetsRepository) AttachRendition(ctx context.Context, imageID, name, path string) error {
	res, err := r.db.ExecWithRetry(ctx, r.retries, `
		INSERT INTO image_renditions (id, image_id, name, path, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (image_id, name) DO UPDATE SET path = EXCLUDED.path`,
		uuid.NewString(), imageID, name, path, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to attach rendition %q: %w", name, err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	return nil
}

func (r *AssetsRepository) Delete(ctx context.Context, imageID string) error {
	res, err := r.db.ExecWithRetry(ctx, r.retries,
		`DELETE FROM listing_images WHERE id = $1`, imageID)
	if err != nil {
		return fmt.Errorf("failed to delete image asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return asset.ErrAssetNotFound
	}
	return nil
}

// HealPrimary repairs a multi-primary anomaly by keeping exactly one primary:
// the image with the lowest sort order, upload time breaking ties. Returns the
// id of the surviving primary.
func (r *AssetsRepository) HealPrimary(ctx context.Context, listingID int64) (string, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockListing(ctx, tx, listingID); err != nil {
		return "", err
	}

	var keep string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM listing_images
		WHERE listing_id = $1
		ORDER BY sort_order, uploaded_at
		LIMIT 1`, listingID).Scan(&keep)
	if errors.Is(err, sql.ErrNoRows) {
		return "", asset.ErrAssetNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to pick primary candidate: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listing_images SET is_primary = FALSE WHERE listing_id = $1 AND is_primary AND id <> $2`,
		listingID, keep,
	); err != nil {
		return "", fmt.Errorf("failed to heal primary flags: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listing_images SET is_primary = TRUE WHERE id = $1 AND NOT is_primary`,
		keep,
	); err != nil {
		return "", fmt.Errorf("failed to promote primary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit primary heal: %w", err)
	}
	return keep, nil
}
