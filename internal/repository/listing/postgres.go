package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

var ErrListingNotFound = errors.New("listing not found")

// ListingsRepository is the ownership collaborator of the image pipeline. The
// wider listings schema (cars, locations, filtering) lives outside this
// service; only ownership lookups are needed here.
type ListingsRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewListingsRepository(db *dbpg.DB, retries retry.Strategy) *ListingsRepository {
	return &ListingsRepository{
		db:      db,
		retries: retries,
	}
}

func (r *ListingsRepository) OwnerOf(ctx context.Context, listingID int64) (int64, error) {
	row, err := r.db.QueryRowWithRetry(ctx, r.retries,
		`SELECT user_id FROM listings WHERE id = $1`, listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to query listing owner: %w", err)
	}

	var userID int64
	err = row.Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrListingNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan listing owner: %w", err)
	}

	return userID, nil
}

func (r *ListingsRepository) Exists(ctx context.Context, listingID int64) (bool, error) {
	row, err := r.db.QueryRowWithRetry(ctx, r.retries,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to query listing existence: %w", err)
	}

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to scan listing existence: %w", err)
	}
	return exists, nil
}
