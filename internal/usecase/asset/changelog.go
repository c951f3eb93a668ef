package asset

import (
	"fmt"

	"listing-images/internal/domain"
)

// Mutation logging works off a before-snapshot fetched inside the same
// request that performs the change. Nothing is cached across requests.

func (u *AssetUsecase) logAssetChanges(before, after *domain.ImageAsset) {
	var changes []string
	if before.IsPrimary != after.IsPrimary {
		changes = append(changes, fmt.Sprintf("is_primary: %t -> %t", before.IsPrimary, after.IsPrimary))
	}
	if before.SortOrder != after.SortOrder {
		changes = append(changes, fmt.Sprintf("sort_order: %d -> %d", before.SortOrder, after.SortOrder))
	}
	if len(changes) == 0 {
		return
	}

	u.logger.Info().
		Str("image_id", after.ID).
		Int64("listing_id", after.ListingID).
		Strs("changes", changes).
		Msg("Image updated")
}

func (u *AssetUsecase) logReorder(listingID int64, before []domain.ImageAsset, updates []domain.OrderUpdate) {
	orders := make(map[string]int, len(before))
	for _, a := range before {
		orders[a.ID] = a.SortOrder
	}

	var changes []string
	for _, upd := range updates {
		if old, ok := orders[upd.ImageID]; ok && old != upd.SortOrder {
			changes = append(changes, fmt.Sprintf("%s: %d -> %d", upd.ImageID, old, upd.SortOrder))
		}
	}
	if len(changes) == 0 {
		return
	}

	u.logger.Info().
		Int64("listing_id", listingID).
		Strs("changes", changes).
		Msg("Listing images reordered")
}
