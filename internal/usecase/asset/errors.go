package asset

import "errors"

var (
	ErrForbidden         = errors.New("requester does not own this listing")
	ErrAssetNotFound     = errors.New("image not found")
	ErrListingNotFound   = errors.New("listing not found")
	ErrImageNotInListing = errors.New("image does not belong to listing")
	ErrProcessingFailed  = errors.New("image processing failed")
)
