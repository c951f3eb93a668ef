package asset

import "errors"

var (
	ErrAssetNotFound     = errors.New("image asset not found")
	ErrImageNotInListing = errors.New("image does not belong to listing")
	ErrObjectNotFound    = errors.New("storage object not found")
	ErrStorage           = errors.New("storage error")
)
