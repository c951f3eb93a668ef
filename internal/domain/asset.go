package domain

import "time"

// ImageAsset is the per-image metadata record owned by exactly one listing.
// Width, Height and FileSize describe the original upload and never change
// after ingestion. Renditions maps rendition name to storage path and may be
// populated after the record is created.
type ImageAsset struct {
	ID         string
	ListingID  int64
	BaseName   string
	SourcePath string
	IsPrimary  bool
	SortOrder  int
	FileSize   int64
	Width      int
	Height     int
	Renditions map[string]string
	UploadedAt time.Time
}

// RenditionPath returns the stored path for the named rendition. Unknown names
// fall back to the original rendition. ok is false while the rendition is still
// being processed.
func (a *ImageAsset) RenditionPath(name string) (path string, ok bool) {
	if p, found := a.Renditions[name]; found {
		return p, true
	}
	p, found := a.Renditions[RenditionOriginal]
	return p, found
}

const (
	RenditionOriginal  = "original"
	RenditionThumbnail = "thumbnail"
)

// OrderUpdate is one entry of a reorder batch.
type OrderUpdate struct {
	ImageID   string
	SortOrder int
}

const (
	DefaultMaxFileSize = 5 << 20
	DefaultMinWidth    = 320
	DefaultMinHeight   = 240
	DefaultJPEGQuality = 85
)
