package domain

// RebuildTask asks the worker to regenerate the named renditions of an asset
// from its stored source object. Produced when a rendition fails during the
// upload request; consumed until every configured rendition has a path.
type RebuildTask struct {
	ID         string   `json:"id"`
	AssetID    string   `json:"asset_id"`
	ListingID  int64    `json:"listing_id"`
	SourcePath string   `json:"source_path"`
	BaseName   string   `json:"base_name"`
	Renditions []string `json:"renditions"`
}
