package dto

import "time"

type ReorderRequest struct {
	Images []OrderItem `json:"images" validate:"required,min=1,dive"`
}

type OrderItem struct {
	ID        string `json:"id" validate:"required,uuid"`
	SortOrder int    `json:"sort_order" validate:"min=0"`
}

type ImageResponse struct {
	ID         string            `json:"id"`
	ListingID  int64             `json:"listing_id"`
	IsPrimary  bool              `json:"is_primary"`
	SortOrder  int               `json:"sort_order"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	FileSize   int64             `json:"file_size"`
	UploadedAt time.Time         `json:"uploaded_at"`
	URLs       map[string]string `json:"urls"`
}

type UploadFileResult struct {
	Filename string         `json:"filename"`
	Error    string         `json:"error,omitempty"`
	Image    *ImageResponse `json:"image,omitempty"`
}

type UploadResponse struct {
	Results []UploadFileResult `json:"results"`
}

type ListResponse struct {
	Images []ImageResponse `json:"images"`
}

type URLResponse struct {
	ID     string `json:"id"`
	Size   string `json:"size"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
