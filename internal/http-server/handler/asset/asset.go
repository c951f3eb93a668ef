package asset

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"listing-images/internal/domain"
	"listing-images/internal/http-server/handler/asset/dto"
	"listing-images/internal/pipeline"
	repoasset "listing-images/internal/repository/asset"
	asset_uc "listing-images/internal/usecase/asset"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory     = 32 << 20
	maxUploadBody = 64 << 20
)

// userIDHeader carries the authenticated user's id, set by the gateway in
// front of this service.
const userIDHeader = "X-User-ID"

type AssetHandler struct {
	usecase  assetUsecase
	validate *validator.Validate
	logger   *zlog.Zerolog
}

func NewAssetHandler(usecase assetUsecase, logger *zlog.Zerolog) *AssetHandler {
	return &AssetHandler{
		usecase:  usecase,
		validate: validator.New(),
		logger:   logger,
	}
}

// Upload accepts a multipart batch under the "images" field. Files are
// processed independently: the response reports a per-file outcome and the
// batch never fails because one file did.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to parse multipart form")
		h.respondError(w, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		h.respondError(w, http.StatusBadRequest, "At least one file is required under the 'images' field", nil)
		return
	}

	files := make([]asset_uc.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.logger.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to open uploaded file")
			h.respondError(w, http.StatusInternalServerError, "Failed to read file", err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.logger.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to read uploaded file")
			h.respondError(w, http.StatusInternalServerError, "Failed to read file", err)
			return
		}
		files = append(files, asset_uc.UploadFile{Name: fh.Filename, Data: data})
	}

	results, err := h.usecase.Upload(ctx, listingID, requesterID, files)
	if err != nil {
		h.handleBatchError(w, err, listingID)
		return
	}

	response := dto.UploadResponse{Results: make([]dto.UploadFileResult, 0, len(results))}
	allOK := true
	for _, res := range results {
		item := dto.UploadFileResult{Filename: res.Filename}
		if res.Err != nil {
			item.Error = h.fileErrorMessage(res.Err)
			allOK = false
		} else {
			img := h.imageResponse(res.Asset)
			item.Image = &img
		}
		response.Results = append(response.Results, item)
	}

	status := http.StatusOK
	if allOK {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, response)
}

func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}

	assets, err := h.usecase.ListByListing(ctx, listingID)
	if err != nil {
		h.logger.Error().Err(err).Int64("listing_id", listingID).Msg("Failed to list images")
		h.respondError(w, http.StatusInternalServerError, "Failed to list images", err)
		return
	}

	response := dto.ListResponse{Images: make([]dto.ImageResponse, 0, len(assets))}
	for i := range assets {
		response.Images = append(response.Images, h.imageResponse(&assets[i]))
	}
	h.respondJSON(w, http.StatusOK, response)
}

func (h *AssetHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	imageID := chi.URLParam(r, "id")
	if imageID == "" {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}

	if err := h.usecase.SetPrimary(ctx, imageID, requesterID); err != nil {
		h.handleAssetError(w, err, imageID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req dto.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid reorder payload", err)
		return
	}

	updates := make([]domain.OrderUpdate, 0, len(req.Images))
	for _, item := range req.Images {
		updates = append(updates, domain.OrderUpdate{ImageID: item.ID, SortOrder: item.SortOrder})
	}

	if err := h.usecase.Reorder(ctx, listingID, updates, requesterID); err != nil {
		switch {
		case errors.Is(err, asset_uc.ErrImageNotInListing):
			h.respondError(w, http.StatusBadRequest, "One of the images does not belong to this listing", nil)
		default:
			h.handleBatchError(w, err, listingID)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	imageID := chi.URLParam(r, "id")
	if imageID == "" {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}

	if err := h.usecase.Delete(ctx, imageID, requesterID); err != nil {
		h.handleAssetError(w, err, imageID)
		return
	}

	h.logger.Info().Str("image_id", imageID).Msg("Image deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ResolveURL answers where a rendition lives. A rendition that has not been
// built yet is reported as processing with 202, not as an error.
func (h *AssetHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	imageID := chi.URLParam(r, "id")
	if imageID == "" {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}
	size := r.URL.Query().Get("size")
	if size == "" {
		size = domain.RenditionOriginal
	}

	url, ready, err := h.usecase.ResolveURL(ctx, imageID, size)
	if err != nil {
		h.handleAssetError(w, err, imageID)
		return
	}

	response := dto.URLResponse{ID: imageID, Size: size}
	if !ready {
		response.Status = "processing"
		h.respondJSON(w, http.StatusAccepted, response)
		return
	}
	response.Status = "ready"
	response.URL = url
	h.respondJSON(w, http.StatusOK, response)
}

func (h *AssetHandler) imageResponse(a *domain.ImageAsset) dto.ImageResponse {
	return dto.ImageResponse{
		ID:         a.ID,
		ListingID:  a.ListingID,
		IsPrimary:  a.IsPrimary,
		SortOrder:  a.SortOrder,
		Width:      a.Width,
		Height:     a.Height,
		FileSize:   a.FileSize,
		UploadedAt: a.UploadedAt,
		URLs:       h.usecase.RenditionURLs(a),
	}
}

func (h *AssetHandler) listingIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "listingID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid listing ID", nil)
		return 0, false
	}
	return id, true
}

func (h *AssetHandler) requester(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(userIDHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusUnauthorized, "Authentication required", nil)
		return 0, false
	}
	return id, true
}

func (h *AssetHandler) fileErrorMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrTooLarge):
		return "File too large"
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return "Unsupported file format. Allowed: jpeg, png, webp"
	case errors.Is(err, pipeline.ErrTooSmall):
		return "Image is too small"
	case errors.Is(err, asset_uc.ErrProcessingFailed):
		return "Failed to process image"
	default:
		return "Failed to store image"
	}
}

func (h *AssetHandler) handleBatchError(w http.ResponseWriter, err error, listingID int64) {
	switch {
	case errors.Is(err, asset_uc.ErrListingNotFound):
		h.respondError(w, http.StatusNotFound, "Listing not found", nil)
	case errors.Is(err, asset_uc.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "You do not own this listing", nil)
	case errors.Is(err, repoasset.ErrStorage):
		h.logger.Error().Err(err).Int64("listing_id", listingID).Msg("Storage unavailable")
		h.respondError(w, http.StatusBadGateway, "Storage unavailable", nil)
	default:
		h.logger.Error().Err(err).Int64("listing_id", listingID).Msg("Request failed")
		h.respondError(w, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *AssetHandler) handleAssetError(w http.ResponseWriter, err error, imageID string) {
	switch {
	case errors.Is(err, asset_uc.ErrAssetNotFound):
		h.respondError(w, http.StatusNotFound, "Image not found", nil)
	case errors.Is(err, asset_uc.ErrListingNotFound):
		h.respondError(w, http.StatusNotFound, "Listing not found", nil)
	case errors.Is(err, asset_uc.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "You do not own this listing", nil)
	case errors.Is(err, repoasset.ErrStorage):
		h.logger.Error().Err(err).Str("image_id", imageID).Msg("Storage unavailable")
		h.respondError(w, http.StatusBadGateway, "Storage unavailable", nil)
	default:
		h.logger.Error().Err(err).Str("image_id", imageID).Msg("Request failed")
		h.respondError(w, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *AssetHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Interface("data", data).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *AssetHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}
