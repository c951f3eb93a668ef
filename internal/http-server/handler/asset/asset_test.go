package asset_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"listing-images/internal/domain"
	handler "listing-images/internal/http-server/handler/asset"
	"listing-images/internal/http-server/handler/asset/dto"
	"listing-images/internal/http-server/router"
	asset_uc "listing-images/internal/usecase/asset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

type stubUsecase struct {
	upload     func(ctx context.Context, listingID, requesterID int64, files []asset_uc.UploadFile) ([]asset_uc.UploadResult, error)
	list       func(ctx context.Context, listingID int64) ([]domain.ImageAsset, error)
	setPrimary func(ctx context.Context, imageID string, requesterID int64) error
	reorder    func(ctx context.Context, listingID int64, updates []domain.OrderUpdate, requesterID int64) error
	delete     func(ctx context.Context, imageID string, requesterID int64) error
	resolveURL func(ctx context.Context, imageID, size string) (string, bool, error)
}

func (s *stubUsecase) Upload(ctx context.Context, listingID, requesterID int64, files []asset_uc.UploadFile) ([]asset_uc.UploadResult, error) {
	return s.upload(ctx, listingID, requesterID, files)
}

func (s *stubUsecase) ListByListing(ctx context.Context, listingID int64) ([]domain.ImageAsset, error) {
	return s.list(ctx, listingID)
}

func (s *stubUsecase) SetPrimary(ctx context.Context, imageID string, requesterID int64) error {
	return s.setPrimary(ctx, imageID, requesterID)
}

func (s *stubUsecase) Reorder(ctx context.Context, listingID int64, updates []domain.OrderUpdate, requesterID int64) error {
	return s.reorder(ctx, listingID, updates, requesterID)
}

func (s *stubUsecase) Delete(ctx context.Context, imageID string, requesterID int64) error {
	return s.delete(ctx, imageID, requesterID)
}

func (s *stubUsecase) ResolveURL(ctx context.Context, imageID, size string) (string, bool, error) {
	return s.resolveURL(ctx, imageID, size)
}

func (s *stubUsecase) RenditionURLs(a *domain.ImageAsset) map[string]string {
	urls := make(map[string]string, len(a.Renditions))
	for name, path := range a.Renditions {
		urls[name] = "http://store.test/" + path
	}
	return urls
}

func newServer(t *testing.T, uc *stubUsecase) http.Handler {
	t.Helper()
	zlog.Init()
	h := handler.NewAssetHandler(uc, &zlog.Logger)
	return router.SetupRouter(&router.Handler{AssetHandler: h})
}

func sampleAsset(id string) *domain.ImageAsset {
	return &domain.ImageAsset{
		ID:        id,
		ListingID: 1,
		BaseName:  "car_abcd1234",
		IsPrimary: true,
		Width:     1200,
		Height:    900,
		FileSize:  1234,
		Renditions: map[string]string{
			"original":  "listing_images/car_abcd1234.jpg",
			"thumbnail": "listing_images/thumbnails/car_abcd1234_thumbnail.jpg",
		},
		UploadedAt: time.Now(),
	}
}

func multipartBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range filenames {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		img := image.NewRGBA(image.Rect(0, 0, 400, 300))
		require.NoError(t, jpeg.Encode(fw, img, nil))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadRequiresAuthentication(t *testing.T) {
	srv := newServer(t, &stubUsecase{})

	body, contentType := multipartBody(t, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/images", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadSuccess(t *testing.T) {
	uc := &stubUsecase{
		upload: func(_ context.Context, listingID, requesterID int64, files []asset_uc.UploadFile) ([]asset_uc.UploadResult, error) {
			require.Equal(t, int64(1), listingID)
			require.Equal(t, int64(100), requesterID)
			require.Len(t, files, 1)
			return []asset_uc.UploadResult{
				{Filename: files[0].Name, Asset: sampleAsset("img-1")},
			}, nil
		},
	}
	srv := newServer(t, uc)

	body, contentType := multipartBody(t, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "100")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].Error)
	require.NotNil(t, resp.Results[0].Image)
	assert.Equal(t, "img-1", resp.Results[0].Image.ID)
	assert.True(t, resp.Results[0].Image.IsPrimary)
	assert.Contains(t, resp.Results[0].Image.URLs, "thumbnail")
}

func TestUploadPartialFailure(t *testing.T) {
	uc := &stubUsecase{
		upload: func(_ context.Context, _, _ int64, files []asset_uc.UploadFile) ([]asset_uc.UploadResult, error) {
			return []asset_uc.UploadResult{
				{Filename: files[0].Name, Asset: sampleAsset("img-1")},
				{Filename: files[1].Name, Err: asset_uc.ErrProcessingFailed},
			}, nil
		},
	}
	srv := newServer(t, uc)

	body, contentType := multipartBody(t, "a.jpg", "b.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "100")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[0].Image)
	assert.Nil(t, resp.Results[1].Image)
	assert.NotEmpty(t, resp.Results[1].Error)
}

func TestUploadForbidden(t *testing.T) {
	uc := &stubUsecase{
		upload: func(_ context.Context, _, _ int64, _ []asset_uc.UploadFile) ([]asset_uc.UploadResult, error) {
			return nil, asset_uc.ErrForbidden
		},
	}
	srv := newServer(t, uc)

	body, contentType := multipartBody(t, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "200")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListImages(t *testing.T) {
	uc := &stubUsecase{
		list: func(_ context.Context, listingID int64) ([]domain.ImageAsset, error) {
			require.Equal(t, int64(1), listingID)
			return []domain.ImageAsset{*sampleAsset("img-1")}, nil
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/1/images", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "img-1", resp.Images[0].ID)
}

func TestSetPrimaryNotFound(t *testing.T) {
	uc := &stubUsecase{
		setPrimary: func(_ context.Context, _ string, _ int64) error {
			return asset_uc.ErrAssetNotFound
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodPatch, "/api/images/img-404/primary", nil)
	req.Header.Set("X-User-ID", "100")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetPrimarySuccess(t *testing.T) {
	uc := &stubUsecase{
		setPrimary: func(_ context.Context, imageID string, requesterID int64) error {
			require.Equal(t, "img-1", imageID)
			require.Equal(t, int64(100), requesterID)
			return nil
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodPatch, "/api/images/img-1/primary", nil)
	req.Header.Set("X-User-ID", "100")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReorderInvalidPayload(t *testing.T) {
	srv := newServer(t, &stubUsecase{})

	req := httptest.NewRequest(http.MethodPut, "/api/listings/1/images/order", strings.NewReader(`{"images":[]}`))
	req.Header.Set("X-User-ID", "100")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReorderForeignImage(t *testing.T) {
	uc := &stubUsecase{
		reorder: func(_ context.Context, _ int64, _ []domain.OrderUpdate, _ int64) error {
			return asset_uc.ErrImageNotInListing
		},
	}
	srv := newServer(t, uc)

	payload := `{"images":[{"id":"550e8400-e29b-41d4-a716-446655440000","sort_order":1}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/listings/1/images/order", strings.NewReader(payload))
	req.Header.Set("X-User-ID", "100")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReorderSuccess(t *testing.T) {
	var got []domain.OrderUpdate
	uc := &stubUsecase{
		reorder: func(_ context.Context, listingID int64, updates []domain.OrderUpdate, _ int64) error {
			require.Equal(t, int64(1), listingID)
			got = updates
			return nil
		},
	}
	srv := newServer(t, uc)

	payload := `{"images":[
		{"id":"550e8400-e29b-41d4-a716-446655440000","sort_order":2},
		{"id":"550e8400-e29b-41d4-a716-446655440001","sort_order":1}
	]}`
	req := httptest.NewRequest(http.MethodPut, "/api/listings/1/images/order", strings.NewReader(payload))
	req.Header.Set("X-User-ID", "100")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].SortOrder)
}

func TestDeleteForbidden(t *testing.T) {
	uc := &stubUsecase{
		delete: func(_ context.Context, _ string, _ int64) error {
			return asset_uc.ErrForbidden
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodDelete, "/api/images/img-1", nil)
	req.Header.Set("X-User-ID", "200")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestResolveURLReady(t *testing.T) {
	uc := &stubUsecase{
		resolveURL: func(_ context.Context, imageID, size string) (string, bool, error) {
			require.Equal(t, "img-1", imageID)
			require.Equal(t, "thumbnail", size)
			return "http://store.test/listing_images/thumbnails/a_thumbnail.jpg", true, nil
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodGet, "/api/images/img-1/url?size=thumbnail", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.URLResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ready", resp.Status)
	assert.NotEmpty(t, resp.URL)
}

func TestResolveURLStillProcessing(t *testing.T) {
	uc := &stubUsecase{
		resolveURL: func(_ context.Context, _, _ string) (string, bool, error) {
			return "", false, nil
		},
	}
	srv := newServer(t, uc)

	req := httptest.NewRequest(http.MethodGet, "/api/images/img-1/url?size=thumbnail", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp dto.URLResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "processing", resp.Status)
	assert.Empty(t, resp.URL)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &stubUsecase{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
