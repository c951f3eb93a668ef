package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"listing-images/internal/config"
	"listing-images/internal/repository/asset"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// FileRepository persists encoded renditions and pristine source uploads to a
// MinIO bucket and resolves their public URLs.
type FileRepository struct {
	client  *minio.Client
	bucket  string
	baseURL string
	retries retry.Strategy
	logger  *zlog.Zerolog
}

func NewFileRepository(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	repo := &FileRepository{
		client:  client,
		bucket:  cfg.Storage.Bucket,
		baseURL: strings.TrimRight(cfg.Storage.PublicBaseURL, "/"),
		retries: retries,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", r.bucket, err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", r.bucket, err)
	}
	r.logger.Info().Str("bucket", r.bucket).Msg("Created storage bucket")
	return nil
}

// Store writes the object and returns its public URL. Writes are retried a
// bounded number of times with backoff before the error surfaces to the
// caller.
func (r *FileRepository) Store(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	var lastErr error
	delay := r.retries.Delay

	for attempt := 0; attempt < r.retries.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", asset.ErrStorage, ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * r.retries.Backoff)
		}

		_, lastErr = r.client.PutObject(ctx, r.bucket, path,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType},
		)
		if lastErr == nil {
			return r.PublicURL(path), nil
		}

		r.logger.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt+1).Msg("Storage write failed")
	}

	return "", fmt.Errorf("%w: failed to store %s: %w", asset.ErrStorage, path, lastErr)
}

func (r *FileRepository) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s: %w", asset.ErrStorage, path, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", asset.ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("%w: failed to stat %s: %w", asset.ErrStorage, path, err)
	}
	return obj, nil
}

// Delete is best-effort: a single attempt, no retries. Callers log failures
// and move on.
func (r *FileRepository) Delete(ctx context.Context, path string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: failed to delete %s: %w", asset.ErrStorage, path, err)
	}
	return nil
}

func (r *FileRepository) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.StatObject(ctx, r.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("%w: failed to stat %s: %w", asset.ErrStorage, path, err)
}

func (r *FileRepository) PublicURL(path string) string {
	return r.baseURL + "/" + strings.TrimLeft(path, "/")
}
