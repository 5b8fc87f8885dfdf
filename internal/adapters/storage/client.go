// Package storage provides the MinIO-backed object store for generated
// export artifacts.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"measurehub_backend/platform/config"
)

// presignedURLTTL is how long a download link stays valid.
const presignedURLTTL = 15 * time.Minute

const defaultBucket = "exports"

// Client wraps a MinIO connection scoped to the exports bucket.
type Client struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO client for export artifacts.
func New(cfg config.MinIOConfig) (*Client, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("minio is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	bucket := cfg.GetMinioBucketExports()
	if bucket == "" {
		bucket = defaultBucket
	}

	return &Client{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the exports bucket if it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Upload stores one object under the given key.
func (c *Client) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// PresignedDownloadURL returns a time-limited download link for the object.
func (c *Client) PresignedDownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	expiresAt := time.Now().Add(presignedURLTTL)

	presigned, err := c.client.PresignedGetObject(ctx, c.bucket, key, presignedURLTTL, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.String(), expiresAt, nil
}
