package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

const (
	defaultContentType = "application/octet-stream"

	// singlePartLimit is the largest known-size body sent in one PUT.
	singlePartLimit = 128 << 20
)

// bucketObject is the part of *minio.Object the client reads from.
type bucketObject interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// bucketAPI is the subset of the MinIO API the client calls.
type bucketAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (bucketObject, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// minioAPI adapts *minio.Client to bucketAPI.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (bucketObject, error) {
	return a.Client.GetObject(ctx, bucket, key, opts)
}

// ClientConfig holds configuration for the MinIO client.
type ClientConfig struct {
	Endpoint string
	// PublicEndpoint, when set, is the host presigned download URLs are signed for.
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	// CreateBucket makes the bucket on startup instead of failing when it is missing.
	CreateBucket bool
}

// Client stores uploaded videos and cache state objects in one MinIO bucket.
type Client struct {
	api    bucketAPI
	signer bucketAPI
	bucket string
}

// Compile-time verification that Client implements ObjectStorage.
var _ repository.ObjectStorage = (*Client)(nil)

// NewClient connects to MinIO and makes sure the bucket is usable.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	api, err := dial(cfg.Endpoint, cfg)
	if err != nil {
		return nil, err
	}

	signer := api
	if cfg.PublicEndpoint != "" {
		if signer, err = dial(cfg.PublicEndpoint, cfg); err != nil {
			return nil, err
		}
	}

	c := &Client{api: api, signer: signer, bucket: cfg.Bucket}
	if err := c.ensureBucket(ctx, cfg.CreateBucket); err != nil {
		return nil, err
	}
	return c, nil
}

func dial(endpoint string, cfg ClientConfig) (bucketAPI, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", endpoint, err)
	}
	return minioAPI{mc}, nil
}

func (c *Client) ensureBucket(ctx context.Context, create bool) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if !create {
		return fmt.Errorf("%w: %s", repository.ErrBucketNotFound, c.bucket)
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// GeneratePresignedDownloadURL signs a GET for key. The response is served as
// an attachment named after the last path element of key.
func (c *Client) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": path.Base(key),
	}))

	u, err := c.signer.PresignedGetObject(ctx, c.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Upload stores r under key. size may be -1 when unknown; an empty
// contentType is stored as application/octet-stream.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}

	opts := minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: size >= 0 && size <= singlePartLimit,
	}
	if _, err := c.api.PutObject(ctx, c.bucket, key, r, size, opts); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Download opens key for reading. The caller closes the returned reader.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey":
			return nil, repository.ErrObjectNotFound
		case "NoSuchBucket":
			return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, c.bucket)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	return obj, nil
}

// Delete removes key. Removing a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.api.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("minio unreachable: %w", err)
	}
	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
