// Package minio stores blobs in a MinIO (or any S3 compatible) bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
)

var _ blobstore.Store = (*Store)(nil)

// Config holds the connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicBaseURL, when set, is used to build permanent object URLs
	// (PublicBaseURL/bucket/path). The bucket must allow anonymous reads.
	// When empty, DownloadURL presigns a GET valid for URLExpiry.
	PublicBaseURL string
	URLExpiry     time.Duration
}

// objectAPI is the subset of *minio.Client the store needs.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Store implements blobstore.Store.
type Store struct {
	api    objectAPI
	cfg    Config
	logger *slog.Logger
}

// New connects to the endpoint and creates the bucket if it is missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore/minio: creating client: %w", err)
	}

	s := newStore(client, cfg, logger)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(api objectAPI, cfg Config, logger *slog.Logger) *Store {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 7 * 24 * time.Hour // S3 presign maximum
	}
	return &Store{api: api, cfg: cfg, logger: logger}
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("blobstore/minio: checking bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blobstore/minio: creating bucket %s: %w", s.cfg.Bucket, err)
	}
	s.logger.Info("created bucket", slog.String("bucket", s.cfg.Bucket))
	return nil
}

// Put uploads r to path, reporting progress as minio-go reads the body.
func (s *Store) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress blobstore.ProgressFunc) (blobstore.Handle, error) {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if progress != nil {
		opts.Progress = &progressReader{total: size, fn: progress}
	}

	info, err := s.api.PutObject(ctx, s.cfg.Bucket, path, r, size, opts)
	if err != nil {
		return blobstore.Handle{}, fmt.Errorf("blobstore/minio: uploading %s: %w", path, err)
	}

	return blobstore.Handle{
		Path:        path,
		Size:        info.Size,
		ContentType: contentType,
		ETag:        info.ETag,
	}, nil
}

// DownloadURL returns a public or presigned URL for h.
func (s *Store) DownloadURL(ctx context.Context, h blobstore.Handle) (string, error) {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + s.cfg.Bucket + "/" + h.Path, nil
	}

	u, err := s.api.PresignedGetObject(ctx, s.cfg.Bucket, h.Path, s.cfg.URLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("blobstore/minio: presigning %s: %w", h.Path, err)
	}
	return u.String(), nil
}

// progressReader is handed to minio-go as PutObjectOptions.Progress.
// minio-go "reads" from it once per chunk sent, with a buffer as long as
// the chunk, so len(p) is the number of bytes just transferred.
type progressReader struct {
	total       int64
	transferred int64
	fn          blobstore.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n := len(b)
	p.transferred += int64(n)
	if p.total > 0 && p.transferred > p.total {
		p.transferred = p.total
	}
	p.fn(p.transferred, p.total)
	return n, nil
}
