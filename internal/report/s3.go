package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
)

// S3Sink writes records to an S3-compatible bucket.
type S3Sink struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

var _ Sink = (*S3Sink)(nil)

// NewS3Sink creates a sink from configuration. The bucket is created on the
// first write when it does not exist.
func NewS3Sink(cfg config.S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	if access == "" || !cfg.SecretKey.IsSet() {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{
		client: client,
		bucket: bucket,
		region: region,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// WritePackage implements Sink.
func (s *S3Sink) WritePackage(ctx context.Context, rec PackageRecord) error {
	return writePackage(ctx, s, rec)
}

// WriteSuite implements Sink.
func (s *S3Sink) WriteSuite(ctx context.Context, rec SuiteRecord) error {
	return writeSuite(ctx, s, rec)
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Sink) objectKey(key string) string {
	return s.prefix + strings.TrimLeft(key, "/")
}

func (s *S3Sink) put(ctx context.Context, key, contentType string, data []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
