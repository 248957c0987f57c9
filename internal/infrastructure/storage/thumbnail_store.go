// Package storage 提供缩略图对象存储（S3 兼容，基于 minio-go）
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"

	"media-search-api/internal/config"
)

var tracer = otel.Tracer("storage")

// ThumbnailStore 缩略图对象存储
type ThumbnailStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewThumbnailStore 创建对象存储客户端
func NewThumbnailStore(cfg *config.S3Config) (*ThumbnailStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ThumbnailStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: objectBaseURL(cfg.PublicURL, endpoint, cfg.Bucket, useSSL),
	}, nil
}

// objectBaseURL 对象访问前缀：优先使用 publicURL，否则按 endpoint/bucket 拼接
func objectBaseURL(publicURL, endpoint, bucket string, useSSL bool) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
}

// ObjectKey 缩略图对象键：<media_id>/<文件名>
func ObjectKey(mediaID int64, localPath string) string {
	return path.Join(fmt.Sprintf("%d", mediaID), path.Base(strings.ReplaceAll(localPath, "\\", "/")))
}

// EnsureBucket 确保桶存在
func (s *ThumbnailStore) EnsureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "storage.ThumbnailStore.EnsureBucket")
	defer span.End()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload 上传本地缩略图，返回访问地址
func (s *ThumbnailStore) Upload(ctx context.Context, mediaID int64, localPath string) (string, error) {
	ctx, span := tracer.Start(ctx, "storage.ThumbnailStore.Upload")
	defer span.End()

	key := ObjectKey(mediaID, localPath)
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// HealthCheck 健康检查
func (s *ThumbnailStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	return nil
}
