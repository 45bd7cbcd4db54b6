package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"runmatrix/internal/config"
	apperrors "runmatrix/internal/errors"
)

// objectPutter is the subset of *minio.Client used by Mirror
type objectPutter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror uploads exported files to a bucket
type Mirror struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewMinioMirror connects to the configured endpoint and creates the bucket
// when it does not exist yet
func NewMinioMirror(ctx context.Context, cfg config.UploadConfig, logger *slog.Logger) (*Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create object store client", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to check bucket %s", cfg.Bucket), err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("failed to create bucket %s", cfg.Bucket), err)
		}
		logger.InfoContext(ctx, "created bucket", slog.String("bucket", cfg.Bucket))
	}

	return newMirror(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newMirror(client objectPutter, bucket, prefix string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key of localPath below root
func (m *Mirror) Key(root, localPath string) (string, error) {
	rel, err := filepath.Rel(root, localPath)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside of %s", localPath, root)
	}
	if m.prefix == "" {
		return rel, nil
	}
	return path.Join(m.prefix, rel), nil
}

// Upload copies localPath to the bucket and returns its key
func (m *Mirror) Upload(ctx context.Context, root, localPath string) (string, error) {
	key, err := m.Key(root, localPath)
	if err != nil {
		return "", apperrors.NewStorageError("failed to derive object key", err)
	}

	info, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to mirror file",
			slog.String("bucket", m.bucket),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to upload %s", localPath), err)
	}

	m.logger.InfoContext(ctx, "mirrored file",
		slog.String("bucket", m.bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size))
	return key, nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
