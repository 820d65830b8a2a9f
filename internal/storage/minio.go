package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements the Storage interface against a MinIO bucket.
type MinIOStorage struct {
	client        *minio.Client
	bucketName    string
	publicURL     string
	presignExpiry time.Duration
	logger        *slog.Logger
}

var _ Storage = (*MinIOStorage)(nil)

// NewMinIOStorage creates a client for the configured bucket. Call
// EnsureBucket once at startup to create the bucket if needed.
func NewMinIOStorage(cfg MinIOConfig, logger *slog.Logger) (*MinIOStorage, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("minio endpoint and bucket name are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry == 0 {
		expiry = time.Hour
	}

	logger.Info("initialized MinIO storage",
		"bucket", cfg.BucketName,
		"endpoint", cfg.Endpoint,
		"public_url", cfg.PublicURL,
	)

	return &MinIOStorage{
		client:        client,
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		presignExpiry: expiry,
		logger:        logger,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("created MinIO bucket", "bucket", s.bucketName)
	return nil
}

// Put streams the document to MinIO. With an unknown size the client falls
// back to a multipart upload.
func (s *MinIOStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to check existence: %w", err)}
		}
		if exists {
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	size := opts.Size
	if size <= 0 {
		size = -1
	}
	contentType := DetectContentType(opts.ContentType, key, nil)

	body := limitBody(data, opts.MaxSize)
	info, err := s.client.PutObject(ctx, s.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			// Best effort: the object may have been created before the limit tripped.
			_ = s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
		}
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: wrapMinIOError(err)}
	}

	s.logger.Debug("stored object in MinIO", "key", key, "size", info.Size, "etag", info.ETag)

	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified,
		ETag:         info.ETag,
	}, nil
}

// Get retrieves the data at the specified key.
func (s *MinIOStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapMinIOError(err)}
	}

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapMinIOError(err)}
	}

	return obj, ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
		ETag:         stat.ETag,
	}, nil
}

// Delete removes the object at the specified key.
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: wrapMinIOError(err)}
	}
	s.logger.Debug("deleted object from MinIO", "key", key)
	return nil
}

// URL returns the public URL when configured and expires is 0, otherwise a
// presigned GET URL.
func (s *MinIOStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}
	if expires == 0 {
		expires = s.presignExpiry
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, expires, nil)
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("failed to generate presigned URL: %w", err)}
	}
	return u.String(), nil
}

// Exists checks if an object exists at the specified key.
func (s *MinIOStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if errors.Is(wrapMinIOError(err), ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapMinIOError(err)}
	}
	return true, nil
}

// wrapMinIOError converts MinIO client errors to storage errors.
func wrapMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return ErrAccessDenied
	}
	return fmt.Errorf("MinIO operation failed: %w", err)
}
