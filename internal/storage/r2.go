package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// =============================================================================
// R2Storage Implementation
// =============================================================================

// R2Storage implements the Storage interface using Cloudflare R2.
// R2 is S3-compatible, so we use the AWS SDK v2 with a custom endpoint.
type R2Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicURL     string // Optional public URL (e.g., custom domain)
	logger        *slog.Logger
}

var _ Storage = (*R2Storage)(nil)

// NewR2Storage creates a new R2Storage instance.
//
// The endpoint is https://{account_id}.r2.cloudflarestorage.com unless
// cfg.Endpoint is set.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("r2 bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token not needed for R2
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.Endpoint != ""
	})

	logger.Info("initialized R2 storage",
		"bucket", cfg.BucketName,
		"endpoint", endpoint,
		"public_url", cfg.PublicURL,
	)

	return &R2Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:        logger,
	}, nil
}

// Put uploads the document. The SDK needs a seekable body to sign the
// payload, so the document is buffered up to MaxSize first; resumes are
// small enough for that.
func (s *R2Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (ObjectInfo, error) {
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

	body, err := io.ReadAll(limitBody(data, opts.MaxSize))
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
		}
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	contentType := DetectContentType(opts.ContentType, key, nil)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	}
	if opts.Public {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("stored object in R2",
		"key", key,
		"etag", aws.ToString(result.ETag),
		"size", len(body),
		"content_type", contentType,
	)

	return ObjectInfo{
		Key:          key,
		Size:         int64(len(body)),
		ContentType:  contentType,
		LastModified: time.Now(),
		ETag:         aws.ToString(result.ETag),
	}, nil
}

// Get retrieves the data at the specified key.
func (s *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapS3Error(err)}
	}

	return result.Body, ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
	}, nil
}

// Delete removes the object at the specified key.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("deleted object from R2", "key", key)
	return nil
}

// URL returns the public URL when configured and expires is 0, otherwise a
// presigned GET URL (default 15 minutes).
func (s *R2Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}
	if expires == 0 {
		expires = 15 * time.Minute
	}

	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("failed to generate presigned URL: %w", err)}
	}

	return request.URL, nil
}

// Exists checks if an object exists at the specified key.
func (s *R2Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(wrapS3Error(err), ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapS3Error(err)}
	}

	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// validateKey rejects empty keys and keys with path traversal.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}

// wrapS3Error converts S3 SDK errors to storage errors.
func wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}

	return fmt.Errorf("R2 operation failed: %w", err)
}
