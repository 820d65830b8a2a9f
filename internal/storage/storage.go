// Package storage stores uploaded resume documents.
//
// Three implementations share the Storage interface:
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage
// - MinIOStorage: self-hosted MinIO buckets
//
// The OCR service fetches documents by URL, so every implementation must be
// able to hand out a URL that is reachable from outside the process.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for document storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key and returns what was written.
	// Returns ErrKeyExists if the key is taken (unless opts.Overwrite) and
	// ErrTooLarge if more than opts.MaxSize bytes are read.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (ObjectInfo, error)

	// Get retrieves the data at the specified key.
	// The caller must close the returned reader. Returns ErrNotFound if the
	// key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Deleting a missing
	// key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object. With expires == 0 a permanent public
	// URL is returned when the backend has one, otherwise a presigned URL.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it is detected from the key's extension.
	ContentType string

	// Size is the exact size when known, or -1. Backends that stream
	// multipart uploads use it to pick a part size.
	Size int64

	// MaxSize is the maximum allowed size in bytes. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object as publicly readable where supported.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key/path
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./storage" or "/var/lib/resumezen/files"
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the public URL for the bucket (if using a custom domain).
	// If empty, presigned URLs are used for all access.
	PublicURL string

	// Region defaults to "auto"; R2 is globally distributed.
	Region string

	// Endpoint overrides the account endpoint (tests, S3-compatible hosts).
	Endpoint string
}

// MinIOConfig holds configuration for a MinIO bucket.
type MinIOConfig struct {
	Endpoint        string // host:port, no scheme
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool

	// PublicURL serves objects directly when the bucket policy allows it.
	PublicURL string

	// PresignExpiry is used when PublicURL is empty. Defaults to 1 hour.
	PresignExpiry time.Duration
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"

	// ProviderMinIO identifies the MinIO storage provider.
	ProviderMinIO = "minio"
)

// =============================================================================
// Key Helpers
// =============================================================================

// resumePrefix is the top-level folder for uploaded resumes.
const resumePrefix = "resumes"

// ResumeKey generates a storage key for an uploaded resume.
// Format: resumes/{userID}/{uuid}{ext}
//
// The extension comes from the filename when it has one, otherwise from the
// content type.
func ResumeKey(userID uuid.UUID, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ExtensionForContentType(contentType)
	}
	return fmt.Sprintf("%s/%s/%s%s", resumePrefix, userID, uuid.New(), ext)
}

// UserPrefix returns the key prefix under which a user's resumes live.
func UserPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", resumePrefix, userID)
}

// OwnsKey reports whether key was issued to userID by ResumeKey.
func OwnsKey(userID uuid.UUID, key string) bool {
	if strings.Contains(key, "..") {
		return false
	}
	rest, ok := strings.CutPrefix(key, UserPrefix(userID))
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// FormatFromKey returns the file format ("pdf", "docx") implied by a key.
func FormatFromKey(key string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")
}
