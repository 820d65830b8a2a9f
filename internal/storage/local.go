package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// LocalStorage Implementation
// =============================================================================

// LocalStorage implements the Storage interface using the local filesystem.
// Files are served back over HTTP by Handler so that URLs can be handed to
// the OCR service during development (behind a tunnel).
//
// Security: Path traversal prevention is enforced in resolvePath().
type LocalStorage struct {
	basePath string // Root directory for file storage
	baseURL  string // Base URL for file access
	logger   *slog.Logger
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance.
//
// The base directory is created if it doesn't exist.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	logger.Info("initialized local storage",
		"base_path", absPath,
		"base_url", baseURL,
	)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  baseURL,
		logger:   logger,
	}, nil
}

// Put writes data to a temporary file and renames it into place, so a
// rejected or failed upload never leaves a partial document behind.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	body := limitBody(data, opts.MaxSize)
	_, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil {
		if errors.Is(copyErr, ErrTooLarge) {
			return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
		}
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to write file: %w", copyErr)}
	}
	if closeErr != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to close file: %w", closeErr)}
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return ObjectInfo{}, &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to move file into place: %w", err)}
	}

	info := ObjectInfo{
		Key:          key,
		Size:         body.n,
		ContentType:  DetectContentType(opts.ContentType, key, nil),
		LastModified: time.Now(),
	}

	s.logger.Debug("stored file",
		"key", key,
		"path", filePath,
		"size", info.Size,
		"content_type", info.ContentType,
	)

	return info, nil
}

// Get retrieves the data at the specified key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to open file: %w", err)}
	}

	return file, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType("", key, nil),
		LastModified: stat.ModTime(),
	}, nil
}

// Delete removes the object at the specified key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: key, Err: fmt.Errorf("failed to delete file: %w", err)}
	}

	s.logger.Debug("deleted file", "key", key)
	return nil
}

// URL returns the public URL of the object; expires is ignored.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	return true, nil
}

// Handler serves stored files read-only. Mount it under the path of BaseURL
// with http.StripPrefix.
func (s *LocalStorage) Handler() http.Handler {
	return http.FileServer(http.Dir(s.basePath))
}

// =============================================================================
// Internal Helpers
// =============================================================================

// resolvePath converts a storage key to an absolute file path inside basePath.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") || filepath.IsAbs(cleanKey) {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return absPath, nil
}
