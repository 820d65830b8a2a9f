package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UploadService is the validation gate in front of document storage.
// A rejected document never reaches storage, OCR or the AI provider.
type UploadService interface {
	// Check validates a document against rule without storing it. On
	// success it returns a reader that yields the complete document.
	Check(rule domain.UploadRule, doc domain.UploadedDocument) (io.Reader, error)

	// Store checks the document and writes it under the user's prefix.
	Store(ctx context.Context, userID uuid.UUID, rule domain.UploadRule, doc domain.UploadedDocument) (*domain.StoredDocument, error)

	// Resolve returns a fetchable URL for a document the user uploaded
	// earlier. Returns domain.ENOTFOUND for keys outside the user's prefix
	// or missing objects.
	Resolve(ctx context.Context, userID uuid.UUID, publicID string) (*domain.StoredDocument, error)
}

// UploadServiceConfig configures document URLs.
type UploadServiceConfig struct {
	// URLExpiry is passed to Storage.URL. 0 asks for a permanent URL.
	URLExpiry time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

type uploadService struct {
	storage   storage.Storage
	urlExpiry time.Duration
	logger    *slog.Logger
}

// NewUploadService creates a new UploadService instance.
func NewUploadService(store storage.Storage, cfg UploadServiceConfig, logger *slog.Logger) UploadService {
	return &uploadService{
		storage:   store,
		urlExpiry: cfg.URLExpiry,
		logger:    logger,
	}
}

func (s *uploadService) Check(rule domain.UploadRule, doc domain.UploadedDocument) (io.Reader, error) {
	op := rule.Name + ".check"

	if err := rule.Validate(doc.ContentType, doc.Size); err != nil {
		s.reject(rule, doc, rejectReason(rule, doc, err))
		return nil, err
	}
	if doc.Body == nil {
		s.reject(rule, doc, "empty")
		return nil, domain.NewValidationError(op, "file", "The uploaded file is empty.")
	}

	head := make([]byte, storage.SniffLen)
	n, err := io.ReadFull(doc.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, domain.Internal(err, op, "Failed to read the uploaded file")
	}
	head = head[:n]
	if n == 0 {
		s.reject(rule, doc, "empty")
		return nil, domain.NewValidationError(op, "file", "The uploaded file is empty.")
	}

	if !storage.ContentMatches(doc.ContentType, head) {
		s.reject(rule, doc, "content_mismatch")
		return nil, domain.NewValidationError(op, "file",
			fmt.Sprintf("The file content is not a valid %s document.", domain.SupportedDocumentTypes[domain.NormalizeContentType(doc.ContentType)]))
	}

	return io.MultiReader(bytes.NewReader(head), doc.Body), nil
}

func (s *uploadService) Store(ctx context.Context, userID uuid.UUID, rule domain.UploadRule, doc domain.UploadedDocument) (*domain.StoredDocument, error) {
	op := rule.Name + ".store"

	body, err := s.Check(rule, doc)
	if err != nil {
		return nil, err
	}

	contentType := domain.NormalizeContentType(doc.ContentType)
	key := storage.ResumeKey(userID, doc.FileName, contentType)

	start := time.Now()
	info, err := s.storage.Put(ctx, key, body, storage.PutOptions{
		ContentType: contentType,
		Size:        doc.Size,
		MaxSize:     rule.MaxBytes,
	})
	metrics.ProviderCall("storage", start, err)
	if err != nil {
		if storage.IsTooLarge(err) {
			// The declared size was wrong; the real body is over the ceiling.
			s.reject(rule, doc, "too_large")
			return nil, domain.Errorf(domain.ETOOLARGE, op, "File exceeds the %s limit.", domain.FormatBytes(rule.MaxBytes))
		}
		return nil, domain.Provider(err, op, "We couldn't store your file. Please try again.")
	}

	url, err := s.storage.URL(ctx, key, s.urlExpiry)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove unreachable upload", "key", key, "error", delErr)
		}
		return nil, domain.Provider(err, op, "We couldn't store your file. Please try again.")
	}

	s.logger.Info("document stored",
		"user_id", userID,
		"key", key,
		"size", info.Size,
		"content_type", contentType,
		"entry_point", rule.Name,
	)

	return &domain.StoredDocument{
		URL:      url,
		PublicID: key,
		Format:   storage.FormatFromKey(key),
		Size:     info.Size,
	}, nil
}

func (s *uploadService) Resolve(ctx context.Context, userID uuid.UUID, publicID string) (*domain.StoredDocument, error) {
	const op = "UploadService.Resolve"

	if !storage.OwnsKey(userID, publicID) {
		return nil, domain.NotFound(op, "document", publicID)
	}

	exists, err := s.storage.Exists(ctx, publicID)
	if err != nil {
		return nil, domain.Provider(err, op, "We couldn't reach your file. Please try again.")
	}
	if !exists {
		return nil, domain.NotFound(op, "document", publicID)
	}

	url, err := s.storage.URL(ctx, publicID, s.urlExpiry)
	if err != nil {
		return nil, domain.Provider(err, op, "We couldn't reach your file. Please try again.")
	}

	return &domain.StoredDocument{
		URL:      url,
		PublicID: publicID,
		Format:   storage.FormatFromKey(publicID),
	}, nil
}

func (s *uploadService) reject(rule domain.UploadRule, doc domain.UploadedDocument, reason string) {
	metrics.UploadsRejected.WithLabelValues(rule.Name, reason).Inc()
	s.logger.Info("upload rejected",
		"entry_point", rule.Name,
		"reason", reason,
		"content_type", doc.ContentType,
		"size", doc.Size,
	)
}

func rejectReason(rule domain.UploadRule, doc domain.UploadedDocument, err error) string {
	switch {
	case domain.ErrorCode(err) == domain.ETOOLARGE:
		return "too_large"
	case rule.Allows(doc.ContentType) && doc.Size <= 0:
		return "empty"
	default:
		return "invalid_type"
	}
}
