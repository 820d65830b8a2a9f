// Package domain contains core business types and interfaces.
//
// This file defines the upload rules applied to resume documents before
// anything is stored or sent to a provider.
package domain

import (
	"fmt"
	"io"
	"mime"
	"strings"
)

// Document content types accepted by at least one entry point.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOC  = "application/msword"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// SupportedDocumentTypes maps MIME types to their human-readable names.
var SupportedDocumentTypes = map[string]string{
	ContentTypePDF:  "PDF",
	ContentTypeDOC:  "DOC",
	ContentTypeDOCX: "DOCX",
}

const (
	// DefaultUploadMaxBytes is the generic uploader ceiling (5MB).
	DefaultUploadMaxBytes = 5 * 1024 * 1024

	// DefaultQuickUploadMaxBytes is the dashboard quick-analyze ceiling (1MB).
	DefaultQuickUploadMaxBytes = 1 * 1024 * 1024
)

// UploadRule is the acceptance policy of one upload entry point.
type UploadRule struct {
	Name         string
	AllowedTypes []string
	MaxBytes     int64
}

// GenericUploadRule accepts PDF, DOC and DOCX up to maxBytes.
func GenericUploadRule(maxBytes int64) UploadRule {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return UploadRule{
		Name:         "upload",
		AllowedTypes: []string{ContentTypePDF, ContentTypeDOC, ContentTypeDOCX},
		MaxBytes:     maxBytes,
	}
}

// QuickUploadRule accepts PDF only up to maxBytes.
func QuickUploadRule(maxBytes int64) UploadRule {
	if maxBytes <= 0 {
		maxBytes = DefaultQuickUploadMaxBytes
	}
	return UploadRule{
		Name:         "quick_upload",
		AllowedTypes: []string{ContentTypePDF},
		MaxBytes:     maxBytes,
	}
}

// Allows reports whether the (normalized) content type is accepted.
func (r UploadRule) Allows(contentType string) bool {
	ct := NormalizeContentType(contentType)
	for _, allowed := range r.AllowedTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// AllowedNames returns the human-readable names of accepted formats.
func (r UploadRule) AllowedNames() string {
	names := make([]string, 0, len(r.AllowedTypes))
	for _, ct := range r.AllowedTypes {
		names = append(names, SupportedDocumentTypes[ct])
	}
	return strings.Join(names, ", ")
}

// Validate checks the declared content type and size. A size equal to the
// ceiling is accepted.
func (r UploadRule) Validate(contentType string, size int64) error {
	op := r.Name + ".validate"
	if !r.Allows(contentType) {
		ct := NormalizeContentType(contentType)
		if ct == "" {
			ct = "unknown"
		}
		return NewValidationError(op, "file",
			fmt.Sprintf("Unsupported file type %q. Allowed formats: %s.", ct, r.AllowedNames()))
	}
	if size <= 0 {
		return NewValidationError(op, "file", "The uploaded file is empty.")
	}
	if size > r.MaxBytes {
		return Errorf(ETOOLARGE, op, "File is %s, which exceeds the %s limit.", FormatBytes(size), FormatBytes(r.MaxBytes))
	}
	return nil
}

// NormalizeContentType lower-cases a MIME type and drops its parameters.
func NormalizeContentType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// FormatBytes renders a byte count as KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%dB", n)
}

// UploadedDocument is a document received from a client. It is not
// persisted; only its storage key and URL outlive the request.
type UploadedDocument struct {
	FileName    string
	ContentType string // Declared by the client
	Size        int64
	Body        io.Reader
}

// StoredDocument describes a document after it was written to storage.
type StoredDocument struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
}
