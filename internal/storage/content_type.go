package storage

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/DukeRupert/resumezen/internal/domain"
)

// SniffLen is how many leading bytes content detection looks at.
const SniffLen = 512

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1")
)

// =============================================================================
// Content Type Detection
// =============================================================================

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
// 1. If providedType is non-empty, use it directly
// 2. Try to detect from file extension using mime.TypeByExtension
// 3. Sniff content from the first 512 bytes of data (if available)
// 4. Fall back to "application/octet-stream"
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return domain.ContentTypePDF
	case ".docx":
		return domain.ContentTypeDOCX
	case ".doc":
		return domain.ContentTypeDOC
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, SniffLen)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			if t := SniffDocumentType(buffer[:n]); t != "" {
				return t
			}
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// SniffDocumentType identifies PDF, DOCX and DOC documents by their leading
// bytes. It returns "" for anything else. A zip container is reported as
// DOCX; the OLE compound format as DOC.
func SniffDocumentType(head []byte) string {
	switch {
	case bytes.HasPrefix(head, pdfMagic):
		return domain.ContentTypePDF
	case bytes.HasPrefix(head, zipMagic):
		return domain.ContentTypeDOCX
	case bytes.HasPrefix(head, oleMagic):
		return domain.ContentTypeDOC
	default:
		return ""
	}
}

// ContentMatches reports whether the leading bytes agree with the declared
// document type.
func ContentMatches(declared string, head []byte) bool {
	return SniffDocumentType(head) == domain.NormalizeContentType(declared)
}

// =============================================================================
// File Extension Helpers
// =============================================================================

// ExtensionForContentType returns a common file extension for a MIME type.
func ExtensionForContentType(contentType string) string {
	switch domain.NormalizeContentType(contentType) {
	case domain.ContentTypePDF:
		return ".pdf"
	case domain.ContentTypeDOCX:
		return ".docx"
	case domain.ContentTypeDOC:
		return ".doc"
	}

	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
