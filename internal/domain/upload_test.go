package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadRule_Validate(t *testing.T) {
	generic := GenericUploadRule(0)
	quick := QuickUploadRule(0)

	tests := []struct {
		name        string
		rule        UploadRule
		contentType string
		size        int64
		wantCode    string
	}{
		{"generic pdf", generic, ContentTypePDF, 1024, ""},
		{"generic docx", generic, ContentTypeDOCX, 1024, ""},
		{"generic doc", generic, ContentTypeDOC, 1024, ""},
		{"generic pdf with params", generic, "Application/PDF; charset=binary", 1024, ""},
		{"generic png rejected", generic, "image/png", 1024, EINVALID},
		{"generic missing type", generic, "", 1024, EINVALID},
		{"generic at ceiling", generic, ContentTypePDF, DefaultUploadMaxBytes, ""},
		{"generic one over ceiling", generic, ContentTypePDF, DefaultUploadMaxBytes + 1, ETOOLARGE},
		{"empty file", generic, ContentTypePDF, 0, EINVALID},
		{"quick pdf", quick, ContentTypePDF, 1024, ""},
		{"quick docx rejected", quick, ContentTypeDOCX, 1024, EINVALID},
		{"quick at ceiling", quick, ContentTypePDF, DefaultQuickUploadMaxBytes, ""},
		{"quick one over ceiling", quick, ContentTypePDF, DefaultQuickUploadMaxBytes + 1, ETOOLARGE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(tt.contentType, tt.size)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
			assert.NotEmpty(t, ErrorMessage(err))
		})
	}
}

func TestUploadRule_ReasonIsReadable(t *testing.T) {
	err := QuickUploadRule(0).Validate("image/jpeg", 10)
	assert.Equal(t, `Unsupported file type "image/jpeg". Allowed formats: PDF.`, ErrorMessage(err))

	err = GenericUploadRule(0).Validate(ContentTypePDF, DefaultUploadMaxBytes+1)
	assert.Contains(t, ErrorMessage(err), "exceeds the 5.0MB limit")
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", NormalizeContentType(" application/PDF "))
	assert.Equal(t, "application/pdf", NormalizeContentType("application/pdf; name=cv.pdf"))
	assert.Equal(t, "", NormalizeContentType(""))
}
