package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadService_Check(t *testing.T) {
	docx := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 100)...)

	tests := []struct {
		name        string
		rule        domain.UploadRule
		contentType string
		body        []byte
		size        int64 // defaults to len(body)
		wantCode    string
	}{
		{name: "pdf accepted", rule: domain.GenericUploadRule(0), contentType: "application/pdf", body: pdfBytes(200)},
		{name: "content type parameters ignored", rule: domain.GenericUploadRule(0), contentType: "Application/PDF; charset=binary", body: pdfBytes(200)},
		{name: "docx accepted by generic", rule: domain.GenericUploadRule(0), contentType: domain.ContentTypeDOCX, body: docx},
		{name: "docx rejected by quick", rule: domain.QuickUploadRule(0), contentType: domain.ContentTypeDOCX, body: docx, wantCode: domain.EINVALID},
		{name: "png rejected", rule: domain.GenericUploadRule(0), contentType: "image/png", body: []byte("\x89PNG\r\n\x1a\n"), wantCode: domain.EINVALID},
		{name: "empty rejected", rule: domain.GenericUploadRule(0), contentType: "application/pdf", body: nil, size: 0, wantCode: domain.EINVALID},
		{name: "at ceiling accepted", rule: domain.QuickUploadRule(512), contentType: "application/pdf", body: pdfBytes(512)},
		{name: "ceiling plus one rejected", rule: domain.QuickUploadRule(512), contentType: "application/pdf", body: pdfBytes(513), wantCode: domain.ETOOLARGE},
		{name: "pdf label on docx content", rule: domain.GenericUploadRule(0), contentType: "application/pdf", body: docx, wantCode: domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			size := tt.size
			if size == 0 {
				size = int64(len(tt.body))
			}

			body, err := env.uploads.Check(tt.rule, domain.UploadedDocument{
				FileName:    "resume",
				ContentType: tt.contentType,
				Size:        size,
				Body:        bytes.NewReader(tt.body),
			})
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
				assert.NotEmpty(t, domain.ErrorMessage(err))
				return
			}
			require.NoError(t, err)

			// The document is forwarded unchanged.
			got, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, got)
		})
	}
}

func TestUploadService_Store(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	stored, err := env.uploads.Store(ctx, userID, domain.GenericUploadRule(0), *pdfDocument(2048))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PublicID, "resumes/"+userID.String()+"/"))
	assert.True(t, strings.HasSuffix(stored.PublicID, ".pdf"))
	assert.Equal(t, "pdf", stored.Format)
	assert.Equal(t, int64(2048), stored.Size)
	assert.Equal(t, "http://localhost:8080/files/"+stored.PublicID, stored.URL)

	rc, _, err := env.storage.Get(ctx, stored.PublicID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes(2048), data)
}

func TestUploadService_Store_UnderstatedSize(t *testing.T) {
	env := newTestEnv(t)
	data := pdfBytes(2048)

	_, err := env.uploads.Store(context.Background(), uuid.New(), domain.QuickUploadRule(1024), domain.UploadedDocument{
		FileName:    "resume.pdf",
		ContentType: domain.ContentTypePDF,
		Size:        100,
		Body:        bytes.NewReader(data),
	})
	require.Error(t, err)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
	assert.Zero(t, env.storedFiles(t))
}

func TestUploadService_Resolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	stored, err := env.uploads.Store(ctx, userID, domain.GenericUploadRule(0), *pdfDocument(600))
	require.NoError(t, err)

	got, err := env.uploads.Resolve(ctx, userID, stored.PublicID)
	require.NoError(t, err)
	assert.Equal(t, stored.URL, got.URL)

	_, err = env.uploads.Resolve(ctx, uuid.New(), stored.PublicID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = env.uploads.Resolve(ctx, userID, "resumes/"+userID.String()+"/missing.pdf")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = env.uploads.Resolve(ctx, userID, "resumes/"+userID.String()+"/../other/x.pdf")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
