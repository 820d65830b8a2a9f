package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
)

// clearProviderEnv blanks every variable that changes validation so a key
// exported in the developer's shell cannot satisfy a required setting.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORAGE_PROVIDER",
		"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY_ID", "MINIO_SECRET_ACCESS_KEY",
		"AI_PROVIDER", "ANTHROPIC_API_KEY",
		"OCR_PROVIDER", "OCR_SPACE_API_KEY",
		"CREDIT_SELECTION_POLICY",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
		"UPLOAD_MAX_BYTES", "QUICK_UPLOAD_MAX_BYTES",
		"INTERNAL_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/resumezen")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.UploadMaxBytes != 5<<20 || cfg.QuickUploadMaxBytes != 1<<20 {
		t.Errorf("upload ceilings = %d/%d, want 5MiB/1MiB", cfg.UploadMaxBytes, cfg.QuickUploadMaxBytes)
	}
	if cfg.CreditSelectionPolicy != domain.SelectMostRecent {
		t.Errorf("policy = %q, want most_recent", cfg.CreditSelectionPolicy)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Errorf("provider timeout = %v, want 60s", cfg.ProviderTimeout)
	}
	if cfg.BillingEnabled() {
		t.Error("billing should be disabled without Stripe keys")
	}
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "ftp"}},
		{"r2 without account", map[string]string{"STORAGE_PROVIDER": "r2"}},
		{"minio without endpoint", map[string]string{"STORAGE_PROVIDER": "minio"}},
		{"anthropic without key", map[string]string{"AI_PROVIDER": "anthropic"}},
		{"ocrspace without key", map[string]string{"OCR_PROVIDER": "ocrspace"}},
		{"unknown policy", map[string]string{"CREDIT_SELECTION_POLICY": "random"}},
		{"half stripe", map[string]string{"STRIPE_SECRET_KEY": "sk_test_1"}},
		{"zero upload ceiling", map[string]string{"UPLOAD_MAX_BYTES": "0"}},
		{"short internal token", map[string]string{"INTERNAL_API_TOKEN": "letmein"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/resumezen")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := NewConfig(); err == nil {
				t.Error("NewConfig() error = nil, want error")
			}
		})
	}
}

func TestNewConfig_Overrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/resumezen")
	t.Setenv("STORAGE_PROVIDER", "minio")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio123")
	t.Setenv("UPLOAD_MAX_BYTES", "10485760")
	t.Setenv("AI_ALLOWED_MODELS", " model-a, ,model-b ")
	t.Setenv("CREDIT_SELECTION_POLICY", "soonest_expiry")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")
	t.Setenv("INTERNAL_API_TOKEN", strings.Repeat("k", 32))

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.UploadMaxBytes != 10<<20 {
		t.Errorf("UploadMaxBytes = %d, want 10MiB", cfg.UploadMaxBytes)
	}
	if len(cfg.AIAllowedModels) != 2 || cfg.AIAllowedModels[1] != "model-b" {
		t.Errorf("AIAllowedModels = %v", cfg.AIAllowedModels)
	}
	if cfg.CreditSelectionPolicy != domain.SelectSoonestExpiry {
		t.Errorf("policy = %q", cfg.CreditSelectionPolicy)
	}
	if !cfg.BillingEnabled() {
		t.Error("billing should be enabled")
	}
	if len(cfg.InternalAPIToken) != 32 {
		t.Errorf("InternalAPIToken length = %d, want 32", len(cfg.InternalAPIToken))
	}
}
