package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for checkout return links)
	BaseURL string

	// Sessions
	SessionDuration time.Duration

	// Storage Configuration
	StorageProvider string // "local", "r2" or "minio"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// MinIO Storage (self-hosted)
	MinIOEndpoint        string
	MinIOAccessKeyID     string
	MinIOSecretAccessKey string
	MinIOBucketName      string
	MinIOUseSSL          bool
	MinIOPublicURL       string

	// StorageURLExpiry is the lifetime of presigned document URLs. 0 asks
	// for permanent URLs where the provider has them.
	StorageURLExpiry time.Duration

	// Upload ceilings
	UploadMaxBytes      int64 // generic uploader
	QuickUploadMaxBytes int64 // dashboard quick-analyze

	// Worker Configuration
	WorkerEnabled       bool
	WorkerConcurrency   int
	WorkerPollInterval  time.Duration
	WorkerJobTimeout    time.Duration
	MaintenanceInterval time.Duration

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIAllowedModels  []string
	AIRequestTimeout time.Duration

	// OCR Provider Configuration
	OCRProvider   string // "ocrspace" or "mock"
	OCRSpaceKey   string
	OCRSpaceURL   string
	OCRRequestMax time.Duration

	// ProviderTimeout bounds each storage, OCR and AI call made while
	// analyzing a resume.
	ProviderTimeout time.Duration

	// KeepExtractedText stores the OCR text with each analysis record.
	KeepExtractedText bool

	// Credits
	CreditSelectionPolicy domain.SelectionPolicy
	PlanCatalogTTL        time.Duration

	// Rate limiting for analysis routes, per user. 0 disables it.
	AnalyzeRatePerMinute int

	// Stripe Billing Configuration
	// Without these, purchases are granted immediately (development stub).
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Shared secret for the direct credit routes. Empty disables them.
	InternalAPIToken string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		SessionDuration: getEnvDuration("SESSION_DURATION", 7*24*time.Hour),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKeyID:     getEnv("MINIO_ACCESS_KEY_ID", ""),
		MinIOSecretAccessKey: getEnv("MINIO_SECRET_ACCESS_KEY", ""),
		MinIOBucketName:      getEnv("MINIO_BUCKET_NAME", "resumes"),
		MinIOUseSSL:          getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicURL:       getEnv("MINIO_PUBLIC_URL", ""),

		StorageURLExpiry: getEnvDuration("STORAGE_URL_EXPIRY", time.Hour),

		UploadMaxBytes:      getEnvInt64("UPLOAD_MAX_BYTES", domain.DefaultUploadMaxBytes),
		QuickUploadMaxBytes: getEnvInt64("QUICK_UPLOAD_MAX_BYTES", domain.DefaultQuickUploadMaxBytes),

		// Worker defaults
		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:    getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),
		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", 15*time.Minute),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIAllowedModels:  getEnvList("AI_ALLOWED_MODELS"),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// OCR provider defaults
		OCRProvider:   getEnv("OCR_PROVIDER", "mock"),
		OCRSpaceKey:   getEnv("OCR_SPACE_API_KEY", ""),
		OCRSpaceURL:   getEnv("OCR_SPACE_URL", ""),
		OCRRequestMax: getEnvDuration("OCR_REQUEST_TIMEOUT", 60*time.Second),

		ProviderTimeout:   getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		KeepExtractedText: getEnvBool("KEEP_EXTRACTED_TEXT", false),

		CreditSelectionPolicy: domain.SelectionPolicy(getEnv("CREDIT_SELECTION_POLICY", string(domain.SelectMostRecent))),
		PlanCatalogTTL:        getEnvDuration("PLAN_CATALOG_TTL", 5*time.Minute),

		AnalyzeRatePerMinute: getEnvInt("ANALYZE_RATE_PER_MINUTE", 6),

		// Stripe billing is optional; purchases are granted directly without it
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		InternalAPIToken: getEnv("INTERNAL_API_TOKEN", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BillingEnabled reports whether Stripe checkout is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

const minInternalTokenLen = 32

func (c *Config) validate() error {
	// Validate storage configuration
	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	case "minio":
		if c.MinIOEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_PROVIDER is 'minio'")
		}
		if c.MinIOAccessKeyID == "" || c.MinIOSecretAccessKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY_ID and MINIO_SECRET_ACCESS_KEY are required when STORAGE_PROVIDER is 'minio'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be 'local', 'r2' or 'minio', got: %s", c.StorageProvider)
	}

	// Validate AI provider configuration
	if c.AIProvider == "anthropic" {
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if c.AIProvider != "mock" {
		return fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", c.AIProvider)
	}

	// Validate OCR provider configuration
	if c.OCRProvider == "ocrspace" {
		if c.OCRSpaceKey == "" {
			return fmt.Errorf("OCR_SPACE_API_KEY is required when OCR_PROVIDER is 'ocrspace'")
		}
	} else if c.OCRProvider != "mock" {
		return fmt.Errorf("OCR_PROVIDER must be either 'ocrspace' or 'mock', got: %s", c.OCRProvider)
	}

	if !c.CreditSelectionPolicy.IsValid() {
		return fmt.Errorf("CREDIT_SELECTION_POLICY must be 'most_recent' or 'soonest_expiry', got: %s", c.CreditSelectionPolicy)
	}

	if c.UploadMaxBytes <= 0 || c.QuickUploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES and QUICK_UPLOAD_MAX_BYTES must be positive")
	}

	// A half-configured Stripe account would take payments it cannot confirm.
	if (c.StripeSecretKey == "") != (c.StripeWebhookSecret == "") {
		return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set together")
	}

	if c.InternalAPIToken != "" && len(c.InternalAPIToken) < minInternalTokenLen {
		return fmt.Errorf("INTERNAL_API_TOKEN must be at least %d characters", minInternalTokenLen)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
