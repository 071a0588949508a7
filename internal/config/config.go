// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Sessions
	SessionTTL time.Duration

	// Master bootstrap. The master account is auto-provisioned at boot when
	// absent; the password is only used on first creation.
	MasterUsername string
	MasterPassword string

	// Panel billing. The flat price-table model is the active one; these
	// knobs keep the metered model's data shape available as configuration.
	OnboardingFee  float64
	PricePerClient float64

	// Licensing
	LicenseCacheTTL time.Duration

	// HTTP hardening
	CORSOrigins      []string
	RateLimitEnabled bool

	// Sweeps
	SweepEnabled bool

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultSessionTTL      = 12 * time.Hour
	DefaultLicenseCacheTTL = time.Minute
	DefaultMasterUsername  = "master"
	DefaultOnboardingFee   = 100
	DefaultPricePerClient  = 1.5
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SessionTTL:       getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		MasterUsername:   getEnv("MASTER_USERNAME", DefaultMasterUsername),
		MasterPassword:   os.Getenv("MASTER_PASSWORD"),
		OnboardingFee:    getEnvFloat("ONBOARDING_FEE", DefaultOnboardingFee),
		PricePerClient:   getEnvFloat("PRICE_PER_CLIENT", DefaultPricePerClient),
		LicenseCacheTTL:  getEnvDuration("LICENSE_CACHE_TTL", DefaultLicenseCacheTTL),
		CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		SweepEnabled:     getEnvBool("SWEEP_ENABLED", true),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.MasterUsername == "" {
		return fmt.Errorf("MASTER_USERNAME must not be empty")
	}
	if c.IsProduction() && c.MasterPassword == "" {
		return fmt.Errorf("MASTER_PASSWORD is required in production")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LicenseCacheTTL <= 0 {
		return fmt.Errorf("LICENSE_CACHE_TTL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
