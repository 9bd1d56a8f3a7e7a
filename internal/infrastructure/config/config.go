package config

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8086"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// ServiceToken guards the /v1 surface when set; empty disables the
	// guard for local development.
	ServiceToken string `env:"SERVICE_TOKEN"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Verifier VerifierConfig
	Draft    DraftConfig
	Profile  ProfileConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=bonitaforward"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type AuthConfig struct {
	BaseURL       string        `env:"AUTH_URL,     default=http://localhost:9999"`
	APIKey        string        `env:"AUTH_API_KEY"`
	Timeout       time.Duration `env:"AUTH_TIMEOUT, default=10s"`
	RefreshMargin time.Duration `env:"AUTH_REFRESH_MARGIN, default=2m"`
}

type VerifierConfig struct {
	URL       string        `env:"ADMIN_VERIFY_URL"`
	Timeout   time.Duration `env:"ADMIN_VERIFY_TIMEOUT, default=5s"`
	Allowlist []string      `env:"ADMIN_ALLOWLIST"`
}

type DraftConfig struct {
	// Scope keys this instance's pending-draft slot. Instances sharing a
	// scope share drafts; distinct scopes are isolated.
	Scope string        `env:"DRAFT_SCOPE, default=local"`
	TTL   time.Duration `env:"DRAFT_TTL,   default=24h"`

	// SealKey, when set, is a hex-encoded 32-byte key enabling draft
	// encryption at rest.
	SealKey string `env:"DRAFT_SEAL_KEY"`
}

type ProfileConfig struct {
	// ConfirmReadDelay, when positive, schedules a delayed diagnostic
	// re-read after every profile write.
	ConfirmReadDelay time.Duration `env:"PROFILE_CONFIRM_READ_DELAY, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// SealKeyBytes decodes the hex seal key. Empty means sealing is disabled.
func (d DraftConfig) SealKeyBytes() ([]byte, error) {
	if d.SealKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(d.SealKey)
	if err != nil {
		return nil, fmt.Errorf("decode draft seal key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("draft seal key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
