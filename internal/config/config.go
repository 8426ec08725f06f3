package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	MnemonicFile string `envconfig:"HDWALLET_MNEMONIC_FILE"`
	DBPath       string `envconfig:"HDWALLET_DB_PATH" default:"./data/hdwallet.sqlite"`
	Port         int    `envconfig:"HDWALLET_PORT" default:"8080"`
	LogLevel     string `envconfig:"HDWALLET_LOG_LEVEL" default:"info"`
	LogDir       string `envconfig:"HDWALLET_LOG_DIR" default:"./logs"`
	ExportDir    string `envconfig:"HDWALLET_EXPORT_DIR" default:"./data/export"`

	// KeystorePassphrase seals stored mnemonics. Required by every command that touches the DB.
	KeystorePassphrase string `envconfig:"HDWALLET_KEYSTORE_PASSPHRASE"`

	RateLimitRPS   int      `envconfig:"HDWALLET_RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"HDWALLET_RATE_LIMIT_BURST" default:"10"`
	AllowedIPs     []string `envconfig:"HDWALLET_ALLOWED_IPS"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars, so real environment
	// variables take precedence over .env values.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.RateLimitRPS < 1 {
		return fmt.Errorf("%w: rate limit must be at least 1 rps, got %d", ErrInvalidConfig, c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate limit burst must be at least 1, got %d", ErrInvalidConfig, c.RateLimitBurst)
	}
	if c.KeystorePassphrase != "" && len(c.KeystorePassphrase) < MinKeystorePassphraseLen {
		return fmt.Errorf("%w: keystore passphrase must be at least %d characters", ErrInvalidConfig, MinKeystorePassphraseLen)
	}
	for _, ip := range c.AllowedIPs {
		if strings.TrimSpace(ip) == "" {
			return fmt.Errorf("%w: allowed IP list contains an empty entry", ErrInvalidConfig)
		}
	}
	return nil
}

// RequireKeystore returns an error when no keystore passphrase is configured.
func (c *Config) RequireKeystore() error {
	if c.KeystorePassphrase == "" {
		return ErrKeystorePassphraseNotSet
	}
	return nil
}
