package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	AuthIssuer       string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience     string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey   string   `mapstructure:"AUTH_SIGNING_KEY"`
	PHIEncryptionKey string   `mapstructure:"PHI_ENCRYPTION_KEY"`
	ClinicalTimezone string   `mapstructure:"CLINICAL_TIMEZONE"`
	PasteBodyLimit   string   `mapstructure:"PASTE_BODY_LIMIT"`
	MetricsEnabled   bool     `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "PHI_ENCRYPTION_KEY",
	"CLINICAL_TIMEZONE", "PASTE_BODY_LIMIT", "METRICS_ENABLED",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory when one exists.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CLINICAL_TIMEZONE", "Local")
	v.SetDefault("PASTE_BODY_LIMIT", "1M")
	v.SetDefault("METRICS_ENABLED", true)

	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Normalise the comma list; entries may carry stray spaces.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesMemoryStore reports whether sheets live in process memory because no
// database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// SigningKey decodes AUTH_SIGNING_KEY. An empty key yields nil.
func (c *Config) SigningKey() ([]byte, error) {
	if c.AuthSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// EncryptionKey decodes PHI_ENCRYPTION_KEY, the AES-256 key that seals the
// medications column. An empty key yields nil and sheets are stored in clear.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.PHIEncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.PHIEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be exactly 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// Location resolves CLINICAL_TIMEZONE, the zone assumed for administration
// times pasted without an offset.
func (c *Config) Location() (*time.Location, error) {
	switch c.ClinicalTimezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ClinicalTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINICAL_TIMEZONE %q: %w", c.ClinicalTimezone, err)
	}
	return loc, nil
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Resolved carries the decoded values Validate checked, so callers never
// decode them a second time.
type Resolved struct {
	Location      *time.Location
	SigningKey    []byte // nil when auth runs in development mode
	EncryptionKey []byte // nil stores sheets unencrypted
}

// Validate checks that the configuration is safe to run. Outside
// development a signing key is mandatory so bearer tokens are enforced.
func (c *Config) Validate() (*Resolved, error) {
	key, err := c.SigningKey()
	if err != nil {
		return nil, err
	}
	if !c.IsDev() && key == nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q; "+
			"refusing to start without authentication", c.Env)
	}
	phiKey, err := c.EncryptionKey()
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	if c.DBMinConns > c.DBMaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return &Resolved{Location: loc, SigningKey: key, EncryptionKey: phiKey}, nil
}
