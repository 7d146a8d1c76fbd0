package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "ROLODEX"

// minSecretLength mirrors auth.MinSecretLength; config stays free of
// domain imports.
const minSecretLength = 16

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// HTTPConfig holds listener settings. TrustProxy takes the client address
// from X-Forwarded-For/X-Real-IP; enable it only behind a proxy that
// overwrites those headers.
type HTTPConfig struct {
	Addr         string
	MaxBodyBytes int64
	CORSOrigins  []string
	DevMode      bool
	TrustProxy   bool
}

type DatabaseConfig struct {
	// DSN selects the PostgreSQL stores; empty runs on in-memory stores.
	DSN string
}

type AuthConfig struct {
	Secret         string
	TokenTTL       time.Duration
	PublicPrefixes []string
}

type RateLimitConfig struct {
	Burst     int
	PerSecond float64
}

// Enabled reports whether requests should be rate limited at all.
func (r RateLimitConfig) Enabled() bool { return r.Burst > 0 && r.PerSecond > 0 }

type LogConfig struct {
	Level string
}

// Load reads ROLODEX_* variables from the environment, layered over an
// optional file named by ROLODEX_CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", p, err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("cors_origins", "")
	v.SetDefault("dev_mode", false)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("pg_dsn", "")
	v.SetDefault("auth_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("public_prefixes", "/api/auth/")
	v.SetDefault("rate_burst", 50)
	v.SetDefault("rate_per_sec", 25.0)
	v.SetDefault("log_level", "info")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:         strings.TrimSpace(v.GetString("http_addr")),
			MaxBodyBytes: v.GetInt64("max_body_bytes"),
			CORSOrigins:  splitList(v.GetString("cors_origins")),
			DevMode:      v.GetBool("dev_mode"),
			TrustProxy:   v.GetBool("trust_proxy"),
		},
		Database: DatabaseConfig{
			DSN: strings.TrimSpace(v.GetString("pg_dsn")),
		},
		Auth: AuthConfig{
			Secret:         v.GetString("auth_secret"),
			TokenTTL:       v.GetDuration("token_ttl"),
			PublicPrefixes: splitList(v.GetString("public_prefixes")),
		},
		RateLimit: RateLimitConfig{
			Burst:     v.GetInt("rate_burst"),
			PerSecond: v.GetFloat64("rate_per_sec"),
		},
		Log: LogConfig{
			Level: strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if len(c.Auth.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
