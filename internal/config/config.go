// Package config defines the top-level configuration for the averix client
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AVERIX_* environment variables.
type Config struct {
	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Export    ExportConfig    `toml:"export"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// APIConfig locates the Averix backend.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// SessionConfig selects where the bearer credential is kept between runs.
type SessionConfig struct {
	// Store is one of "file", "redis" or "memory".
	Store         string `toml:"store"`
	Key           string `toml:"key"`
	FilePath      string `toml:"file_path"`
	Passphrase    string `toml:"passphrase"`
	KDFIterations int    `toml:"kdf_iterations"`
}

// DashboardConfig tunes the client-side risk mirror and submit guard.
type DashboardConfig struct {
	MirrorRiskRules bool     `toml:"mirror_risk_rules"`
	MaxPositionPct  float64  `toml:"max_position_pct"`
	MaxRiskReward   float64  `toml:"max_risk_reward"`
	SubmitLockTTL   duration `toml:"submit_lock_ttl"`
	// RefreshInterval paces background refreshes in monitor mode.
	RefreshInterval duration `toml:"refresh_interval"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters for the
// audit log and trade journal.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot export.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the local dashboard bridge server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	APIKey          string   `toml:"api_key"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ExportConfig controls dashboard snapshot export to object storage.
type ExportConfig struct {
	Cron          string `toml:"cron"`
	Prefix        string `toml:"prefix"`
	SigningSecret string `toml:"signing_secret"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8001",
			Timeout: duration{30 * time.Second},
		},
		Session: SessionConfig{
			Store:    "file",
			Key:      "default",
			FilePath: ".averix/credentials.json",
		},
		Dashboard: DashboardConfig{
			MirrorRiskRules: true,
			MaxPositionPct:  5,
			MaxRiskReward:   5,
			SubmitLockTTL:   duration{30 * time.Second},
			RefreshInterval: duration{time.Minute},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "averix-snapshots",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"order_placed", "order_failed", "stake_created", "stake_failed", "session_expired"},
		},
		Export: ExportConfig{
			Cron:   "0 * * * *",
			Prefix: "snapshots",
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSessionStores = map[string]bool{
	"file":   true,
	"redis":  true,
	"memory": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, "api: base_url must not be empty")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("api: base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}

	// Session
	if !validSessionStores[c.Session.Store] {
		errs = append(errs, fmt.Sprintf("session: unknown store %q (valid: file, redis, memory)", c.Session.Store))
	}
	if c.Session.Key == "" {
		errs = append(errs, "session: key must not be empty")
	}
	if c.Session.Store == "file" {
		if c.Session.FilePath == "" {
			errs = append(errs, "session: file_path is required for the file store")
		}
		if c.Session.Passphrase == "" {
			errs = append(errs, "session: passphrase is required for the file store")
		}
	}
	if c.Session.Store == "redis" && !c.Redis.Enabled {
		errs = append(errs, "session: redis store requires redis.enabled")
	}

	// Dashboard
	if c.Dashboard.MaxPositionPct <= 0 || c.Dashboard.MaxPositionPct > 100 {
		errs = append(errs, "dashboard: max_position_pct must be in (0, 100]")
	}
	if c.Dashboard.MaxRiskReward <= 0 {
		errs = append(errs, "dashboard: max_risk_reward must be > 0")
	}
	if c.Dashboard.RefreshInterval.Duration < time.Second {
		errs = append(errs, "dashboard: refresh_interval must be >= 1s")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
