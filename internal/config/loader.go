package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AVERIX_* environment variable overrides, and
// returns the final Config. A missing file at path is not an error; the
// defaults and environment are used alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AVERIX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── API ──
	setStr(&cfg.API.BaseURL, "AVERIX_API_BASE_URL")
	setStr(&cfg.API.BaseURL, "REACT_APP_BACKEND_URL") // compatibility alias
	setDuration(&cfg.API.Timeout, "AVERIX_API_TIMEOUT")

	// ── Session ──
	setStr(&cfg.Session.Store, "AVERIX_SESSION_STORE")
	setStr(&cfg.Session.Key, "AVERIX_SESSION_KEY")
	setStr(&cfg.Session.FilePath, "AVERIX_SESSION_FILE_PATH")
	setStr(&cfg.Session.Passphrase, "AVERIX_SESSION_PASSPHRASE")
	setInt(&cfg.Session.KDFIterations, "AVERIX_SESSION_KDF_ITERATIONS")

	// ── Dashboard ──
	setBool(&cfg.Dashboard.MirrorRiskRules, "AVERIX_DASHBOARD_MIRROR_RISK_RULES")
	setFloat64(&cfg.Dashboard.MaxPositionPct, "AVERIX_DASHBOARD_MAX_POSITION_PCT")
	setFloat64(&cfg.Dashboard.MaxRiskReward, "AVERIX_DASHBOARD_MAX_RISK_REWARD")
	setDuration(&cfg.Dashboard.SubmitLockTTL, "AVERIX_DASHBOARD_SUBMIT_LOCK_TTL")
	setDuration(&cfg.Dashboard.RefreshInterval, "AVERIX_DASHBOARD_REFRESH_INTERVAL")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "AVERIX_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "AVERIX_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "AVERIX_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "AVERIX_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "AVERIX_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "AVERIX_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "AVERIX_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "AVERIX_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "AVERIX_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "AVERIX_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "AVERIX_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AVERIX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AVERIX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AVERIX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AVERIX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AVERIX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AVERIX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AVERIX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AVERIX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AVERIX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AVERIX_S3_REGION")
	setStr(&cfg.S3.Bucket, "AVERIX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AVERIX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AVERIX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AVERIX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AVERIX_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "AVERIX_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "AVERIX_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "AVERIX_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "AVERIX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "AVERIX_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AVERIX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AVERIX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AVERIX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AVERIX_NOTIFY_EVENTS")

	// ── Export ──
	setStr(&cfg.Export.Cron, "AVERIX_EXPORT_CRON")
	setStr(&cfg.Export.Prefix, "AVERIX_EXPORT_PREFIX")
	setStr(&cfg.Export.SigningSecret, "AVERIX_EXPORT_SIGNING_SECRET")

	// ── Top-level ──
	setStr(&cfg.Mode, "AVERIX_MODE")
	setStr(&cfg.LogLevel, "AVERIX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
