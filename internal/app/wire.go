package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/averix/internal/blob/s3"
	"github.com/alanyoungcy/averix/internal/cache/memory"
	"github.com/alanyoungcy/averix/internal/cache/redis"
	"github.com/alanyoungcy/averix/internal/config"
	"github.com/alanyoungcy/averix/internal/crypto"
	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/export"
	"github.com/alanyoungcy/averix/internal/landing"
	"github.com/alanyoungcy/averix/internal/metrics"
	"github.com/alanyoungcy/averix/internal/notify"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/alanyoungcy/averix/internal/server/handler"
	"github.com/alanyoungcy/averix/internal/session"
	"github.com/alanyoungcy/averix/internal/store/postgres"
)

// EventChannel is the pub/sub channel and stream dashboard events go to.
const EventChannel = "dashboard:events"

// Dependencies bundles everything the modes and commands operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Client    *averix.Client
	Sessions  *session.Manager
	Dashboard *dashboard.Dashboard
	Metrics   *metrics.Metrics
	Tracker   *landing.SectionTracker

	// Stores; nil unless supabase is enabled.
	AuditStore domain.AuditStore
	Journal    domain.TradeJournal

	// Coordination. Redis when enabled, otherwise in-process.
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus // nil without redis
	EventLog    domain.EventLog  // nil without redis

	// Blob storage; nil unless s3 is enabled.
	BlobWriter domain.BlobWriter
	BlobReader *s3blob.Reader
	Exporter   *export.Exporter

	Notifier *notify.Notifier

	// Checks are the readiness probes served on /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]handler.Check),
	}

	deps.Client = averix.NewClient(averix.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout.Duration,
	})

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus := redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = bus
		deps.EventLog = bus
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
	}

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Journal = postgres.NewTradeJournal(pool)
		deps.Checks["postgres"] = pool.Ping
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client, 0)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Checks["s3"] = s3Client.Health

		var signer *crypto.Signer
		if cfg.Export.SigningSecret != "" {
			signer = crypto.NewSigner(cfg.Export.SigningSecret)
		}
		exp := export.NewExporter(deps.BlobWriter, signer, cfg.Export.Prefix, logger)
		if deps.AuditStore != nil {
			exp.WithAudit(deps.AuditStore)
		}
		if deps.Journal != nil {
			exp.WithJournal(deps.Journal)
		}
		deps.Exporter = exp
	}

	// --- Session ---
	store, err := credentialStore(cfg, redisClient)
	if err != nil {
		return fail(fmt.Errorf("wire: session store: %w", err))
	}
	deps.Sessions = session.NewManager(deps.Client, store, cfg.Session.Key, logger)

	// --- Dashboard ---
	dash := dashboard.New(deps.Client, deps.Sessions, dashboardConfig(cfg.Dashboard), logger).
		WithRecorder(deps.Metrics).
		WithLockManager(deps.LockManager)
	if deps.AuditStore != nil {
		dash.WithAudit(deps.AuditStore)
	}
	if deps.Journal != nil {
		dash.WithJournal(deps.Journal)
	}
	deps.Dashboard = dash

	// A new, dropped or rejected credential starts the dashboard over.
	deps.Sessions.OnChange(dash.Reset)
	deps.Sessions.OnExpire(dash.Reset)

	deps.Tracker, err = landing.NewSectionTracker(landing.Sections, landing.DefaultThreshold)
	if err != nil {
		return fail(fmt.Errorf("wire: landing: %w", err))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// credentialStore selects where the bearer credential is persisted.
func credentialStore(cfg *config.Config, redisClient *redis.Client) (domain.CredentialStore, error) {
	switch cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis store selected but redis is disabled")
		}
		return redis.NewCredentialStore(redisClient, 0), nil
	default:
		sealer, err := crypto.NewSealer(cfg.Session.Passphrase, cfg.Session.KDFIterations)
		if err != nil {
			return nil, err
		}
		return session.NewFileStore(cfg.Session.FilePath, sealer), nil
	}
}

func dashboardConfig(c config.DashboardConfig) dashboard.Config {
	out := dashboard.DefaultConfig()
	out.MirrorRiskRules = c.MirrorRiskRules
	if c.MaxPositionPct > 0 {
		out.MaxPositionPct = decimal.NewFromFloat(c.MaxPositionPct)
	}
	if c.MaxRiskReward > 0 {
		out.MaxRiskReward = decimal.NewFromFloat(c.MaxRiskReward)
	}
	if c.SubmitLockTTL.Duration > 0 {
		out.LockTTL = c.SubmitLockTTL.Duration
	}
	return out
}
