// Package app assembles the billing engine from configuration. Both the API server and the
// cronjob runner build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	httpapi "teambilling/internal/api/http"
	"teambilling/internal/channel"
	"teambilling/internal/clock"
	"teambilling/internal/config"
	"teambilling/internal/jobs"
	"teambilling/internal/lock"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
	"teambilling/internal/repository/memory"
	"teambilling/internal/repository/postgres"
	"teambilling/internal/security"
	"teambilling/internal/service"
)

type App struct {
	Config   *config.Config
	Store    *repository.Store
	Clock    clock.Clock
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Runner   *jobs.JobRunner
	Handlers *httpapi.Handlers

	db    *sql.DB
	redis *redis.Client
}

// New connects storage, the tenant lock and the delivery channels, and builds every service.
func New(ctx context.Context, cfg *config.Config, clk clock.Clock) (*App, error) {
	a := &App{Config: cfg, Clock: clk, Registry: prometheus.NewRegistry()}
	a.Metrics = metrics.NewMetrics(a.Registry)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	channels, err := Channels(ctx, cfg.Notifications)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := cfg.Policy()
	renderer, err := service.NewRenderer(policy.Templates)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid notification templates: %w", err)
	}
	signer := security.NewPaymentLinkSigner(cfg.PaymentLink.Secret, time.Duration(cfg.PaymentLink.ExpiryHours)*time.Hour)
	dispatcher := service.NewDispatcher(channels, policy.DispatchTimeout, a.Metrics)
	notifier := service.NewNotifier(dispatcher, a.Store.Notifications, renderer, signer, policy)

	fees := service.NewFeeService(a.Store.Fees, a.Store.Members, policy)
	invoices := service.NewInvoiceService(a.Store.Invoices, a.Store.Members, fees, a.Metrics)
	state := service.NewBillingStateService(a.Store.Tenants, service.NewSubscriptionSignal(a.Store.Subscriptions), notifier, policy, a.Metrics)

	a.Runner = jobs.NewJobRunner(a.Store, &jobs.Services{State: state, Invoices: invoices}, locker, clk, a.Metrics, cfg)
	a.Handlers = httpapi.NewHandlers(&httpapi.Services{
		Admin:         service.NewAdminService(a.Store.Tenants, a.Store.Members, a.Store.Subscriptions, notifier, clk, a.Metrics),
		Fees:          fees,
		Invoices:      invoices,
		Debts:         service.NewDebtService(a.Store.Debts, a.Store.Members),
		Status:        service.NewPaymentStatusService(a.Store.Members, a.Store.Invoices, a.Store.Debts, fees, policy),
		Notifications: service.NewNotificationService(a.Store.Notifications, a.Store.Tenants, notifier),
		Batch:         a.Runner,
		Signer:        signer,
	}, clk, a.Health)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.Database.Type == "memory" {
		logger.Warn("Using in-memory storage, data is lost on exit")
		a.Store = memory.NewStore()
		return nil
	}

	logger.Info("Connecting to database...", "host", a.Config.Database.Host, "port", a.Config.Database.Port, "database", a.Config.Database.Database)
	db, err := postgres.Open(ctx, a.Config.GetDatabaseConnectionString(), a.Config.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return err
	}
	logger.Info("Database connection established")
	a.db = db
	a.Store = postgres.NewStore(db)
	return nil
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.Redis.URL == "" {
		logger.Info("Using in-process tenant lock")
		return lock.NewLocal(a.Config.LockTTL()), nil
	}
	client, err := lock.NewRedisClient(ctx, a.Config.Redis.URL, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("Using redis tenant lock")
	a.redis = client
	return lock.NewRedis(client, a.Config.LockTTL(), ""), nil
}

// Channels registers every delivery channel that has credentials configured.
func Channels(ctx context.Context, cfg config.NotificationsConfig) ([]channel.Channel, error) {
	var channels []channel.Channel
	if cfg.SendGrid.APIKey != "" {
		channels = append(channels, channel.NewEmail(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
	}
	if cfg.Firebase.CredentialsFile != "" {
		push, err := channel.NewPush(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize push channel: %w", err)
		}
		channels = append(channels, push)
	}
	if cfg.WhatsApp.WebhookURL != "" {
		channels = append(channels, channel.NewWhatsApp(cfg.WhatsApp.WebhookURL, cfg.WhatsApp.Token, &http.Client{Timeout: 15 * time.Second}))
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	if len(names) == 0 {
		logger.Warn("No notification channels configured, notifications are stored but not delivered")
	} else {
		logger.Info("Notification channels configured", "channels", names)
	}
	return channels, nil
}

// Router returns the HTTP surface of the API server.
func (a *App) Router() http.Handler {
	return httpapi.NewRouter(a.Handlers, httpapi.RouterConfig{
		AdminTokenHash: a.Config.Admin.TokenHash,
		Metrics:        a.Metrics,
		Registry:       a.Registry,
	})
}

// Health reports whether the backing stores are reachable.
func (a *App) Health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
}
