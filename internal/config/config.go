package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"teambilling/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Log           LogConfig           `yaml:"log"`
	Billing       BillingConfig       `yaml:"billing"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Admin         AdminConfig         `yaml:"admin"`
	PaymentLink   PaymentLinkConfig   `yaml:"payment_link"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig contains HTTP admin API settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Type         string `yaml:"type"` // "postgres" or "memory"
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig enables the distributed tenant lock. An empty URL selects an in-process lock.
type RedisConfig struct {
	URL            string `yaml:"url"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BillingConfig holds the lifecycle thresholds, message templates and batch limits
type BillingConfig struct {
	ReminderDay            int                               `yaml:"reminder_day"`
	OverdueDay             int                               `yaml:"overdue_day"`
	BlockDay               int                               `yaml:"block_day"`
	VeryLateAfterDays      int                               `yaml:"very_late_after_days"`
	DefaultDueDay          int                               `yaml:"default_due_day"`
	MonthlyAmount          string                            `yaml:"monthly_amount"`
	PaymentLinkBase        string                            `yaml:"payment_link_base"`
	CatchUpMissedRuns      *bool                             `yaml:"catch_up_missed_runs"`
	DispatchTimeoutSeconds int                               `yaml:"dispatch_timeout_seconds"`
	BatchDeadlineSeconds   int                               `yaml:"batch_deadline_seconds"`
	Workers                int                               `yaml:"workers"`
	FeeCacheSeconds        int                               `yaml:"fee_cache_seconds"`
	Templates              map[string]domain.MessageTemplate `yaml:"templates"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	DailyEvaluation  string `yaml:"daily_evaluation"`
	GenerateInvoices string `yaml:"generate_invoices"`
	MarkLateInvoices string `yaml:"mark_late_invoices"`
}

// NotificationsConfig configures the delivery channels. A channel without credentials is not registered.
type NotificationsConfig struct {
	SendGrid SendGridConfig `yaml:"sendgrid"`
	Firebase FirebaseConfig `yaml:"firebase"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

type WhatsAppConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Token      string `yaml:"token"`
}

// AdminConfig holds the bcrypt hash of the admin API bearer token
type AdminConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// PaymentLinkConfig contains the signing settings for payment links
type PaymentLinkConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

// MetricsConfig sets where the cronjob exposes /metrics; empty disables it
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated configuration from YAML bytes and the environment
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	envString("DB_TYPE", &c.Database.Type)
	envString("DB_HOST", &c.Database.Host)
	envInt("DB_PORT", &c.Database.Port)
	envString("DB_USER", &c.Database.User)
	envString("DB_PASSWORD", &c.Database.Password)
	envString("DB_NAME", &c.Database.Database)
	envString("DB_SSL_MODE", &c.Database.SSLMode)

	// Redis
	envString("REDIS_URL", &c.Redis.URL)
	envString("REDIS_PASSWORD", &c.Redis.Password)

	// Server
	envString("SERVER_HOST", &c.Server.Host)
	envInt("SERVER_PORT", &c.Server.Port)

	// Log
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)

	// Billing
	envString("BILLING_MONTHLY_AMOUNT", &c.Billing.MonthlyAmount)
	envString("BILLING_PAYMENT_LINK_BASE", &c.Billing.PaymentLinkBase)
	envInt("BILLING_WORKERS", &c.Billing.Workers)
	envInt("BILLING_FEE_CACHE_SECONDS", &c.Billing.FeeCacheSeconds)

	// Notifications
	envString("SENDGRID_API_KEY", &c.Notifications.SendGrid.APIKey)
	envString("FIREBASE_CREDENTIALS_FILE", &c.Notifications.Firebase.CredentialsFile)
	envString("WHATSAPP_WEBHOOK_URL", &c.Notifications.WhatsApp.WebhookURL)
	envString("WHATSAPP_TOKEN", &c.Notifications.WhatsApp.Token)

	// Secrets
	envString("ADMIN_TOKEN_HASH", &c.Admin.TokenHash)
	envString("PAYMENT_LINK_SECRET", &c.PaymentLink.Secret)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Type == "" {
		c.Database.Type = "postgres"
	}
	switch c.Database.Type {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 60
	}

	if err := c.Billing.validate(); err != nil {
		return err
	}

	if c.PaymentLink.Secret != "" && len(c.PaymentLink.Secret) < 32 {
		return fmt.Errorf("payment link secret must be at least 32 characters")
	}
	if c.PaymentLink.ExpiryHours == 0 {
		c.PaymentLink.ExpiryHours = 24 * 7
	}

	// Scheduler defaults
	if c.Scheduler.DailyEvaluation == "" {
		c.Scheduler.DailyEvaluation = "0 0 6 * * *" // 6 AM UTC
	}
	if c.Scheduler.GenerateInvoices == "" {
		c.Scheduler.GenerateInvoices = "0 0 1 1 * *" // 1st of month at 1 AM UTC
	}
	if c.Scheduler.MarkLateInvoices == "" {
		c.Scheduler.MarkLateInvoices = "0 30 5 * * *" // 5:30 AM UTC
	}

	return nil
}

func (b *BillingConfig) validate() error {
	if b.ReminderDay == 0 {
		b.ReminderDay = 5
	}
	if b.OverdueDay == 0 {
		b.OverdueDay = 8
	}
	if b.BlockDay == 0 {
		b.BlockDay = 10
	}
	if !(b.ReminderDay < b.OverdueDay && b.OverdueDay < b.BlockDay) {
		return fmt.Errorf("billing days must satisfy reminder < overdue < block, got %d/%d/%d",
			b.ReminderDay, b.OverdueDay, b.BlockDay)
	}
	if b.VeryLateAfterDays == 0 {
		b.VeryLateAfterDays = 30
	}
	if b.DefaultDueDay == 0 {
		b.DefaultDueDay = 10
	}
	if b.DefaultDueDay < 1 || b.DefaultDueDay > 28 {
		return fmt.Errorf("default due day must be between 1 and 28: %d", b.DefaultDueDay)
	}
	if b.MonthlyAmount == "" {
		b.MonthlyAmount = "0"
	}
	if _, err := decimal.NewFromString(b.MonthlyAmount); err != nil {
		return fmt.Errorf("invalid monthly amount %q: %w", b.MonthlyAmount, err)
	}
	if b.CatchUpMissedRuns == nil {
		catchUp := true
		b.CatchUpMissedRuns = &catchUp
	}
	if b.DispatchTimeoutSeconds == 0 {
		b.DispatchTimeoutSeconds = 10
	}
	if b.BatchDeadlineSeconds == 0 {
		b.BatchDeadlineSeconds = 15 * 60
	}
	if b.Workers <= 0 {
		b.Workers = 4
	}
	// negative disables the fee configuration cache
	if b.FeeCacheSeconds == 0 {
		b.FeeCacheSeconds = 300
	}
	for name := range b.Templates {
		switch domain.NotificationType(name) {
		case domain.NotificationTypePaymentReminder, domain.NotificationTypePaymentOverdue,
			domain.NotificationTypeAccessBlocked, domain.NotificationTypePaymentConfirmed,
			domain.NotificationTypeAccountStatus:
		default:
			return fmt.Errorf("unknown notification template: %s", name)
		}
	}
	return nil
}

// Policy converts the billing section into the policy value the services consume
func (c *Config) Policy() domain.BillingPolicy {
	p := domain.DefaultBillingPolicy()
	b := c.Billing
	p.ReminderDay = b.ReminderDay
	p.OverdueDay = b.OverdueDay
	p.BlockDay = b.BlockDay
	p.VeryLateAfterDays = b.VeryLateAfterDays
	p.DefaultDueDay = b.DefaultDueDay
	p.MonthlyAmount = decimal.RequireFromString(b.MonthlyAmount)
	p.PaymentLinkBase = b.PaymentLinkBase
	p.DispatchTimeout = time.Duration(b.DispatchTimeoutSeconds) * time.Second
	p.FeeCacheTTL = 0
	if b.FeeCacheSeconds > 0 {
		p.FeeCacheTTL = time.Duration(b.FeeCacheSeconds) * time.Second
	}
	if b.CatchUpMissedRuns != nil {
		p.CatchUpMissedRuns = *b.CatchUpMissedRuns
	}
	for name, tmpl := range b.Templates {
		p.Templates[domain.NotificationType(name)] = tmpl
	}
	return p
}

// BatchDeadline is the overall time budget of one daily evaluation pass
func (c *Config) BatchDeadline() time.Duration {
	return time.Duration(c.Billing.BatchDeadlineSeconds) * time.Second
}

// LockTTL is how long a tenant lock is held before it expires on its own
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
