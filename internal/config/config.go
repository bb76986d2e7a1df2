package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfirmationTemplate = "Thanks for joining the waitlist. Your status link is {{status_link}}."
	DefaultMonthlyTemplate      = "Your current waitlist position is {{position}}. Visit {{status_link}} to review your status."
)

var validate = validator.New()

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Mail      MailConfig      `yaml:"mail"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
	Waitlist  WaitlistConfig  `yaml:"waitlist"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host" env:"SERVER_HOST"`
	Port     int    `yaml:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
	GRPCPort int    `yaml:"grpc_port" env:"GRPC_PORT" validate:"omitempty,min=1,max=65535"`
	// BaseURL prefixes the status and offer links sent to applicants.
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"required,url"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" validate:"oneof=postgres memory"`
	Host     string `yaml:"host" env:"DB_HOST" validate:"required_if=Driver postgres"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER" validate:"required_if=Driver postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME" validate:"required_if=Driver postgres"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
}

// MailConfig contains outbound notification settings
type MailConfig struct {
	Provider  string `yaml:"provider" env:"MAIL_PROVIDER" validate:"oneof=sendgrid log"`
	APIKey    string `yaml:"api_key" env:"SENDGRID_API_KEY" validate:"required_if=Provider sendgrid"`
	From      string `yaml:"from" env:"MAIL_FROM" validate:"required,email"`
	FromName  string `yaml:"from_name" env:"MAIL_FROM_NAME"`
	QueueSize int    `yaml:"queue_size" env:"MAIL_QUEUE_SIZE" validate:"min=1"`
}

// AdminConfig contains the single administrator credential
type AdminConfig struct {
	Email        string `yaml:"email" env:"ADMIN_EMAIL" validate:"required,email"`
	PasswordHash string `yaml:"password_hash" env:"ADMIN_PASSWORD_HASH" validate:"required"`
	JWTSecret    string `yaml:"jwt_secret" env:"JWT_SECRET" validate:"required,min=32"`
	TokenTTL     int    `yaml:"token_ttl_minutes" env:"ADMIN_TOKEN_TTL_MINUTES" validate:"min=1"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format     string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json text"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// WaitlistConfig contains the waitlist policy and message settings
type WaitlistConfig struct {
	OfferExpirationDays  int    `yaml:"offer_expiration_days" env:"OFFER_EXPIRATION_DAYS" validate:"min=1"`
	MonthlyEmailDay      int    `yaml:"monthly_email_day" env:"MONTHLY_EMAIL_DAY" validate:"min=1,max=28"`
	MonthlyEmailTime     string `yaml:"monthly_email_time" env:"MONTHLY_EMAIL_TIME"`
	StatusTokenDays      int    `yaml:"status_token_days" validate:"min=1"`
	StatusLinkDays       int    `yaml:"status_link_days" validate:"min=1"`
	ConfirmationTemplate string `yaml:"confirmation_template"`
	MonthlyTemplate      string `yaml:"monthly_template"`
	// Recipient lists are comma or whitespace separated addresses.
	JoinRecipients   string `yaml:"join_recipients" env:"JOIN_RECIPIENTS"`
	LeaveRecipients  string `yaml:"leave_recipients" env:"LEAVE_RECIPIENTS"`
	AcceptRecipients string `yaml:"accept_recipients" env:"ACCEPT_RECIPIENTS"`
}

// OfferExpiration returns how long an offer stays pending.
func (w WaitlistConfig) OfferExpiration() time.Duration {
	return time.Duration(w.OfferExpirationDays) * 24 * time.Hour
}

// MonthlyClock returns the hour and minute of monthly_email_time.
func (w WaitlistConfig) MonthlyClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", w.MonthlyEmailTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid monthly_email_time %q: %w", w.MonthlyEmailTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// SchedulerConfig contains cron schedule settings (with seconds field)
type SchedulerConfig struct {
	ExpireOffers  string `yaml:"expire_offers" env:"SCHEDULE_EXPIRE_OFFERS"`
	MonthlyReport string `yaml:"monthly_report" env:"SCHEDULE_MONTHLY_REPORT"`
}

// Load reads configuration from a YAML file, loads an optional .env file and
// overlays environment variables before validating.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes plus the process environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills every optional setting left empty.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
	}
	if c.Mail.QueueSize == 0 {
		c.Mail.QueueSize = 256
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}

	w := &c.Waitlist
	if w.OfferExpirationDays == 0 {
		w.OfferExpirationDays = 5
	}
	if w.MonthlyEmailDay == 0 {
		w.MonthlyEmailDay = 1
	}
	if w.MonthlyEmailTime == "" {
		w.MonthlyEmailTime = "09:00"
	}
	if w.StatusTokenDays == 0 {
		w.StatusTokenDays = 30
	}
	if w.StatusLinkDays == 0 {
		w.StatusLinkDays = 7
	}
	if w.ConfirmationTemplate == "" {
		w.ConfirmationTemplate = DefaultConfirmationTemplate
	}
	if w.MonthlyTemplate == "" {
		w.MonthlyTemplate = DefaultMonthlyTemplate
	}

	if c.Scheduler.ExpireOffers == "" {
		c.Scheduler.ExpireOffers = "0 0 2 * * *" // 2 AM UTC
	}
}

// Validate applies defaults and checks if the configuration is valid
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return err
	}

	hour, minute, err := c.Waitlist.MonthlyClock()
	if err != nil {
		return err
	}
	if c.Scheduler.MonthlyReport == "" {
		c.Scheduler.MonthlyReport = fmt.Sprintf("0 %d %d %d * *", minute, hour, c.Waitlist.MonthlyEmailDay)
	}

	return nil
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

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
