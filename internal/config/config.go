package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Database
	DatabaseURL string

	// Security
	SettingsEncryptionKey string
	AdminToken            string
	// Admin API requests allowed per minute per client IP; 0 disables the limit
	AdminRatePerMinute int
	AdminRateBurst     int

	// Settings seed used when the database holds no settings yet
	SettingsFile string

	// Webhook
	WebhookDebug bool
	WebhookAsync bool

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// SMTP
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	SMTPFromAddress string
	SMTPFromName    string
}

// Load reads configuration from the environment (and a .env file when
// present), then lets command line flags override the server settings.
func Load(args []string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("mailhook", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port")
	fs.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", getEnv("DATABASE_URL", "file:mailhook.db"), "SQLite path or PostgreSQL connection string")
	fs.StringVar(&cfg.SettingsFile, "settings-file", getEnv("SETTINGS_FILE", ""), "YAML file used to seed webhook settings")

	cfg.SettingsEncryptionKey = getEnv("SETTINGS_ENCRYPTION_KEY", "")
	cfg.AdminToken = getEnv("ADMIN_TOKEN", "")
	cfg.AdminRatePerMinute = getEnvInt("ADMIN_RATE_PER_MINUTE", 60)
	cfg.AdminRateBurst = getEnvInt("ADMIN_RATE_BURST", 10)
	cfg.WebhookDebug = getEnvBool("WEBHOOK_DEBUG", false)
	cfg.WebhookAsync = getEnvBool("WEBHOOK_ASYNC", false)

	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", 100)
	cfg.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	cfg.LogMaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", 28)

	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPass = getEnv("SMTP_PASS", "")
	cfg.SMTPFromAddress = getEnv("SMTP_FROM_ADDRESS", "")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "Mailhook")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.SettingsEncryptionKey) < 32 {
		errs = append(errs, errors.New("SETTINGS_ENCRYPTION_KEY must be at least 32 characters"))
	}
	if len(c.AdminToken) < 16 {
		errs = append(errs, errors.New("ADMIN_TOKEN must be at least 16 characters"))
	}
	if c.AdminRatePerMinute < 0 || c.AdminRateBurst < 0 {
		errs = append(errs, errors.New("ADMIN_RATE_PER_MINUTE and ADMIN_RATE_BURST must not be negative"))
	}
	if c.Env != "development" && c.Env != "production" {
		errs = append(errs, fmt.Errorf("ENV must be development or production, got %q", c.Env))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
