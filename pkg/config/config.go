package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Email     EmailConfig
	OTEL      OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Environment   string
	AdminAPIToken string
	AnalyticsTTL  time.Duration
	// WarmInterval is how often analytics caches are precomputed; 0 disables.
	WarmInterval time.Duration
	// DedupWindow suppresses byte-identical resubmissions; 0 disables.
	DedupWindow time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	TrustedProxies []string
	ShutdownGrace  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// EmailConfig holds notification delivery configuration. Providers lists
// delivery providers in priority order.
type EmailConfig struct {
	From           string
	NotifyTo       string
	DashboardURL   string
	Providers      []string
	// Timeout bounds each provider attempt separately
	Timeout        time.Duration
	ResendAPIKey   string
	SendGridAPIKey string
	MailgunAPIKey  string
	MailgunDomain  string
	MailgunBaseURL string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),
			AnalyticsTTL:  getEnvAsDuration("ANALYTICS_CACHE_TTL", 60*time.Second),
			WarmInterval:  getEnvAsDuration("ANALYTICS_WARM_INTERVAL", 0),
			DedupWindow:   getEnvAsDuration("FEEDBACK_DEDUP_WINDOW", 0),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsRawList("ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies: getEnvAsRawList("TRUSTED_PROXIES", nil),
			ShutdownGrace:  getEnvAsDuration("SHUTDOWN_GRACE", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "feedbackhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", ""),
			APIKey: getEnv("TYPESENSE_API_KEY", ""),
		},
		Email: EmailConfig{
			From:           getEnv("EMAIL_FROM", "FeedbackHub <notifications@feedbackhub.local>"),
			NotifyTo:       getEnv("NOTIFICATION_EMAIL", ""),
			DashboardURL:   strings.TrimRight(getEnv("DASHBOARD_URL", ""), "/"),
			Providers:      getEnvAsList("EMAIL_PROVIDERS", []string{"resend", "sendgrid", "mailgun"}),
			Timeout:        getEnvAsDuration("NOTIFICATION_TIMEOUT", 30*time.Second),
			ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			MailgunAPIKey:  getEnv("MAILGUN_API_KEY", ""),
			MailgunDomain:  getEnv("MAILGUN_DOMAIN", ""),
			MailgunBaseURL: getEnv("MAILGUN_BASE_URL", "https://api.mailgun.net"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "feedbackhub"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Email.Timeout <= 0 {
		return fmt.Errorf("NOTIFICATION_TIMEOUT must be positive")
	}
	for _, name := range c.Email.Providers {
		switch name {
		case "resend", "sendgrid", "mailgun":
		default:
			return fmt.Errorf("unknown email provider %q in EMAIL_PROVIDERS", name)
		}
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvAsRawList splits a comma separated value without case folding.
func getEnvAsRawList(key string, defaultValue []string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
