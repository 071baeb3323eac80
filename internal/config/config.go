package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lightning LightningConfig
	Payment   PaymentConfig
	Webhook   WebhookConfig
	Session   SessionConfig
	Admin     AdminConfig
	JWT       JWTConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// LightningConfig holds payment backend connection configuration
type LightningConfig struct {
	Network        string // mainnet or testnet
	DaemonURL      string
	APIKey         string
	SeedPath       string
	WorkingDir     string // empty means derive under the user cache dir
	WebhookURL     string // optional; must be absolute https when set
	RequestTimeout time.Duration
}

// PaymentConfig holds invoice validation limits
type PaymentConfig struct {
	MaxAmountSat      uint64
	MaxDescriptionLen int
	InvoiceTTL        time.Duration
}

// WebhookConfig holds inbound webhook verification settings
type WebhookConfig struct {
	Secret       string
	MaxBodyBytes int64
}

// SessionConfig holds browser session cookie settings
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
}

// AdminConfig holds the admin credential used by the dashboard surface
type AdminConfig struct {
	Email        string
	PasswordHash string
}

// JWTConfig holds JWT configuration for the admin surface
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "paywall"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Lightning: LightningConfig{
			Network:        getEnv("LIGHTNING_NETWORK", "testnet"),
			DaemonURL:      getEnv("LIGHTNING_DAEMON_URL", "http://localhost:9739"),
			APIKey:         getEnv("LIGHTNING_API_KEY", ""),
			SeedPath:       getEnv("LIGHTNING_SEED_PATH", ""),
			WorkingDir:     getEnv("LIGHTNING_WORKDIR", ""),
			WebhookURL:     getEnv("LIGHTNING_WEBHOOK_URL", ""),
			RequestTimeout: getEnvAsDuration("LIGHTNING_REQUEST_TIMEOUT", 30*time.Second),
		},
		Payment: PaymentConfig{
			MaxAmountSat:      uint64(getEnvAsInt("PAYMENT_MAX_AMOUNT_SAT", 1_000_000)),
			MaxDescriptionLen: getEnvAsInt("PAYMENT_MAX_DESCRIPTION_LEN", 200),
			InvoiceTTL:        getEnvAsDuration("PAYMENT_INVOICE_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			Secret:       getEnv("WEBHOOK_SECRET", ""),
			MaxBodyBytes: int64(getEnvAsInt("WEBHOOK_MAX_BODY_BYTES", 64*1024)),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "pw_session"),
			MaxAge:     getEnvAsDuration("SESSION_MAX_AGE", 30*24*time.Hour),
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
	}
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
