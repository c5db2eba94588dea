package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"supamon-backend/internal/models"
)

// Config holds runtime configuration for the monitoring API.
type Config struct {
	Environment string
	Port        string
	GinMode     string

	ProviderDomain   string
	ManagementAPIURL string
	MetricsPrincipal string
	ProbeTable       string
	UsersTable       string
	ActivityLimit    int
	UpstreamTimeout  time.Duration
	ManagementRate   float64

	StoreDriver        string
	StorePath          string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	BadgerPath         string
	StoreEncryptionKey string
	StoreNamespace     string

	SentryDSN         string
	SentryEnvironment string
	LogLevel          string
	LogFormat         string
	CORSOrigins       string
	MaxRequestBytes   int64
}

// MaxActivityItems bounds the recent-activity listing.
const MaxActivityItems = models.MaxActivityItems

const devEncryptionKey = "supamon-development-key"

// Load reads an optional .env file and then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Ignoring unreadable .env file: %v", err)
	}

	domain := strings.Trim(strings.ToLower(GetEnv("PROVIDER_DOMAIN", "supabase.co")), ".")
	cfg := &Config{
		Environment: GetEnv("ENVIRONMENT", "development"),
		Port:        GetEnv("PORT", "8080"),
		GinMode:     GetEnv("GIN_MODE", ""),

		ProviderDomain:   domain,
		ManagementAPIURL: strings.TrimRight(GetEnv("MANAGEMENT_API_URL", "https://api."+domain), "/"),
		MetricsPrincipal: GetEnv("METRICS_PRINCIPAL", "service_role"),
		ProbeTable:       GetEnv("PROBE_TABLE", "auth.users"),
		UsersTable:       GetEnv("USERS_TABLE", "auth.users"),
		ActivityLimit:    GetEnvInt("ACTIVITY_LIMIT", MaxActivityItems),
		UpstreamTimeout:  GetEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		ManagementRate:   GetEnvFloat("MANAGEMENT_RATE_PER_SEC", 2),

		StoreDriver:        strings.ToLower(GetEnv("STORE_DRIVER", "sqlite")),
		StorePath:          GetEnv("STORE_PATH", "supamon.db"),
		DatabaseURL:        GetEnv("DATABASE_URL", ""),
		RedisAddr:          GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      GetEnv("REDIS_PASSWORD", ""),
		RedisDB:            GetEnvInt("REDIS_DB", 0),
		BadgerPath:         GetEnv("BADGER_PATH", "supamon-badger"),
		StoreEncryptionKey: GetEnv("STORE_ENCRYPTION_KEY", ""),
		StoreNamespace:     GetEnv("STORE_NAMESPACE", "supamon"),

		SentryDSN:         GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: GetEnv("SENTRY_ENVIRONMENT", ""),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "text"),
		CORSOrigins:       GetEnv("CORS_ORIGINS", ""),
		MaxRequestBytes:   int64(GetEnvInt("MAX_REQUEST_BYTES", 1<<20)),
	}

	if cfg.ActivityLimit <= 0 || cfg.ActivityLimit > MaxActivityItems {
		cfg.ActivityLimit = MaxActivityItems
	}
	if cfg.StoreEncryptionKey == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("STORE_ENCRYPTION_KEY is required outside development")
		}
		logrus.Warn("STORE_ENCRYPTION_KEY not set, using the development key")
		cfg.StoreEncryptionKey = devEncryptionKey
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev" || env == "test"
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer environment variable, falling back on absence or error.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			logrus.Warnf("invalid value for %s: %v", key, err)
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// GetEnvFloat parses a float environment variable, falling back on absence or error.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			logrus.Warnf("invalid value for %s: %v", key, err)
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// GetEnvBool parses a boolean environment variable, falling back on absence or error.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			logrus.Warnf("invalid value for %s: %v", key, err)
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// GetEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	logrus.Warnf("invalid duration for %s: %q", key, value)
	return defaultValue
}
