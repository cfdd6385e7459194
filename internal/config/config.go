// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Feed backends.
const (
	FeedNATS   = "nats"
	FeedRedis  = "redis"
	FeedMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// Storage
	StoreBackend string
	DatabaseURL  string
	StoreTimeout time.Duration

	// Change feed
	FeedBackend            string
	ReconcileDebounce      time.Duration
	ResubscribeMaxInterval time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Redis settings
	RedisURL string

	// JWT settings
	JWTSecret string

	// Moderation settings
	ModerationProvider string
	ModerationModel    string
	ModerationTimeout  time.Duration
	AnthropicAPIKey    string
	OpenAIAPIKey       string

	// Rate limiting
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	IPRateLimitRequests int
	IPRateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"*"}),

		// Storage
		StoreBackend: getEnv("STORE_BACKEND", StorePostgres),
		DatabaseURL:  getEnv("DATABASE_URL", "postgres://localhost:5432/messaging?sslmode=disable"),
		StoreTimeout: getDurationEnv("STORE_TIMEOUT", 10*time.Second),

		// Change feed
		FeedBackend:            getEnv("FEED_BACKEND", FeedNATS),
		ReconcileDebounce:      getDurationEnv("RECONCILE_DEBOUNCE", 50*time.Millisecond),
		ResubscribeMaxInterval: getDurationEnv("RESUBSCRIBE_MAX_INTERVAL", 30*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Moderation
		ModerationProvider: getEnv("MODERATION_PROVIDER", ""),
		ModerationModel:    getEnv("MODERATION_MODEL", ""),
		ModerationTimeout:  getDurationEnv("MODERATION_TIMEOUT", 3*time.Second),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),

		// Rate limiting
		RateLimitRequests:   getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:     getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		IPRateLimitRequests: getIntEnv("IP_RATE_LIMIT_REQUESTS", 300),
		IPRateLimitWindow:   getDurationEnv("IP_RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks backend selections and required settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.FeedBackend {
	case FeedNATS, FeedRedis, FeedMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown FEED_BACKEND %q", c.FeedBackend))
	}

	if c.FeedBackend == FeedMemory && c.StoreBackend != StoreMemory {
		errs = append(errs, errors.New("FEED_BACKEND=memory only sees writes made by this process; use it with STORE_BACKEND=memory"))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ModerationAPIKey returns the key for the configured moderation provider.
func (c *Config) ModerationAPIKey() string {
	switch c.ModerationProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
