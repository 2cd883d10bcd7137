package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// PlaceholderStoreURL points at a host that never resolves so gateway calls fail fast.
	PlaceholderStoreURL = "postgres://postgres@placeholder.invalid:5432/postgres?sslmode=disable&connect_timeout=5"
	// PlaceholderStoreAccessKey is used when STORE_ACCESS_KEY is unset.
	PlaceholderStoreAccessKey = "placeholder-key"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	StoreURL           string
	StoreAccessKey     string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	CORSAllowedOrigins []string
	AnalysesChannel    string
	NotificationDedup  time.Duration

	storeConfigured bool
}

// Load reads configuration from environment variables
func Load() *Config {
	storeURL := getEnv("STORE_URL", getEnv("DATABASE_URL", ""))
	accessKey := getEnv("STORE_ACCESS_KEY", "")
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StoreURL:           storeURL,
		StoreAccessKey:     accessKey,
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AnalysesChannel:    getEnv("ANALYSES_CHANNEL", "ai_analyses_realtime"),
		NotificationDedup:  getEnvAsDuration("NOTIFICATION_DEDUP_TTL", 10*time.Minute),
		storeConfigured:    storeURL != "" && accessKey != "",
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = PlaceholderStoreURL
	}
	if cfg.StoreAccessKey == "" {
		cfg.StoreAccessKey = PlaceholderStoreAccessKey
	}
	return cfg
}

// StoreConfigured reports whether both store connection values came from the environment.
func (c *Config) StoreConfigured() bool {
	return c.storeConfigured
}

// StoreDSN returns the store URL with the access key applied as the connection password.
// Unparseable URLs are returned unchanged so the driver reports the problem on first use.
func (c *Config) StoreDSN() string {
	u, err := url.Parse(c.StoreURL)
	if err != nil || u.Host == "" || c.StoreAccessKey == "" {
		return c.StoreURL
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.StoreAccessKey)
	return u.String()
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
