package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Upstream CRM API the engine synchronizes against.
	RemoteBaseURL  string
	RemoteAPIToken string
	RemoteTimeout  time.Duration

	// Synchronizer settings.
	SyncInterval  time.Duration
	SyncScope     string
	SyncPageLimit int

	// HMAC secret for portal/admin JWTs carrying the role claim.
	AuthJWTSecret string

	// Per-IP throttle on the send endpoints. Zero rate disables it.
	SendRatePerSec float64
	SendBurst      int

	// Guest read-state retention in the favorites store.
	GuestStateTTL time.Duration

	// SendGrid email notifications on terminal lead transitions.
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	NotifyEmail       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		RemoteBaseURL:      getEnv("REMOTE_API_BASE_URL", ""),
		RemoteAPIToken:     getEnv("REMOTE_API_TOKEN", ""),
		RemoteTimeout:      getEnvAsDuration("REMOTE_API_TIMEOUT", 15*time.Second),
		SyncInterval:       getEnvAsDuration("SYNC_INTERVAL", 30*time.Second),
		SyncScope:          getEnv("SYNC_SCOPE", "all"),
		SyncPageLimit:      getEnvAsInt("SYNC_PAGE_LIMIT", 200),
		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		SendRatePerSec:     getEnvAsFloat("SEND_RATE_PER_SEC", 2),
		SendBurst:          getEnvAsInt("SEND_BURST", 5),
		GuestStateTTL:      getEnvAsDuration("GUEST_STATE_TTL", 30*24*time.Hour),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "LeadFlow"),
		NotifyEmail:        getEnv("NOTIFY_EMAIL", ""),
	}
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
