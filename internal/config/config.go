package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MailboxMemory = "memory"
	MailboxRedis  = "redis"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (비어 있으면 단일 프로세스 모드)
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Media transport credentials
	MediaAppID          string
	MediaAppCertificate string
	MediaTokenExpiry    time.Duration

	// Matchmaking
	QueueTTL           time.Duration
	QueueSweepInterval time.Duration
	MailboxBackend     string
	RequireVerified    bool
	JoinRateLimit      int
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiration:       parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		MediaAppID:          getEnv("MEDIA_APP_ID", ""),
		MediaAppCertificate: getEnv("MEDIA_APP_CERTIFICATE", ""),
		MediaTokenExpiry:    parseDuration(getEnv("MEDIA_TOKEN_EXPIRY", "1h"), time.Hour),
		QueueTTL:            parseDuration(getEnv("QUEUE_TTL", "60s"), 60*time.Second),
		QueueSweepInterval:  parseDuration(getEnv("QUEUE_SWEEP_INTERVAL", "0s"), 0),
		MailboxBackend:      strings.ToLower(getEnv("MAILBOX_BACKEND", MailboxMemory)),
		RequireVerified:     parseBool(getEnv("REQUIRE_VERIFIED", "false")),
		JoinRateLimit:       parseInt(getEnv("JOIN_RATE_LIMIT", "30"), 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MediaAppID == "" || c.MediaAppCertificate == "" {
		return fmt.Errorf("MEDIA_APP_ID and MEDIA_APP_CERTIFICATE are required")
	}
	switch c.MailboxBackend {
	case MailboxMemory:
	case MailboxRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("MAILBOX_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown MAILBOX_BACKEND %q", c.MailboxBackend)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
