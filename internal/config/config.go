package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the explicit startup configuration for the service. Everything
// process-wide (CORS allowlist, matching schedule, join window) lives here
// instead of package-level state.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// CORS allowlist for the HTTP surface.
	AllowedOrigins []string

	// Join window relative to the consultation's meeting time.
	JoinWindowBefore time.Duration
	JoinWindowAfter  time.Duration

	// Availability entries expire out of the store after this TTL.
	AvailabilityTTL time.Duration

	// Background matching pass: how far ahead it targets and how often it runs.
	MatchingLeadDays int
	MatchingInterval time.Duration

	// One-time code lifetime for organization enrollment.
	OrgCodeTTL time.Duration

	Session SessionConfig
	Rabbit  RabbitConfig
	Minio   MinioConfig
	SMS     SMSConfig
}

// SessionConfig holds the video session provider credentials. Tokens are
// signed locally; egress calls go to HTTPURL.
type SessionConfig struct {
	APIKey    string
	APISecret string
	HTTPURL   string
	TokenTTL  time.Duration
}

type RabbitConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Load builds the Config from the environment. godotenv has already been
// applied by the caller.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AllowedOrigins:   splitCSV(getenv("ALLOWED_ORIGINS", "*")),
		JoinWindowBefore: duration("JOIN_WINDOW_BEFORE", 20*time.Minute),
		JoinWindowAfter:  duration("JOIN_WINDOW_AFTER", 40*time.Minute),
		AvailabilityTTL:  duration("AVAILABILITY_TTL", 7*24*time.Hour),
		MatchingLeadDays: integer("MATCHING_LEAD_DAYS", 3),
		MatchingInterval: duration("MATCHING_INTERVAL", 24*time.Hour),
		OrgCodeTTL:       duration("ORG_CODE_TTL", 30*time.Minute),
		Session: SessionConfig{
			APIKey:    os.Getenv("SESSION_API_KEY"),
			APISecret: os.Getenv("SESSION_API_SECRET"),
			HTTPURL:   os.Getenv("SESSION_HTTP_URL"),
			TokenTTL:  duration("SESSION_TOKEN_TTL", 2*time.Hour),
		},
		Rabbit: RabbitConfig{
			URL:        os.Getenv("RABBITMQ_URL"),
			Exchange:   getenv("RABBITMQ_EXCHANGE", "ai.requests"),
			RoutingKey: getenv("RABBITMQ_ROUTING_KEY", "ai.summary"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getenv("MINIO_BUCKET", "recordings"),
			UseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		},
		SMS: SMSConfig{
			AccountSID: os.Getenv("SMS_ACCOUNT_SID"),
			AuthToken:  os.Getenv("SMS_AUTH_TOKEN"),
			FromNumber: os.Getenv("SMS_FROM_NUMBER"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func integer(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
