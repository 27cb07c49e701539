package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string

	EventBus        string
	KafkaBrokers    []string
	EventTopic      string
	DeadLetterTopic string

	RedisURL         string
	WorkflowCacheTTL time.Duration

	ActionTimeout          time.Duration
	DeliveryMaxRetries     int
	DeliveryInitialBackoff time.Duration
	WorkerConcurrency      int
	SpeedLimit             float64

	EmailProvider string
	BrevoAPIKey   string
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	OTelEnabled     bool
	OTelServiceName string

	ExecutionRetentionDays int
	MaintenanceSchedule    string
}

// Event bus drivers
const (
	BusMemory   = "memory"
	BusKafka    = "kafka"
	BusDatabase = "database"
)

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		EventBus:        strings.ToLower(getEnv("EVENT_BUS", BusMemory)),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		EventTopic:      getEnv("EVENT_TOPIC", "fleet.domain-events"),
		DeadLetterTopic: os.Getenv("DEAD_LETTER_TOPIC"),

		RedisURL:         os.Getenv("REDIS_URL"),
		WorkflowCacheTTL: getDuration("WORKFLOW_CACHE_TTL", 5*time.Minute),

		ActionTimeout:          getDuration("ACTION_TIMEOUT", 30*time.Second),
		DeliveryMaxRetries:     getInt("DELIVERY_MAX_RETRIES", 3),
		DeliveryInitialBackoff: getDuration("DELIVERY_INITIAL_BACKOFF", time.Second),
		WorkerConcurrency:      getInt("WORKER_CONCURRENCY", 4),
		SpeedLimit:             float64(getInt("SPEED_LIMIT_KMH", 90)),

		EmailProvider: strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo")),
		BrevoAPIKey:   os.Getenv("BREVO_API_KEY"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		EmailFrom:     getEnv("EMAIL_FROM", "no-reply@fleettrack.local"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "FleetTrack"),

		OTelEnabled:     getBool("OTEL_ENABLED", false),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "fleet-workflows"),

		ExecutionRetentionDays: getInt("EXECUTION_RETENTION_DAYS", 30),
		MaintenanceSchedule:    getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
	}

	if cfg.DeadLetterTopic == "" {
		cfg.DeadLetterTopic = cfg.EventTopic + ".dead-letter"
	}

	return cfg
}

// IsProduction reports whether logs should be JSON rather than console output
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EmailAPIKey returns the key of the selected email provider
func (c *Config) EmailAPIKey() string {
	if c.EmailProvider == "resend" {
		return c.ResendAPIKey
	}
	return c.BrevoAPIKey
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
