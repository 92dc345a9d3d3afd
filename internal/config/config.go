package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Metrics      MetricsConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Engine       EngineConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// MetricsConfig selects the OpenTelemetry metric exporter. "none" keeps
// instruments as no-ops; "stdout" periodically prints them.
type MetricsConfig struct {
	Exporter        string
	IntervalSeconds int
}

// AuthConfig defines token verification parameters. Tokens are issued by
// the session layer; the engine only verifies them.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds notification endpoints and delivery pool sizing.
type NotificationConfig struct {
	EmailFrom   string
	WebhookURL  string
	Workers     int
	QueueSize   int
	RedisStream string
}

// EngineConfig tunes the SLA sweeper, assignment retry and per-ticket locking.
type EngineConfig struct {
	SweepIntervalSeconds int
	SweepTicketBudgetMs  int
	SweepConcurrency     int
	SweepLeaseSeconds    int
	LockWaitMs           int
	RetryDebounceMs      int
	RateLimitPerSecond   float64
	RateLimitBurst       int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Exporter:        getEnv("METRICS_EXPORTER", "none"),
			IntervalSeconds: getEnvAsInt("METRICS_INTERVAL_SECONDS", 30),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:   getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
			Workers:     getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:   getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			RedisStream: getEnv("NOTIFY_REDIS_STREAM", "helpdesk:events"),
		},
		Engine: EngineConfig{
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 60),
			SweepTicketBudgetMs:  getEnvAsInt("SLA_SWEEP_TICKET_BUDGET_MS", 2000),
			SweepConcurrency:     getEnvAsInt("SLA_SWEEP_CONCURRENCY", 8),
			SweepLeaseSeconds:    getEnvAsInt("SLA_SWEEP_LEASE_SECONDS", 55),
			LockWaitMs:           getEnvAsInt("TICKET_LOCK_WAIT_MS", 3000),
			RetryDebounceMs:      getEnvAsInt("ASSIGNMENT_RETRY_DEBOUNCE_MS", 250),
			RateLimitPerSecond:   getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
	}

	if cfg.Engine.SweepIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid SLA_SWEEP_INTERVAL_SECONDS: %d", cfg.Engine.SweepIntervalSeconds)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval is the period between SLA sweeps.
func (e EngineConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalSeconds) * time.Second
}

// SweepTicketBudget bounds the work done for a single ticket in a sweep.
func (e EngineConfig) SweepTicketBudget() time.Duration {
	return durationMs(e.SweepTicketBudgetMs, 2*time.Second)
}

// LockWait bounds how long an operation waits for a ticket lock.
func (e EngineConfig) LockWait() time.Duration {
	return durationMs(e.LockWaitMs, 3*time.Second)
}

// RetryDebounce coalesces bursts of capacity changes into one retry pass.
func (e EngineConfig) RetryDebounce() time.Duration {
	return durationMs(e.RetryDebounceMs, 0)
}

// SweepLease is the leader lease TTL used when several replicas run.
func (e EngineConfig) SweepLease() time.Duration {
	if e.SweepLeaseSeconds <= 0 {
		return e.SweepInterval()
	}
	return time.Duration(e.SweepLeaseSeconds) * time.Second
}

func durationMs(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
