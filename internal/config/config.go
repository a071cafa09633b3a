package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the service reads. It is built once
// in main and passed into constructors instead of being read ad hoc.
type Config struct {
	AppEnv   string
	HTTPAddr string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret string

	// Integrations toggled on for provisioning. Disabled integrations
	// still get a subtask, recorded as skipped.
	EnabledIntegrations []string

	// AdapterTimeout bounds each external adapter call.
	AdapterTimeout time.Duration

	// Queue settings. Provisioning concurrency is pinned to 1 so two
	// jobs never mutate the same team's external refs concurrently.
	QueuePollInterval time.Duration
	SyncWorkers       int
	MaxJobAttempts    int
	RetryBackoffBase  time.Duration

	// DefaultMembersPerTeam caps sub-team size when an event does not
	// specify its own limit.
	DefaultMembersPerTeam int
}

// Load reads .env (if present) and builds the Config. Missing required
// values are an error rather than a late panic deep in a worker.
func Load() (*Config, error) {
	// .env is optional outside development; real deployments set env directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:                getenv("APP_ENV", "development"),
		HTTPAddr:              getenv("HTTP_ADDR", ":8080"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBHost:                getenv("DB_HOST", "localhost"),
		DBPort:                getenv("DB_PORT", "3306"),
		DBName:                os.Getenv("DB_NAME"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		EnabledIntegrations:   splitList(getenv("ENABLED_INTEGRATIONS", "directory,wiki,groupware,vcs,chat")),
		AdapterTimeout:        getduration("ADAPTER_TIMEOUT", 30*time.Second),
		QueuePollInterval:     getduration("QUEUE_POLL_INTERVAL", 2*time.Second),
		SyncWorkers:           getint("SYNC_WORKERS", 4),
		MaxJobAttempts:        getint("MAX_JOB_ATTEMPTS", 5),
		RetryBackoffBase:      getduration("RETRY_BACKOFF_BASE", 10*time.Second),
		DefaultMembersPerTeam: getint("DEFAULT_MEMBERS_PER_TEAM", 4),
	}

	if cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("config: DB_USER and DB_NAME must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET must be set")
	}

	return cfg, nil
}

// DSN builds the MySQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
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
