package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration read from the environment.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
	Overlap  OverlapConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	TxTimeout       time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects postgres; an empty URL runs everything in memory.
type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CatalogConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// KafkaConfig routes audit delivery through a topic when Brokers is set.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	ConsumerGroup string
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

type OverlapConfig struct {
	MaxConcurrency int
	SiblingPolicy  string
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	durations := func(key string, def time.Duration) time.Duration {
		d, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}
	ints := func(key string, def int) int {
		n, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:            getEnv("JOBMATCH_ADDR", ":8080"),
			TxTimeout:       durations("TX_TIMEOUT", 5*time.Second),
			ShutdownTimeout: durations("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     ints("REDIS_POOL_SIZE", 10),
			MinIdleConns: ints("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durations("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durations("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durations("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Catalog: CatalogConfig{
			URL:      os.Getenv("CATALOG_URL"),
			Timeout:  durations("CATALOG_TIMEOUT", 2*time.Second),
			CacheTTL: durations("CATALOG_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "jobmatch.audit"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "jobmatch-audit-logstore"),
		},
		Outbox: OutboxConfig{
			PollInterval: durations("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    ints("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts:  ints("OUTBOX_MAX_ATTEMPTS", 10),
		},
		Overlap: OverlapConfig{
			MaxConcurrency: ints("OVERLAP_MAX_CONCURRENCY", 4),
			SiblingPolicy:  getEnv("OVERLAP_SIBLING_POLICY", "fail_open"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Catalog.URL == "" && cfg.Database.URL != "" {
		errs = append(errs, "CATALOG_URL is required when DATABASE_URL is set")
	}
	if cfg.Outbox.BatchSize <= 0 {
		errs = append(errs, "OUTBOX_BATCH_SIZE must be positive")
	}
	if cfg.Outbox.MaxAttempts <= 0 {
		errs = append(errs, "OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if cfg.Overlap.MaxConcurrency <= 0 {
		errs = append(errs, "OVERLAP_MAX_CONCURRENCY must be positive")
	}
	switch cfg.Overlap.SiblingPolicy {
	case "fail_open", "fail_closed":
	default:
		errs = append(errs, fmt.Sprintf("OVERLAP_SIBLING_POLICY must be fail_open or fail_closed, got %q", cfg.Overlap.SiblingPolicy))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// InMemory reports whether no database is configured.
func (c Config) InMemory() bool {
	return c.Database.URL == ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
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
