package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort               string
	StoreDriver            string
	DatabaseURL            string
	RunMigrations          bool
	RedisURL               string
	ReplayCacheTTL         time.Duration
	KafkaBrokers           []string
	KafkaTopic             string
	LockTimeout            time.Duration
	ReconciliationInterval time.Duration
	StalePendingAfter      time.Duration
	PublicRateLimitRPS     int
	MaxAccountsPerClient   int
	LogLevel               string
}

// Load reads environment variables using viper and returns a typed config.
// Every variable also accepts a LEDGER_ prefixed alias.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "LEDGER_PORT")
	bindEnv(v, "store_driver", "STORE_DRIVER", "LEDGER_STORE_DRIVER")
	bindEnv(v, "database_url", "DATABASE_URL", "LEDGER_DATABASE_URL")
	bindEnv(v, "run_migrations", "RUN_MIGRATIONS", "LEDGER_RUN_MIGRATIONS")
	bindEnv(v, "redis_url", "REDIS_URL", "LEDGER_REDIS_URL")
	bindEnv(v, "replay_cache_ttl", "REPLAY_CACHE_TTL", "LEDGER_REPLAY_CACHE_TTL")
	bindEnv(v, "kafka_brokers", "KAFKA_BROKERS", "LEDGER_KAFKA_BROKERS")
	bindEnv(v, "kafka_topic", "KAFKA_TOPIC", "LEDGER_KAFKA_TOPIC")
	bindEnv(v, "lock_timeout", "LOCK_TIMEOUT", "LEDGER_LOCK_TIMEOUT")
	bindEnv(v, "reconciliation_interval", "RECONCILIATION_INTERVAL", "LEDGER_RECONCILIATION_INTERVAL")
	bindEnv(v, "stale_pending_after", "STALE_PENDING_AFTER", "LEDGER_STALE_PENDING_AFTER")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "LEDGER_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "max_accounts_per_client", "MAX_ACCOUNTS_PER_CLIENT", "LEDGER_MAX_ACCOUNTS_PER_CLIENT")
	bindEnv(v, "log_level", "LOG_LEVEL", "LEDGER_LOG_LEVEL")

	v.SetDefault("port", "8080")
	v.SetDefault("store_driver", StoreDriverPostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("run_migrations", true)
	v.SetDefault("redis_url", "")
	v.SetDefault("replay_cache_ttl", "24h")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "ledger.transactions")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("reconciliation_interval", "1h")
	v.SetDefault("stale_pending_after", "5m")
	v.SetDefault("public_rate_limit_rps", 100)
	v.SetDefault("max_accounts_per_client", 10)
	v.SetDefault("log_level", "info")

	replayTTL, err := parsePositiveDuration(v, "replay_cache_ttl", "REPLAY_CACHE_TTL")
	if err != nil {
		return nil, err
	}
	lockTimeout, err := parsePositiveDuration(v, "lock_timeout", "LOCK_TIMEOUT")
	if err != nil {
		return nil, err
	}
	reconciliationInterval, err := parsePositiveDuration(v, "reconciliation_interval", "RECONCILIATION_INTERVAL")
	if err != nil {
		return nil, err
	}
	stalePendingAfter, err := parsePositiveDuration(v, "stale_pending_after", "STALE_PENDING_AFTER")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:               v.GetString("port"),
		StoreDriver:            strings.ToLower(strings.TrimSpace(v.GetString("store_driver"))),
		DatabaseURL:            strings.TrimSpace(v.GetString("database_url")),
		RunMigrations:          v.GetBool("run_migrations"),
		RedisURL:               strings.TrimSpace(v.GetString("redis_url")),
		ReplayCacheTTL:         replayTTL,
		KafkaBrokers:           splitList(v.GetString("kafka_brokers")),
		KafkaTopic:             v.GetString("kafka_topic"),
		LockTimeout:            lockTimeout,
		ReconciliationInterval: reconciliationInterval,
		StalePendingAfter:      stalePendingAfter,
		PublicRateLimitRPS:     v.GetInt("public_rate_limit_rps"),
		MaxAccountsPerClient:   v.GetInt("max_accounts_per_client"),
		LogLevel:               v.GetString("log_level"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if cfg.PublicRateLimitRPS <= 0 {
		return nil, fmt.Errorf("invalid PUBLIC_RATE_LIMIT_RPS: must be positive")
	}
	if cfg.MaxAccountsPerClient <= 0 {
		return nil, fmt.Errorf("invalid MAX_ACCOUNTS_PER_CLIENT: must be positive")
	}
	if strings.TrimSpace(cfg.KafkaTopic) == "" {
		return nil, fmt.Errorf("invalid KAFKA_TOPIC: must not be empty")
	}

	return cfg, nil
}

func parsePositiveDuration(v *viper.Viper, key, name string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
