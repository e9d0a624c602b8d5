package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 24*time.Hour, cfg.ReplayCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, time.Hour, cfg.ReconciliationInterval)
	assert.Equal(t, 5*time.Minute, cfg.StalePendingAfter)
	assert.Equal(t, 100, cfg.PublicRateLimitRPS)
	assert.Equal(t, 10, cfg.MaxAccountsPerClient)
	assert.Equal(t, "ledger.transactions", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadPrefixedAliases(t *testing.T) {
	t.Setenv("LEDGER_STORE_DRIVER", "postgres")
	t.Setenv("LEDGER_DATABASE_URL", "postgres://ledger@localhost:5432/ledger")
	t.Setenv("LEDGER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://ledger@localhost:5432/ledger", cfg.DatabaseURL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"STORE_DRIVER": "sqlite"},
			wantErr: "invalid STORE_DRIVER",
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "unparseable duration",
			env:     map[string]string{"STORE_DRIVER": "memory", "LOCK_TIMEOUT": "soon"},
			wantErr: "invalid LOCK_TIMEOUT",
		},
		{
			name:    "zero interval",
			env:     map[string]string{"STORE_DRIVER": "memory", "RECONCILIATION_INTERVAL": "0s"},
			wantErr: "invalid RECONCILIATION_INTERVAL",
		},
		{
			name:    "negative rate limit",
			env:     map[string]string{"STORE_DRIVER": "memory", "PUBLIC_RATE_LIMIT_RPS": "-1"},
			wantErr: "invalid PUBLIC_RATE_LIMIT_RPS",
		},
		{
			name:    "zero account limit",
			env:     map[string]string{"STORE_DRIVER": "memory", "MAX_ACCOUNTS_PER_CLIENT": "0"},
			wantErr: "invalid MAX_ACCOUNTS_PER_CLIENT",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
