package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "FFARM_API_ADDR", "FFARM_STORE", "FFARM_SQLITE_PATH", "DATABASE_URL",
		"FFARM_GATEWAY_TOKEN", "FFARM_DISCORD_TOKEN", "REDIS_URL", "FFARM_RATE_LIMIT",
		"FFARM_RATE_WINDOW", "FFARM_IP_RATE_LIMIT", "FFARM_SWEEP_EVERY", "FFARM_SCHEDULER_ENABLED",
		"FFARM_REGISTRATION_BONUS", "FFARM_WEALTH_THRESHOLD", "FFARM_PAYROLL_BPS",
		"FFARM_ADMIN_CHAT_IDS", "FFARM_SEED_CATALOG", "FFARM_CATALOG_REFRESH_EVERY",
		"FFARM_WORKER_RUN_ONCE", "FFARM_API_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAPIDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
	assert.Equal(t, "ffarm.db", cfg.Store.SQLitePath)
	assert.True(t, cfg.Store.SeedCatalog)
	assert.Zero(t, cfg.Store.CatalogRefreshEvery)
	assert.Equal(t, farm.DefaultRules(), cfg.Rules)
	assert.Equal(t, int64(20), cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, int64(600), cfg.IPRateLimit)
	assert.Equal(t, 30*time.Second, cfg.SweepEvery)
	assert.True(t, cfg.SchedulerEnabled)
}

func TestLoadAPIOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("FFARM_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://farm@localhost/farm")
	t.Setenv("FFARM_WEALTH_THRESHOLD", "5_000")
	t.Setenv("FFARM_PAYROLL_BPS", "1000")
	t.Setenv("FFARM_ADMIN_CHAT_IDS", " 42, ,7 ")
	t.Setenv("FFARM_SWEEP_EVERY", "5s")
	t.Setenv("FFARM_RATE_LIMIT", "not-a-number")
	t.Setenv("FFARM_SCHEDULER_ENABLED", "false")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, int64(5000), cfg.Rules.WealthThreshold)
	assert.Equal(t, int64(1000), cfg.Rules.PayrollBps)
	assert.Equal(t, []string{"42", "7"}, cfg.Rules.AdminChatIDs)
	assert.Equal(t, 5*time.Second, cfg.SweepEvery)
	assert.Equal(t, int64(20), cfg.RateLimit, "unparseable values fall back to the default")
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoadAPIRejectsNegativeIPLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFARM_IP_RATE_LIMIT", "-1")
	_, err := LoadAPIFromEnv()
	assert.ErrorContains(t, err, "FFARM_IP_RATE_LIMIT")
}

func TestLoadAPIRejectsBadStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFARM_STORE", "postgres")
	_, err := LoadAPIFromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("FFARM_STORE", "mongo")
	_, err = LoadAPIFromEnv()
	assert.ErrorContains(t, err, "unknown FFARM_STORE")
}

func TestLoadWorker(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFARM_WORKER_RUN_ONCE", "true")
	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)

	t.Setenv("FFARM_STORE", "memory")
	_, err = LoadWorkerFromEnv()
	assert.Error(t, err)
}

func TestLoadCLI(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFARM_API_BASE_URL", "http://farm.example:8080/")
	cfg := LoadCLIFromEnv()
	assert.Equal(t, "http://farm.example:8080", cfg.APIBaseURL)
}
