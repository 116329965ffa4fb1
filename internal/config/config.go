package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ffarm/internal/farm"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects and locates the persistence backend shared by every
// binary that touches farm state.
type StoreConfig struct {
	Kind                string
	SQLitePath          string
	DatabaseURL         string
	SeedCatalog         bool
	CatalogRefreshEvery time.Duration
}

type APIConfig struct {
	Addr             string
	Store            StoreConfig
	Rules            farm.Rules
	GatewayToken     string
	DiscordToken     string
	RedisURL         string
	RateLimit        int64
	RateWindow       time.Duration
	IPRateLimit      int64
	SweepEvery       time.Duration
	SchedulerEnabled bool
}

type WorkerConfig struct {
	Store        StoreConfig
	Rules        farm.Rules
	DiscordToken string
	SweepEvery   time.Duration
	RunOnce      bool
}

type CLIConfig struct {
	APIBaseURL   string
	GatewayToken string
}

// loadDotEnv preloads a .env file when one exists. Variables already set in
// the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

func LoadAPIFromEnv() (APIConfig, error) {
	loadDotEnv()

	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FFARM_API_ADDR", ":8080")
	}

	store, err := loadStore()
	if err != nil {
		return APIConfig{}, err
	}
	cfg := APIConfig{
		Addr:             addr,
		Store:            store,
		Rules:            loadRules(),
		GatewayToken:     strings.TrimSpace(os.Getenv("FFARM_GATEWAY_TOKEN")),
		DiscordToken:     strings.TrimSpace(os.Getenv("FFARM_DISCORD_TOKEN")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		RateLimit:        envIntDefault("FFARM_RATE_LIMIT", 20),
		RateWindow:       envDurationDefault("FFARM_RATE_WINDOW", time.Minute),
		IPRateLimit:      envIntDefault("FFARM_IP_RATE_LIMIT", 600),
		SweepEvery:       envDurationDefault("FFARM_SWEEP_EVERY", 30*time.Second),
		SchedulerEnabled: envBoolDefault("FFARM_SCHEDULER_ENABLED", true),
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("FFARM_RATE_LIMIT must be positive")
	}
	if cfg.RateWindow <= 0 {
		return cfg, fmt.Errorf("FFARM_RATE_WINDOW must be positive")
	}
	if cfg.IPRateLimit < 0 {
		return cfg, fmt.Errorf("FFARM_IP_RATE_LIMIT must not be negative")
	}
	if cfg.SweepEvery <= 0 {
		return cfg, fmt.Errorf("FFARM_SWEEP_EVERY must be positive")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	loadDotEnv()

	store, err := loadStore()
	if err != nil {
		return WorkerConfig{}, err
	}
	if store.Kind == StoreMemory {
		return WorkerConfig{}, fmt.Errorf("worker cannot share a memory store; use %s or %s", StoreSQLite, StorePostgres)
	}
	cfg := WorkerConfig{
		Store:        store,
		Rules:        loadRules(),
		DiscordToken: strings.TrimSpace(os.Getenv("FFARM_DISCORD_TOKEN")),
		SweepEvery:   envDurationDefault("FFARM_SWEEP_EVERY", 30*time.Second),
		RunOnce:      envBoolDefault("FFARM_WORKER_RUN_ONCE", false),
	}
	if cfg.SweepEvery <= 0 {
		return cfg, fmt.Errorf("FFARM_SWEEP_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	loadDotEnv()
	return CLIConfig{
		APIBaseURL:   strings.TrimRight(envDefault("FFARM_API_BASE_URL", "http://localhost:8080"), "/"),
		GatewayToken: strings.TrimSpace(os.Getenv("FFARM_GATEWAY_TOKEN")),
	}
}

func loadStore() (StoreConfig, error) {
	cfg := StoreConfig{
		Kind:                strings.ToLower(envDefault("FFARM_STORE", StoreSQLite)),
		SQLitePath:          envDefault("FFARM_SQLITE_PATH", "ffarm.db"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SeedCatalog:         envBoolDefault("FFARM_SEED_CATALOG", true),
		CatalogRefreshEvery: envDurationDefault("FFARM_CATALOG_REFRESH_EVERY", 0),
	}
	switch cfg.Kind {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when FFARM_STORE=%s", StorePostgres)
		}
	default:
		return cfg, fmt.Errorf("unknown FFARM_STORE %q", cfg.Kind)
	}
	return cfg, nil
}

func loadRules() farm.Rules {
	rules := farm.DefaultRules()
	rules.RegistrationBonus = envIntDefault("FFARM_REGISTRATION_BONUS", rules.RegistrationBonus)
	rules.WealthThreshold = envIntDefault("FFARM_WEALTH_THRESHOLD", rules.WealthThreshold)
	rules.PayrollBps = envIntDefault("FFARM_PAYROLL_BPS", rules.PayrollBps)
	rules.AdminChatIDs = envListDefault("FFARM_ADMIN_CHAT_IDS")
	return rules
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(v, "_", ""), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envListDefault(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
