package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APPLICATION_SECRET", "MASTER_KEYS", "HOST", "PORT", "LOG_LEVEL",
		"DATABASE_CONFIGURATION_POSTGRES_DATASOURCE",
		"DATABASE_CONFIGURATION_POSTGRES_TABLE_PREFIX",
		"CACHE_CONFIGURATION_REDIS_URL",
		"REQUEST_LOG_CHANNEL_CAPACITY", "REQUEST_LOG_CLICKHOUSE_DSN",
		"FAILOVER_PROVIDER_TIMEOUT",
		"CIRCUIT_BREAKER_ERROR_THRESHOLD", "CIRCUIT_BREAKER_TIME_WINDOW",
		"CIRCUIT_BREAKER_HALF_OPEN_TIMEOUT", "CORS_ORIGINS",
	} {
		os.Unsetenv(key)
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("APPLICATION_SECRET", "test-secret")
	os.Setenv("MASTER_KEYS", "mk_live_test")
	os.Setenv("DATABASE_CONFIGURATION_POSTGRES_DATASOURCE", "postgres://localhost/llmur")
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Database.Postgres.TablePrefix != "llmur_" {
		t.Errorf("expected default table prefix llmur_, got %q", cfg.Database.Postgres.TablePrefix)
	}
	if cfg.Request.ChannelCapacity != 1024 {
		t.Errorf("expected default channel capacity 1024, got %d", cfg.Request.ChannelCapacity)
	}
	if cfg.CircuitBreaker.ErrorThreshold != 5 {
		t.Errorf("expected default error threshold 5, got %d", cfg.CircuitBreaker.ErrorThreshold)
	}
}

func TestLoadRequiresApplicationSecret(t *testing.T) {
	clearEnv(t)
	os.Setenv("MASTER_KEYS", "mk_live_test")
	os.Setenv("DATABASE_CONFIGURATION_POSTGRES_DATASOURCE", "postgres://localhost/llmur")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when application_secret is missing")
	}
}

func TestLoadRequiresMasterKeys(t *testing.T) {
	clearEnv(t)
	os.Setenv("APPLICATION_SECRET", "test-secret")
	os.Setenv("DATABASE_CONFIGURATION_POSTGRES_DATASOURCE", "postgres://localhost/llmur")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when master_keys is missing")
	}
}

func TestLoadRequiresDatasource(t *testing.T) {
	clearEnv(t)
	os.Setenv("APPLICATION_SECRET", "test-secret")
	os.Setenv("MASTER_KEYS", "mk_live_test")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when postgres datasource is missing")
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	os.Setenv("LOG_LEVEL", "verbose")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoadParsesMultipleMasterKeys(t *testing.T) {
	clearEnv(t)
	os.Setenv("APPLICATION_SECRET", "test-secret")
	os.Setenv("MASTER_KEYS", "mk_one mk_two")
	os.Setenv("DATABASE_CONFIGURATION_POSTGRES_DATASOURCE", "postgres://localhost/llmur")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.MasterKeys) != 2 {
		t.Fatalf("expected 2 master keys, got %d: %v", len(cfg.MasterKeys), cfg.MasterKeys)
	}
}
