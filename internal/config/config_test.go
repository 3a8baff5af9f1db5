package config

import (
	"testing"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadValidConfig(t *testing.T) {
	setEnv(t, map[string]string{
		"POSTGRES_DB":       "movies",
		"POSTGRES_USER":     "app",
		"POSTGRES_PASSWORD": "secret",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected valid config to load, got error: %v", err)
	}

	if cfg.Postgres.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %q", cfg.Postgres.Host)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Postgres.Port)
	}
	if cfg.ESHost != "http://localhost:9200" {
		t.Errorf("expected default es_host, got %q", cfg.ESHost)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("expected default batch size 100, got %d", cfg.BatchSize)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing POSTGRES_DB/USER/PASSWORD, got none")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	setEnv(t, map[string]string{
		"POSTGRES_DB":       "movies",
		"POSTGRES_USER":     "app",
		"POSTGRES_PASSWORD": "secret",
		"POSTGRES_PORT":     "99999",
	})

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port, got none")
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	setEnv(t, map[string]string{
		"POSTGRES_DB":       "movies",
		"POSTGRES_USER":     "app",
		"POSTGRES_PASSWORD": "secret",
		"LOG_LEVEL":         "verbose",
	})

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid log level, got none")
	}
}
