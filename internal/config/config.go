// Package config loads the replication service's settings from the
// environment per the service's external contract: there is no config
// file, only the env vars bound in Load (POSTGRES_*, ES_HOST,
// SLEEP_INTERVAL, ...).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Postgres holds the relational source connection parameters.
type Postgres struct {
	DB       string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Host     string `validate:"required"`
	Port     int    `validate:"required,min=1,max=65535"`
}

// Settings is the complete, validated configuration for one process.
type Settings struct {
	Postgres Postgres

	ESHost string `validate:"required,url"`

	SleepInterval      time.Duration `validate:"min=1"`
	FailedPassSleep    time.Duration `validate:"min=1"`
	BatchSize          int           `validate:"min=1,max=10000"`
	CheckpointFile     string        `validate:"required"`
	BackoffMaxAttempts int           `validate:"min=1"`
	BackoffMaxElapsed  time.Duration `validate:"min=1"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	MetricsAddr string
}

// Load reads settings from the environment, applies defaults for anything
// unset, and validates the result. A configuration error here is fatal:
// the service refuses to start.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("es_host", "http://localhost:9200")
	v.SetDefault("sleep_interval", 60)
	v.SetDefault("failed_pass_sleep", 60)
	v.SetDefault("batch_size", 100)
	v.SetDefault("checkpoint_file", "state.json")
	v.SetDefault("backoff_max_attempts", 10)
	v.SetDefault("backoff_max_elapsed", 45)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_addr", ":8090")

	v.AutomaticEnv()
	for _, key := range []string{
		"postgres_db", "postgres_user", "postgres_password", "postgres_host", "postgres_port",
		"es_host", "sleep_interval", "failed_pass_sleep", "batch_size", "checkpoint_file",
		"backoff_max_attempts", "backoff_max_elapsed", "log_level", "log_format", "metrics_addr",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Settings{
		Postgres: Postgres{
			DB:       v.GetString("postgres_db"),
			User:     v.GetString("postgres_user"),
			Password: v.GetString("postgres_password"),
			Host:     v.GetString("postgres_host"),
			Port:     v.GetInt("postgres_port"),
		},
		ESHost:             v.GetString("es_host"),
		SleepInterval:      time.Duration(v.GetInt64("sleep_interval")) * time.Second,
		FailedPassSleep:    time.Duration(v.GetInt64("failed_pass_sleep")) * time.Second,
		BatchSize:          v.GetInt("batch_size"),
		CheckpointFile:     v.GetString("checkpoint_file"),
		BackoffMaxAttempts: v.GetInt("backoff_max_attempts"),
		BackoffMaxElapsed:  time.Duration(v.GetInt64("backoff_max_elapsed")) * time.Second,
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		MetricsAddr:        v.GetString("metrics_addr"),
	}

	// An explicitly empty METRICS_ADDR disables the ops server; viper treats
	// an empty env var as unset and would fall back to the default.
	if addr, ok := os.LookupEnv("METRICS_ADDR"); ok && addr == "" {
		cfg.MetricsAddr = ""
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
