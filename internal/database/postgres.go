// internal/database/postgres.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/resilience"
)

// Connect opens the relational source connection pool, retrying
// connection-class failures through breakers.Database with exponential
// backoff. The pool is owned by the supervisor for the process lifetime and
// reused across passes; this is the only place reconnection happens.
func Connect(ctx context.Context, cfg *config.Settings, breakers *resilience.Breakers, logger logging.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s sslmode=disable connect_timeout=10",
		cfg.Postgres.User, cfg.Postgres.Password,
		cfg.Postgres.Host, cfg.Postgres.Port,
		cfg.Postgres.DB,
	)

	var pool *pgxpool.Pool
	connectOnce := func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		p, err := pgxpool.New(connectCtx, dsn)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := p.Ping(connectCtx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	}

	backoffCfg := resilience.BackoffConfig{
		MaxAttempts: uint64(cfg.BackoffMaxAttempts),
		MaxElapsed:  cfg.BackoffMaxElapsed,
	}
	err := resilience.WithBackoff(ctx, backoffCfg, logger, "postgres.connect", func() error {
		return resilience.Guard(breakers.Database, connectOnce)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return pool, nil
}
