// cmd/etlmovies/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/database"
	"github.com/elchinoo/moviesync/internal/etl"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/metrics"
	"github.com/elchinoo/moviesync/internal/resilience"
	"github.com/elchinoo/moviesync/internal/search"
)

// Version information (set by build system via ldflags)
var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "etlmovies",
		Short: "Replicates a film catalog from PostgreSQL into Elasticsearch",
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newIndexCommand())
	rootCmd.AddCommand(newCheckpointCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("etlmovies %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}
}

// newRunCommand is the supervisor loop: the service's only long-running
// mode, driven entirely by the environment (see internal/config for
// POSTGRES_*, ES_HOST, and friends).
func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the replication supervisor loop",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			breakers := resilience.NewBreakers(logger)

			pool, err := database.Connect(ctx, cfg, breakers, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			defer pool.Close()

			esClient, err := search.Connect(ctx, cfg, breakers, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to elasticsearch: %w", err)
			}

			extractor := database.NewExtractor(pool, cfg, breakers, logger)
			loader := search.NewLoader(esClient, cfg, breakers, logger)
			checkpoint := resilience.NewCheckpointStore(cfg.CheckpointFile, logger)
			collector := metrics.NewCollector()

			watcher, err := resilience.NewCheckpointWatcher(cfg.CheckpointFile, logger)
			if err != nil {
				logger.Warn("checkpoint watcher disabled", zap.Error(err))
			} else {
				go watcher.Run(ctx)
				defer watcher.Close()
			}

			opsServer := metrics.NewServer(cfg.MetricsAddr, logger)
			go func() {
				if err := opsServer.Run(ctx); err != nil {
					logger.Warn("ops http server stopped", zap.Error(err))
				}
			}()

			supervisor := etl.NewSupervisor(extractor, loader, checkpoint, collector, cfg, logger)
			logger.Info("supervisor starting")
			return supervisor.Run(ctx)
		},
	}
}

// newIndexCommand groups administrative index operations. Deliberately a
// one-shot tool, never invoked by the run loop.
func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Administrative search-index operations",
	}

	var force bool
	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the movies index with its full mapping",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			breakers := resilience.NewBreakers(logger)
			client, err := search.Connect(ctx, cfg, breakers, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to elasticsearch: %w", err)
			}

			if err := search.CreateIndex(ctx, client, force); err != nil {
				return fmt.Errorf("failed to bootstrap index: %w", err)
			}
			logger.Info("index bootstrapped")
			return nil
		},
	}
	bootstrapCmd.Flags().BoolVar(&force, "force", false, "Delete and recreate the index if it already exists")
	cmd.AddCommand(bootstrapCmd)

	return cmd
}

// newCheckpointCommand groups administrative checkpoint operations.
func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Administrative checkpoint operations",
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Destroy the persisted checkpoint so the next pass reprocesses the whole catalog",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store := resilience.NewCheckpointStore(cfg.CheckpointFile, logger)
			if err := store.Reset(); err != nil {
				return fmt.Errorf("failed to reset checkpoint: %w", err)
			}
			return nil
		},
	}
	cmd.AddCommand(resetCmd)

	return cmd
}

func bootstrap() (*config.Settings, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.LogFormat == "console",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

