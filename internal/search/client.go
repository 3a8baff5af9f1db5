// Package search drives the Elasticsearch movies index: connection setup,
// bulk upsert loading, and administrative index bootstrap.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/resilience"
)

// Connect builds the Elasticsearch client and confirms connectivity with
// Info(), retrying connection-class failures through breakers.Search with
// exponential backoff.
func Connect(ctx context.Context, cfg *config.Settings, breakers *resilience.Breakers, logger logging.Logger) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ESHost},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build elasticsearch client: %w", err)
	}

	pingOnce := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		req := esapi.InfoRequest{}
		res, err := req.Do(pingCtx, client)
		if err != nil {
			return fmt.Errorf("failed to reach elasticsearch: %w", err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch info request failed: %s", res.Status())
		}
		return nil
	}

	backoffCfg := resilience.BackoffConfig{
		MaxAttempts: uint64(cfg.BackoffMaxAttempts),
		MaxElapsed:  cfg.BackoffMaxElapsed,
	}
	err = resilience.WithBackoff(ctx, backoffCfg, logger, "elasticsearch.connect", func() error {
		return resilience.Guard(breakers.Search, pingOnce)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return client, nil
}
