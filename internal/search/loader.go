package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esutil"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/resilience"
	"github.com/elchinoo/moviesync/pkg/types"
)

// DocError is one document's bulk-submission failure, reported but never
// fatal to the page: per-document failures do not abort the pass.
type DocError struct {
	ID    string
	Cause string
}

// Loader submits batches of documents to the movies index as idempotent
// bulk upserts keyed by document id.
type Loader struct {
	client   *elasticsearch.Client
	breakers *resilience.Breakers
	backoff  resilience.BackoffConfig
	logger   logging.Logger
}

// NewLoader builds a Loader bound to client.
func NewLoader(client *elasticsearch.Client, cfg *config.Settings, breakers *resilience.Breakers, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		client:   client,
		breakers: breakers,
		backoff: resilience.BackoffConfig{
			MaxAttempts: uint64(cfg.BackoffMaxAttempts),
			MaxElapsed:  cfg.BackoffMaxElapsed,
		},
		logger: logger,
	}
}

// Load bulk-upserts docs into the movies index. It returns the count of
// documents successfully indexed and the per-document failures collected
// along the way; a connection-level failure (as opposed to a per-document
// one) is retried with backoff and, on exhaustion, returned as err.
func (l *Loader) Load(ctx context.Context, docs []types.FilmDocument) (int, []DocError, error) {
	if len(docs) == 0 {
		return 0, nil, nil
	}

	var (
		succeeded int
		failed    []DocError
		connErr   error
	)

	submitOnce := func() error {
		succeeded = 0
		failed = nil
		connErr = nil

		bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Index:  IndexName,
			Client: l.client,
			OnError: func(_ context.Context, err error) {
				connErr = err
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create bulk indexer: %w", err)
		}

		for _, doc := range docs {
			item, err := buildBulkItem(doc, &succeeded, &failed, &connErr)
			if err != nil {
				return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
			}
			if err := bi.Add(ctx, item); err != nil {
				return fmt.Errorf("failed to enqueue document %s: %w", doc.ID, err)
			}
		}

		if err := bi.Close(ctx); err != nil {
			return fmt.Errorf("bulk submission failed: %w", err)
		}

		// A transport-level failure (the whole request never reached the
		// cluster) never surfaces through bi.Close: the client marks every
		// item failed and hands the error to each item's OnFailure instead.
		// Treat that as a connection-class failure of the submission itself
		// so the backoff harness retries it rather than reporting a page's
		// worth of documents as individually rejected.
		if connErr != nil && resilience.IsConnectionError(connErr) {
			return connErr
		}
		return nil
	}

	err := resilience.WithBackoff(ctx, l.backoff, l.logger, "elasticsearch.bulk", func() error {
		return resilience.Guard(l.breakers.Search, submitOnce)
	})
	if err != nil {
		return 0, nil, err
	}

	for _, f := range failed {
		l.logger.Warn("document failed to index", logging.Fields.Document(f.ID))
	}

	return succeeded, failed, nil
}

func buildBulkItem(doc types.FilmDocument, succeeded *int, failed *[]DocError, connErr *error) (esutil.BulkIndexerItem, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return esutil.BulkIndexerItem{}, err
	}

	return esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		OnSuccess: func(_ context.Context, _ esutil.BulkIndexerItem, _ esutil.BulkIndexerResponseItem) {
			*succeeded++
		},
		OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			// err is non-nil for a client-side/transport failure on this
			// item (as opposed to an ES-side rejection, which only sets
			// res.Error). A connection-class err here means the whole bulk
			// request never reached the cluster, not a bad document.
			if err != nil && resilience.IsConnectionError(err) {
				*connErr = err
				return
			}
			cause := res.Error.Reason
			if err != nil {
				cause = err.Error()
			}
			*failed = append(*failed, DocError{ID: item.DocumentID, Cause: cause})
		},
	}, nil
}
