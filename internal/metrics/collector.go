// Package metrics exposes the pipeline's throughput and health as
// Prometheus gauges/counters, and serves them alongside a liveness probe
// on the ambient ops HTTP server.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/elchinoo/moviesync/internal/logging"
)

// Collector holds the process-wide metric instruments. A single instance
// is constructed at startup and passed to the supervisor, which records
// every pipeline metric.
type Collector struct {
	PagesProcessed    prometheus.Counter
	DocumentsIndexed  prometheus.Counter
	DocumentsFailed   prometheus.Counter
	PassesSucceeded   prometheus.Counter
	PassesFailed      prometheus.Counter
	CheckpointLag     prometheus.Gauge
	LastPassDuration  prometheus.Gauge
}

// NewCollector registers the instruments against the default registry.
func NewCollector() *Collector {
	return &Collector{
		PagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "etl",
			Name:      "pages_processed_total",
			Help:      "Pages extracted from the relational source.",
		}),
		DocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "etl",
			Name:      "documents_indexed_total",
			Help:      "Documents successfully upserted into the search index.",
		}),
		DocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "etl",
			Name:      "documents_failed_total",
			Help:      "Documents that failed to index within a bulk submission.",
		}),
		PassesSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "etl",
			Name:      "passes_succeeded_total",
			Help:      "Passes that drained the extractor stream without error.",
		}),
		PassesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "etl",
			Name:      "passes_failed_total",
			Help:      "Passes aborted by an error, including connection errors left after retries.",
		}),
		CheckpointLag: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "etl",
			Name:      "checkpoint_lag_seconds",
			Help:      "Age of the persisted checkpoint relative to now.",
		}),
		LastPassDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "etl",
			Name:      "last_pass_duration_seconds",
			Help:      "Wall-clock duration of the most recently completed pass.",
		}),
	}
}

// ObserveCheckpoint updates the checkpoint lag gauge from the current
// high-water mark.
func (c *Collector) ObserveCheckpoint(t time.Time) {
	if t.IsZero() {
		return
	}
	c.CheckpointLag.Set(time.Since(t).Seconds())
}

// Server is the ambient ops HTTP surface: /healthz and /metrics only. It
// never exposes catalog data.
type Server struct {
	addr   string
	srv    *http.Server
	logger logging.Logger
}

// NewServer builds the ops server. addr may be empty, in which case Run is
// a no-op (the surface is disabled per METRICS_ADDR's documented default
// behavior).
func NewServer(addr string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: r},
		logger: logger,
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. A no-op if the server has no bind address.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops http server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
