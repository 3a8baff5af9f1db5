package etl

import (
	"context"
	"time"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/database"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/metrics"
	"github.com/elchinoo/moviesync/internal/resilience"
	"github.com/elchinoo/moviesync/internal/search"
	"github.com/elchinoo/moviesync/pkg/types"
)

// Supervisor owns the service's outer loop: Starting, Idle, Pass, and
// shutdown. It is the only component that decides when a checkpoint is
// saved; the extractor, transformer, and loader are pure within a pass.
type Supervisor struct {
	extractor  *database.Extractor
	loader     *search.Loader
	checkpoint *resilience.CheckpointStore
	collector  *metrics.Collector
	logger     logging.Logger

	sleepInterval   time.Duration
	failedPassSleep time.Duration
}

// NewSupervisor assembles a Supervisor from its already-connected
// collaborators.
func NewSupervisor(
	extractor *database.Extractor,
	loader *search.Loader,
	checkpoint *resilience.CheckpointStore,
	collector *metrics.Collector,
	cfg *config.Settings,
	logger logging.Logger,
) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		extractor:       extractor,
		loader:          loader,
		checkpoint:      checkpoint,
		collector:       collector,
		logger:          logger,
		sleepInterval:   cfg.SleepInterval,
		failedPassSleep: cfg.FailedPassSleep,
	}
}

// Run drives the Idle -> Pass -> Idle(sleep) loop until ctx is cancelled.
// It never returns an error for a failed pass: a failed pass logs, sleeps
// FailedPassSleep instead of SleepInterval, and retries on the next
// iteration, exactly as a
// connectivity blip is expected to resolve itself.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.logger.Info("shutting down")
			return nil
		}

		checkpoint := s.checkpoint.Load()
		s.collector.ObserveCheckpoint(checkpoint)

		start := time.Now()
		processed, succeeded, failed, err := s.runPass(ctx, checkpoint)
		s.collector.LastPassDuration.Set(time.Since(start).Seconds())

		sleep := s.sleepInterval
		if err != nil {
			s.logger.Error("pass aborted", err, logging.Fields.Pass(processed, succeeded, failed)...)
			s.collector.PassesFailed.Inc()
			sleep = s.failedPassSleep
		} else {
			s.logger.Info("pass complete", logging.Fields.Pass(processed, succeeded, failed)...)
			s.collector.PassesSucceeded.Inc()
		}

		if !s.sleepOrDone(ctx, sleep) {
			return nil
		}
	}
}

// runPass drains the extractor stream for one pass, piping each page
// through the transformer and loader, advancing and saving the checkpoint
// after every page that fully loads. It stops and returns the error from
// the first page that fails to load; rows already committed in prior pages
// of this pass keep their checkpoint advance.
func (s *Supervisor) runPass(ctx context.Context, checkpoint time.Time) (processed, succeeded, failed int, err error) {
	it := s.extractor.Open(checkpoint)

	for {
		if ctx.Err() != nil {
			return processed, succeeded, failed, nil
		}

		page, ok, nextErr := it.Next(ctx)
		if nextErr != nil {
			return processed, succeeded, failed, nextErr
		}
		if !ok {
			return processed, succeeded, failed, nil
		}

		s.logger.Info("page extracted", logging.Fields.Page(page.MaxModified().Format(time.RFC3339Nano), len(page))...)

		docs := make([]types.FilmDocument, len(page))
		for i, film := range page {
			docs[i] = Transform(film)
		}

		n, docErrors, loadErr := s.loader.Load(ctx, docs)
		if loadErr != nil {
			return processed, succeeded, failed, loadErr
		}

		processed += len(page)
		succeeded += n
		failed += len(docErrors)
		s.collector.PagesProcessed.Inc()
		s.collector.DocumentsIndexed.Add(float64(n))
		s.collector.DocumentsFailed.Add(float64(len(docErrors)))

		maxModified := page.MaxModified()
		if err := s.checkpoint.Save(maxModified); err != nil {
			return processed, succeeded, failed, err
		}
		s.collector.ObserveCheckpoint(maxModified)
	}
}

// sleepOrDone waits for d or ctx cancellation, whichever comes first,
// returning false if the caller should stop looping.
func (s *Supervisor) sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
