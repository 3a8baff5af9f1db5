package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/elchinoo/moviesync/internal/logging"
)

// BackoffConfig bounds the retry harness wrapping every connection-class
// operation: opening a connection, issuing the paging query, submitting a
// bulk upsert.
type BackoffConfig struct {
	MaxAttempts uint64
	MaxElapsed  time.Duration
}

// WithBackoff retries op with exponential backoff while it returns a
// connection-class error, up to MaxAttempts or MaxElapsed, whichever comes
// first. Non connection-class errors (and context cancellation) abort
// immediately without further retries, per the retry/backoff policy: only
// transient connectivity is retried, query/transport errors propagate.
func WithBackoff(ctx context.Context, cfg BackoffConfig, logger logging.Logger, opName string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = cfg.MaxElapsed

	// MaxAttempts counts the first try; WithMaxRetries counts only the
	// retries after it.
	retries := cfg.MaxAttempts
	if retries > 0 {
		retries--
	}
	var bo backoff.BackOff = backoff.WithMaxRetries(eb, retries)
	bo = backoff.WithContext(bo, ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsConnectionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, delay time.Duration) {
		fields := logging.Fields.Attempt(opName, attempt)
		fields = append(fields, zap.Duration("delay", delay), zap.Error(err))
		logger.Warn("retrying after transient connection error", fields...)
	})
}

// IsConnectionError classifies err as a transient, connection-class failure
// eligible for backoff retry, as opposed to a query/transport error that is
// fatal for the current pass.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"eof",
		"dial tcp",
		"too many connections",
		"server closed the connection unexpectedly",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
