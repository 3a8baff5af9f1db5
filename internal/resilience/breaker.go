package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/elchinoo/moviesync/internal/logging"
)

// Breakers holds the circuit breakers guarding the two connection-class
// dependencies: the relational source and the search index. Both trip
// independently so an outage of one endpoint never fails fast on the other.
type Breakers struct {
	Database *gobreaker.CircuitBreaker[any]
	Search   *gobreaker.CircuitBreaker[any]
}

// NewBreakers builds the pair of breakers, logging every state transition.
func NewBreakers(logger logging.Logger) *Breakers {
	onStateChange := func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	// Only connection-class errors count as breaker failures; a query or
	// mapping error is returned to the caller without moving the breaker.
	isSuccessful := func(err error) bool {
		return err == nil || !IsConnectionError(err)
	}

	return &Breakers{
		Database: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:          "postgres",
			MaxRequests:   3,
			Interval:      60 * time.Second,
			Timeout:       60 * time.Second,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
			IsSuccessful:  isSuccessful,
		}),
		Search: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:          "elasticsearch",
			MaxRequests:   3,
			Interval:      60 * time.Second,
			Timeout:       60 * time.Second,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
			IsSuccessful:  isSuccessful,
		}),
	}
}

// Guard runs op through cb. The breaker's own open-circuit errors are
// returned unchanged; IsConnectionError already classifies them as
// connection-class, so the backoff harness retries them.
func Guard(cb *gobreaker.CircuitBreaker[any], op func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, op()
	})
	return err
}
