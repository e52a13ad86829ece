// Package resilience guards calls to backing stores with a circuit breaker.
// Calls are never retried: a failure reaches the caller as it happened.
package resilience

import (
	"github.com/sony/gobreaker"

	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/metrics"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

// Breaker wraps a gobreaker.CircuitBreaker. Only store failures count against
// it; validation errors, conflicts and cancellations are the caller's doing.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker from configuration.
func NewBreaker(name string, cfg config.BreakerConfig, log *logger.Logger, m *metrics.Metrics) *Breaker {
	minRequests := cfg.MinRequests
	ratio := cfg.FailureRatio

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsStore(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.SetBreakerState(name, int(to))
			if log != nil {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. While open it fails fast with a store error
// wrapping ErrOpen; otherwise fn's error is returned unchanged.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var result T
	_, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		result = v
		return nil, err
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		var zero T
		return zero, errors.Store(err)
	}
	return result, err
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
