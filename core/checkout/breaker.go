package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the breaker refuses calls to the provider.
var ErrUnavailable = errors.New("payment provider unavailable")

type BreakerConfig struct {
	Name string
	// Failures is the number of consecutive temporary failures that opens
	// the breaker.
	Failures    uint32
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// Breaker stops calling a failing provider for a while. Only temporary
// provider failures count; declined payments and calls abandoned by the
// caller leave it closed.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[Session]
}

func NewBreaker(next Provider, cfg BreakerConfig, log logrus.FieldLogger) *Breaker {
	failures := cfg.Failures
	if failures == 0 {
		failures = 5
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("payment provider breaker changed state")
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var perr *ProviderError
			return errors.As(err, &perr) && !perr.Temporary
		},
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[Session](st),
	}
}

func (b *Breaker) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	s, err := b.cb.Execute(func() (Session, error) {
		return b.next.CreateSession(ctx, req)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Session{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
