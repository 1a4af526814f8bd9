package httpx

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker guards a dependency call so a flapping collaborator cannot
// consume the whole latency budget of every validation.
type CircuitBreaker interface {
	Execute(fn func() error) error
}

type breakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string, openFor time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &breakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (w *breakerWrapper) Execute(fn func() error) error {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", w.breaker.Name(), err)
	}
	return nil
}
