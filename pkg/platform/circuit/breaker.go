// Package circuit guards calls to flaky dependencies with a gobreaker
// circuit breaker.
package circuit

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned instead of calling through while the circuit is open,
// or while a half-open trial call is already in flight.
var ErrOpen = errors.New("circuit open")

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Breaker opens after a run of consecutive failures. Once the cooldown has
// passed it admits a single trial call: success closes the circuit, failure
// reopens it for another cooldown.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

type settings struct {
	threshold uint32
	cooldown  time.Duration
	onChange  func(name string, from, to State)
}

type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Default 5.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.threshold = uint32(n)
		}
	}
}

// WithCooldown sets how long the circuit stays open before probing.
// Default 30s.
func WithCooldown(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithStateChange is called on every transition, under the breaker's lock.
// fn must not call back into the breaker.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onChange = fn }
}

func New(name string, opts ...Option) *Breaker {
	s := settings{threshold: 5, cooldown: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.threshold
		},
		OnStateChange: s.onChange,
	})}
}

func (b *Breaker) Name() string { return b.cb.Name() }

func (b *Breaker) State() State { return b.cb.State() }

// Do runs fn unless the circuit rejects the call, in which case it returns
// ErrOpen without calling fn. fn's error is returned unchanged.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}
