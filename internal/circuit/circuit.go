// Package circuit wraps resilience-sensitive calls (study-DB trial
// reads/writes in internal/store, model-registry loads in
// cmd/genesis-core) in a circuit breaker so repeated failures fail fast
// instead of compounding retries under contention.
package circuit

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps gobreaker.CircuitBreaker with the naming convention used
// throughout this codebase (Closed/Open/HalfOpen).
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config tunes the breaker's trip threshold and recovery timing.
type Config struct {
	Name            string
	MaxFailures     uint32
	OpenTimeout     time.Duration
	HalfOpenMaxCall uint32
}

// New constructs a Breaker from Config.
func New(cfg Config) *Breaker {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCall,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// ErrOpen is returned when the breaker is open and rejects a call.
var ErrOpen = gobreaker.ErrOpenState

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// State returns a human-readable breaker state name.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// IsOpenError reports whether err indicates the breaker is open.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}
