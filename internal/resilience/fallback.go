package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/gazevoice/internal/observe"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed or
// had an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// Request statuses recorded in metrics.
const (
	statusOK          = "ok"
	statusError       = "error"
	statusCircuitOpen = "circuit_open"
)

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for every entry's breaker. Name is
	// replaced with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Kind labels metrics, e.g. "stt".
	Kind string

	// Metrics records one provider request per attempt. Default:
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallbacks of the same
// provider type. Calls go to the first entry whose breaker is not open, in
// registration order. Entries must be registered before the group is used
// concurrently.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a fallback, tried after every entry added before it.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// Breaker returns the circuit breaker of the named entry.
func (fg *FallbackGroup[T]) Breaker(name string) (*CircuitBreaker, bool) {
	for _, e := range fg.entries {
		if e.name == name {
			return e.breaker, true
		}
	}
	return nil, false
}

// Execute calls fn with each entry in order until one succeeds. It returns
// [ErrAllFailed] wrapping the last error if none does.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a value.
// It also returns the name of the entry that produced it.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	r, _, err := executeNamed(fg, fn)
	return r, err
}

func executeNamed[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var (
		lastErr error
		zero    R
	)
	ctx := context.Background()
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, statusOK)
			return result, entry.name, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, statusCircuitOpen)
			slog.Debug("resilience: skipping provider, circuit open", "provider", entry.name, "kind", fg.cfg.Kind)
		} else {
			fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, statusError)
			slog.Warn("resilience: provider failed, trying next", "provider", entry.name, "kind", fg.cfg.Kind, "err", err)
		}
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
