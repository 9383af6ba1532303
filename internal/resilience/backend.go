package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// BackendFallback implements [stt.Backend] across a primary and fallback
// backends. InitializeStream opens the stream on the first backend whose
// circuit is not open; every other call goes to that backend until the
// stream is closed. Send and receive failures count against the serving
// backend's breaker, so the next stream initialisation skips a backend that
// keeps failing.
type BackendFallback struct {
	group *FallbackGroup[stt.Backend]

	mu      sync.Mutex
	current stt.Backend
	name    string
	lastErr error
}

var _ stt.Backend = (*BackendFallback)(nil)

// NewBackendFallback returns a BackendFallback with primary preferred.
func NewBackendFallback(primary stt.Backend, primaryName string, cfg FallbackConfig) *BackendFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &BackendFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend, tried after those added before it.
func (f *BackendFallback) AddFallback(name string, b stt.Backend) {
	f.group.AddFallback(name, b)
}

// Current returns the name of the backend serving the open stream, or "".
func (f *BackendFallback) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Names returns the backend names in the order they are tried.
func (f *BackendFallback) Names() []string {
	return f.group.Names()
}

// Breaker returns the circuit breaker of the named backend.
func (f *BackendFallback) Breaker(name string) (*CircuitBreaker, bool) {
	return f.group.Breaker(name)
}

// InitializeStream closes any open stream and opens a new one on the first
// healthy backend.
func (f *BackendFallback) InitializeStream(cfg stt.StreamConfig) error {
	f.CloseStream()

	b, name, err := executeNamed(f.group, func(b stt.Backend) (stt.Backend, error) {
		if err := b.InitializeStream(cfg); err != nil {
			if log := b.Log(); log != "" {
				return nil, fmt.Errorf("%w (%s)", err, log)
			}
			return nil, err
		}
		return b, nil
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.lastErr = err
		return err
	}
	f.current, f.name, f.lastErr = b, name, nil
	slog.Info("resilience: transcription stream opened", "backend", name)
	return nil
}

func (f *BackendFallback) serving() (stt.Backend, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.name
}

// fail counts err against the named backend if it still serves the stream.
func (f *BackendFallback) fail(b stt.Backend, name string, err error) {
	f.mu.Lock()
	still := f.current == b
	f.mu.Unlock()
	if !still {
		return
	}
	if cb, ok := f.group.Breaker(name); ok {
		cb.Record(err)
	}
}

// SendAudio forwards samples to the serving backend.
func (f *BackendFallback) SendAudio(samples []int16) error {
	b, name := f.serving()
	if b == nil {
		return stt.ErrNotInitialized
	}
	err := b.SendAudio(samples)
	if err != nil {
		f.fail(b, name, err)
	}
	return err
}

// ReceiveTranscript blocks on the serving backend.
func (f *BackendFallback) ReceiveTranscript() (string, error) {
	b, name := f.serving()
	if b == nil {
		return "", stt.ErrNotInitialized
	}
	text, err := b.ReceiveTranscript()
	if err != nil && !errors.Is(err, stt.ErrStreamClosed) {
		f.fail(b, name, err)
	}
	return text, err
}

// IsInitialized reports whether the serving backend has an open stream.
func (f *BackendFallback) IsInitialized() bool {
	b, _ := f.serving()
	return b != nil && b.IsInitialized()
}

// CloseStream closes the serving backend's stream.
func (f *BackendFallback) CloseStream() {
	f.mu.Lock()
	b := f.current
	f.current, f.name = nil, ""
	f.mu.Unlock()
	if b != nil {
		b.CloseStream()
	}
}

// Log returns the serving backend's log, or the last initialisation error.
func (f *BackendFallback) Log() string {
	f.mu.Lock()
	b, lastErr := f.current, f.lastErr
	f.mu.Unlock()
	if b != nil {
		return b.Log()
	}
	if lastErr != nil {
		return lastErr.Error()
	}
	return ""
}
