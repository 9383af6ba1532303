// Package streaming adapts a channel-based [stt.Provider] into the
// six-operation [stt.Backend] consumed by the voice session.
//
// Each InitializeStream opens a fresh [stt.SessionHandle]. SendAudio encodes
// samples as little-endian PCM, ReceiveTranscript blocks on the session's
// finals (and partials when interim results were requested) and renders
// ranked alternatives as a ';'-separated string.
package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// Option is a functional option for [New].
type Option func(*Backend)

// WithContext sets the parent context for every stream opened by the backend.
// Defaults to [context.Background].
func WithContext(ctx context.Context) Option {
	return func(b *Backend) { b.base = ctx }
}

// Backend implements [stt.Backend] on top of an [stt.Provider].
type Backend struct {
	provider stt.Provider
	base     context.Context

	mu      sync.Mutex
	handle  stt.SessionHandle
	cfg     stt.StreamConfig
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// Ensure Backend implements stt.Backend at compile time.
var _ stt.Backend = (*Backend)(nil)

// New returns a Backend that opens streams on p.
func New(p stt.Provider, opts ...Option) *Backend {
	b := &Backend{provider: p, base: context.Background()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// InitializeStream closes any open stream and starts a new one with cfg.
func (b *Backend) InitializeStream(cfg stt.StreamConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()

	ctx, cancel := context.WithCancel(b.base)
	h, err := b.provider.StartStream(ctx, cfg)
	if err != nil {
		cancel()
		b.lastErr = err
		return fmt.Errorf("streaming: start stream: %w", err)
	}
	b.handle = h
	b.cfg = cfg
	b.cancel = cancel
	b.done = make(chan struct{})
	b.lastErr = nil
	return nil
}

// SendAudio forwards samples to the open stream. An empty batch is a no-op.
func (b *Backend) SendAudio(samples []int16) error {
	b.mu.Lock()
	h := b.handle
	b.mu.Unlock()
	if h == nil {
		return stt.ErrNotInitialized
	}
	if len(samples) == 0 {
		return nil
	}
	if err := h.SendAudio(audio.SamplesToPCM(samples)); err != nil {
		b.setErr(err)
		return fmt.Errorf("streaming: send audio: %w", err)
	}
	return nil
}

// ReceiveTranscript blocks until the stream delivers a result or is closed.
// A result with no text yields "" and a nil error.
func (b *Backend) ReceiveTranscript() (string, error) {
	b.mu.Lock()
	h, done, cfg := b.handle, b.done, b.cfg
	b.mu.Unlock()
	if h == nil {
		return "", stt.ErrNotInitialized
	}

	var partials <-chan stt.Transcript
	if cfg.InterimResults {
		partials = h.Partials()
	}

	select {
	case t, ok := <-h.Finals():
		if !ok {
			b.streamEnded(h)
			return "", stt.ErrStreamClosed
		}
		return t.Joined(cfg.MaxAlternatives), nil
	case t, ok := <-partials:
		if !ok {
			b.streamEnded(h)
			return "", stt.ErrStreamClosed
		}
		return t.Joined(cfg.MaxAlternatives), nil
	case <-done:
		return "", stt.ErrStreamClosed
	}
}

// IsInitialized reports whether a stream is open.
func (b *Backend) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle != nil
}

// CloseStream closes the open stream, if any.
func (b *Backend) CloseStream() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

// Log returns a description of the most recent failure, or "".
func (b *Backend) Log() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastErr == nil {
		return ""
	}
	return b.lastErr.Error()
}

func (b *Backend) setErr(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// streamEnded drops h if the provider closed it on its own.
func (b *Backend) streamEnded(h stt.SessionHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != h {
		return
	}
	b.lastErr = stt.ErrStreamClosed
	b.closeLocked()
}

func (b *Backend) closeLocked() {
	if b.handle == nil {
		return
	}
	if err := b.handle.Close(); err != nil {
		slog.Warn("streaming: close session", "err", err)
	}
	b.cancel()
	close(b.done)
	b.handle = nil
	b.cancel = nil
	b.done = nil
}
