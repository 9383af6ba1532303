package resilience

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/gazevoice/pkg/provider/stt"
	sttmock "github.com/MrWong99/gazevoice/pkg/provider/stt/mock"
)

func newBackendFallback(t *testing.T, cb CircuitBreakerConfig) (*BackendFallback, *sttmock.Backend, *sttmock.Backend) {
	t.Helper()
	m, _ := testMetrics(t)
	primary, secondary := sttmock.NewBackend(), sttmock.NewBackend()
	f := NewBackendFallback(primary, "primary", FallbackConfig{CircuitBreaker: cb, Metrics: m})
	f.AddFallback("secondary", secondary)
	return f, primary, secondary
}

func TestBackendFallback_UsesPrimary(t *testing.T) {
	t.Parallel()
	f, primary, secondary := newBackendFallback(t, CircuitBreakerConfig{})

	if err := f.InitializeStream(stt.StreamConfig{Language: "en-US"}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}
	if f.Current() != "primary" || !f.IsInitialized() {
		t.Fatalf("Current = %q, initialized = %v", f.Current(), f.IsInitialized())
	}
	if err := f.SendAudio([]int16{1, 2}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	primary.Push("back")
	if text, err := f.ReceiveTranscript(); err != nil || text != "back" {
		t.Errorf("ReceiveTranscript = %q, %v", text, err)
	}
	if primary.SendCallCount() != 1 || secondary.InitCallCount() != 0 {
		t.Error("calls did not go to the primary only")
	}
}

func TestBackendFallback_FailsOverOnInit(t *testing.T) {
	t.Parallel()
	f, primary, secondary := newBackendFallback(t, CircuitBreakerConfig{})
	primary.InitErr = errors.New("unauthenticated")
	primary.LogText = "bad key"

	if err := f.InitializeStream(stt.StreamConfig{}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}
	if f.Current() != "secondary" {
		t.Errorf("Current = %q, want secondary", f.Current())
	}
	if secondary.InitCallCount() != 1 {
		t.Errorf("secondary init calls = %d, want 1", secondary.InitCallCount())
	}
}

func TestBackendFallback_AllFail(t *testing.T) {
	t.Parallel()
	f, primary, secondary := newBackendFallback(t, CircuitBreakerConfig{})
	primary.InitErr = errors.New("down")
	secondary.InitErr = errors.New("also down")

	err := f.InitializeStream(stt.StreamConfig{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if f.IsInitialized() {
		t.Error("IsInitialized = true after failure")
	}
	if !strings.Contains(f.Log(), "also down") {
		t.Errorf("Log = %q, want last error", f.Log())
	}
	if err := f.SendAudio(nil); !errors.Is(err, stt.ErrNotInitialized) {
		t.Errorf("SendAudio err = %v, want ErrNotInitialized", err)
	}
	if _, err := f.ReceiveTranscript(); !errors.Is(err, stt.ErrNotInitialized) {
		t.Errorf("ReceiveTranscript err = %v, want ErrNotInitialized", err)
	}
}

func TestBackendFallback_StreamFailureTripsPrimary(t *testing.T) {
	t.Parallel()
	f, primary, _ := newBackendFallback(t, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	primary.SendErr = errors.New("quota exceeded")

	if err := f.InitializeStream(stt.StreamConfig{}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}
	if f.Current() != "primary" {
		t.Fatalf("Current = %q, want primary", f.Current())
	}
	if err := f.SendAudio([]int16{1}); err == nil {
		t.Fatal("SendAudio succeeded, want quota error")
	}

	if err := f.InitializeStream(stt.StreamConfig{}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}
	if f.Current() != "secondary" {
		t.Errorf("Current = %q, want secondary after primary tripped", f.Current())
	}
}

func TestBackendFallback_CloseStream(t *testing.T) {
	t.Parallel()
	f, primary, _ := newBackendFallback(t, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	if err := f.InitializeStream(stt.StreamConfig{}); err != nil {
		t.Fatalf("InitializeStream: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := f.ReceiveTranscript()
		errc <- err
	}()
	time.Sleep(5 * time.Millisecond)
	f.CloseStream()

	select {
	case err := <-errc:
		if !errors.Is(err, stt.ErrStreamClosed) && !errors.Is(err, stt.ErrNotInitialized) {
			t.Errorf("err = %v, want ErrStreamClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReceiveTranscript not unblocked by CloseStream")
	}
	if primary.IsInitialized() || f.Current() != "" {
		t.Error("stream still open after CloseStream")
	}
	// Closing the stream is not a backend failure.
	if cb, _ := f.Breaker("primary"); cb.State() != StateClosed {
		t.Errorf("primary breaker = %v, want closed", cb.State())
	}
}
