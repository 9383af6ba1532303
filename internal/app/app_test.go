package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/gazevoice/internal/command"
	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/internal/monitor"
	"github.com/MrWong99/gazevoice/internal/observe"
	publishmock "github.com/MrWong99/gazevoice/internal/publish/mock"
	"github.com/MrWong99/gazevoice/internal/session"
	"github.com/MrWong99/gazevoice/pkg/audio"
	audiomock "github.com/MrWong99/gazevoice/pkg/audio/mock"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
	sttmock "github.com/MrWong99/gazevoice/pkg/provider/stt/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = ""
	cfg.Voice.QueryInterval = 10 * time.Millisecond
	cfg.Voice.StopTimeout = time.Second
	cfg.Voice.FrameRate = 200
	return cfg
}

type fixture struct {
	app       *App
	backend   *sttmock.Backend
	device    *audiomock.Device
	publisher *publishmock.Publisher
}

func newFixture(t *testing.T, cfg *config.Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		backend:   sttmock.NewBackend(),
		device:    &audiomock.Device{Name: "test-mic"},
		publisher: &publishmock.Publisher{},
	}
	f.backend.Poll = 5 * time.Millisecond
	opts = append([]Option{
		WithBackend(f.backend),
		WithDevice(f.device),
		WithPublisher(f.publisher),
		WithMetrics(testMetrics(t)),
		WithRegistry(config.NewRegistry()),
	}, opts...)
	a, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	f.app = a
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestNew_InjectedProviders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())

	if !f.app.Session().Loaded() {
		t.Fatal("session not loaded with injected backend and device")
	}
	if rec := get(t, f.app.Handler(), "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d, want 200: %s", rec.Code, rec.Body)
	}
	if rec := get(t, f.app.Handler(), "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", rec.Code)
	}
}

func TestNew_UnknownProvidersDisableVoiceInput(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Providers.STT.Name = "nope"
	cfg.Providers.Audio.Name = "nope"

	a, err := New(context.Background(), cfg,
		WithRegistry(config.NewRegistry()),
		WithPublisher(&publishmock.Publisher{}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Session().Loaded() {
		t.Error("session loaded without providers")
	}
	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "speech backend not loaded") {
		t.Errorf("/readyz body = %s", rec.Body)
	}
}

func TestNew_FallbackBackends(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	primary, secondary := sttmock.NewBackend(), sttmock.NewBackend()
	primary.InitErr = errors.New("quota exceeded")
	reg.RegisterSTT("primary", func(config.ProviderEntry) (stt.Backend, error) { return primary, nil })
	reg.RegisterSTT("secondary", func(config.ProviderEntry) (stt.Backend, error) { return secondary, nil })
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Backend, error) { return nil, errors.New("no key") })
	reg.RegisterAudio("mic", func(config.ProviderEntry) (audio.CaptureDevice, error) {
		return &audiomock.Device{}, nil
	})

	cfg := testConfig()
	cfg.Providers.STT = config.STTConfig{
		ProviderEntry: config.ProviderEntry{Name: "primary"},
		Fallbacks:     []config.ProviderEntry{{Name: "broken"}, {Name: "secondary"}},
	}
	cfg.Providers.Audio.Name = "mic"

	a, err := New(context.Background(), cfg,
		WithRegistry(reg),
		WithPublisher(&publishmock.Publisher{}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.fallback == nil {
		t.Fatal("no fallback backend built")
	}
	if got := strings.Join(a.fallback.Names(), ","); got != "primary,secondary" {
		t.Errorf("fallback names = %q, want primary,secondary", got)
	}

	a.Session().Activate()
	if got := a.fallback.Current(); got != "secondary" {
		t.Errorf("serving backend = %q, want secondary", got)
	}
	if secondary.InitCallCount() != 1 {
		t.Errorf("secondary init calls = %d, want 1", secondary.InitCallCount())
	}
}

func TestRun_ResolvesAndPublishes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()

	waitFor(t, "activation", func() bool { return f.app.Session().Running() })
	f.backend.Push("search golang")

	waitFor(t, "published action", func() bool { return len(f.publisher.Published()) == 1 })
	msg := f.publisher.Published()[0]
	if msg.Command != command.Search.String() || msg.Parameter != "golang" {
		t.Errorf("published %+v, want SEARCH golang", msg)
	}
	if got := f.app.Recorder().Get(monitor.CurrentAction); got != "search" {
		t.Errorf("CURRENT_ACTION = %q, want search", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_KeyboardSwitchesToFreeMode(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.app.Run(ctx) }()

	waitFor(t, "activation", func() bool { return f.app.Session().Running() })
	f.app.SetKeyboardActive(true)
	waitFor(t, "free mode stream", func() bool {
		last, ok := f.backend.LastInit()
		return ok && last.Model == session.DefaultModelFree
	})
	if got := f.app.Session().Mode(); got != command.ModeFree {
		t.Errorf("mode = %v, want FREE", got)
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()
	level := new(slog.LevelVar)
	f := newFixture(t, testConfig(), WithLevelVar(level))
	f.app.Session().Activate()

	next := testConfig()
	next.Server.LogLevel = config.LogDebug
	next.Voice.Language = "de-DE"
	next.Voice.Scorer = config.ScorerSoundex
	f.app.applyConfig(f.app.Config(), next)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if got := f.app.Session().Config().Language; got != "de-DE" {
		t.Errorf("session language = %q, want de-DE", got)
	}
	if f.app.Config() != next {
		t.Error("Config() not replaced")
	}
	waitFor(t, "reactivation with new language", func() bool {
		last, ok := f.backend.LastInit()
		return ok && last.Language == "de-DE" && f.app.Session().State() == session.Active
	})
}

func TestApplyConfig_InactiveSessionNotRestarted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())

	next := testConfig()
	next.Voice.MaxAlternatives = 5
	f.app.applyConfig(f.app.Config(), next)

	if got := f.app.Session().Config().MaxAlternatives; got != 5 {
		t.Errorf("MaxAlternatives = %d, want 5", got)
	}
	if n := f.backend.InitCallCount(); n != 0 {
		t.Errorf("InitializeStream calls = %d, want 0 for inactive session", n)
	}
}

func TestRun_HotReloadFromFile(t *testing.T) {
	t.Parallel()
	const initial = "voice:\n  language: en-US\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFromReader(strings.NewReader(initial))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.ListenAddr = ""
	f := newFixture(t, cfg, WithConfigPath(path), WithReloadInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.app.Run(ctx) }()
	waitFor(t, "activation", func() bool { return f.app.Session().Running() })

	if err := os.WriteFile(path, []byte("voice:\n  language: fr-FR\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "reload", func() bool { return f.app.Session().Config().Language == "fr-FR" })
	waitFor(t, "restart with new language", func() bool {
		last, ok := f.backend.LastInit()
		return ok && last.Language == "fr-FR"
	})
}

func TestHandler_MonitorSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())

	rec := get(t, f.app.Handler(), "/monitor")
	if rec.Code != http.StatusOK {
		t.Fatalf("/monitor = %d", rec.Code)
	}
	var snap map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(snap[string(monitor.AvailableCommands)], "go to") {
		t.Errorf("AVAILABLE_COMMANDS = %q, want it to list go to", snap[string(monitor.AvailableCommands)])
	}
	if snap[string(monitor.Mode)] != command.ModeCommand.String() {
		t.Errorf("MODE = %q", snap[string(monitor.Mode)])
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testConfig())
	f.app.Session().Activate()

	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if f.publisher.CloseCallCount != 1 {
		t.Errorf("publisher closed %d times, want 1", f.publisher.CloseCallCount)
	}
	if f.app.Session().State() != session.Inactive {
		t.Errorf("state = %v, want Inactive", f.app.Session().State())
	}
}
