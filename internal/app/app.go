// Package app wires the gazevoice subsystems into a running application.
//
// New builds the capture device, transcription backend (with fallbacks),
// session, controller and action publisher from the config. Run drives the
// controller from a fixed-rate frame loop next to the diagnostics HTTP
// server and the config watcher, and Shutdown tears everything down.
//
// For testing, inject doubles via functional options ([WithBackend],
// [WithDevice], [WithPublisher], ...). When an option is not provided, New
// creates the implementation from the config through the [config.Registry].
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/internal/health"
	"github.com/MrWong99/gazevoice/internal/matcher"
	"github.com/MrWong99/gazevoice/internal/monitor"
	"github.com/MrWong99/gazevoice/internal/observe"
	"github.com/MrWong99/gazevoice/internal/publish"
	"github.com/MrWong99/gazevoice/internal/resilience"
	"github.com/MrWong99/gazevoice/internal/session"
	"github.com/MrWong99/gazevoice/internal/voiceinput"
	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// shutdownGrace bounds the graceful stop of the HTTP server.
const shutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfgMu sync.Mutex
	cfg   *config.Config

	registry   *config.Registry
	metrics    *observe.Metrics
	level      *slog.LevelVar
	configPath string
	reloadPoll time.Duration

	backend   stt.Backend
	fallback  *resilience.BackendFallback
	device    audio.CaptureDevice
	publisher publish.Publisher
	mqtt      *publish.MQTT

	recorder   *monitor.Recorder
	session    *session.Session
	controller *voiceinput.Controller
	health     *health.Handler
	metricsH   http.Handler

	keyboard atomic.Bool

	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithRegistry sets the provider registry. Default: a registry holding the
// [RegisterBuiltins] providers reading the console from stdin.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithBackend injects the transcription backend instead of creating it from
// config. Fallbacks in the config are ignored.
func WithBackend(b stt.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithDevice injects the capture device instead of creating it from config.
func WithDevice(d audio.CaptureDevice) Option {
	return func(a *App) { a.device = d }
}

// WithPublisher injects the action publisher instead of connecting to the
// configured MQTT broker.
func WithPublisher(p publish.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar sets the level variable of the default logger so that config
// reloads can change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigPath enables hot reload of the config file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithReloadInterval sets how often the config file is polled. Default: the
// watcher's own interval.
func WithReloadInterval(d time.Duration) Option {
	return func(a *App) { a.reloadPoll = d }
}

// WithMetricsHandler replaces the /metrics handler. Default:
// [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// New creates an App from cfg. A transcription backend or capture device
// that cannot be built is logged and leaves voice input disabled; New only
// fails when the action publisher cannot be created.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.Slog())
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
		RegisterBuiltins(ctx, a.registry, os.Stdin)
	}
	if a.metricsH == nil {
		a.metricsH = promhttp.Handler()
	}
	a.recorder = monitor.NewRecorder()

	if a.backend == nil {
		a.initBackend()
	}
	if a.device == nil {
		a.initDevice()
	}
	if err := a.initPublisher(); err != nil {
		return nil, fmt.Errorf("app: init publisher: %w", err)
	}

	a.session, _ = session.New(a.backend, a.device, cfg.Voice.Session(),
		session.WithSink(a.recorder),
		session.WithMetrics(a.metrics),
	)

	scorer, err := matcher.ScorerByName(string(cfg.Voice.Scorer))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	ctrlOpts := []voiceinput.Option{
		voiceinput.WithMatcher(matcher.New(matcher.WithScorer(scorer))),
		voiceinput.WithSink(a.recorder),
		voiceinput.WithMetrics(a.metrics),
		voiceinput.WithPublisher(a.publisher),
		voiceinput.WithCompareScorers(cfg.Voice.CompareScorers),
	}
	if cfg.Voice.PeriodicRestart {
		ctrlOpts = append(ctrlOpts, voiceinput.WithPeriodicRestart(cfg.Voice.RunTimeLimit))
	}
	a.controller = voiceinput.New(a.session, nil, ctrlOpts...)

	checkers := []health.Checker{health.SpeechLoaded(a.session)}
	if a.fallback != nil {
		checkers = append(checkers, health.Backends(a.fallback))
	}
	if a.mqtt != nil {
		checkers = append(checkers, health.Publisher(a.mqtt))
	}
	a.health = health.New(checkers...)

	return a, nil
}

// initBackend builds the configured transcription backend. With fallbacks
// configured, every backend that can be built joins a
// [resilience.BackendFallback], the first one as primary.
func (a *App) initBackend() {
	sc := a.cfg.Providers.STT
	entries := append([]config.ProviderEntry{sc.ProviderEntry}, sc.Fallbacks...)

	type built struct {
		name    string
		backend stt.Backend
	}
	var backends []built
	for _, e := range entries {
		b, err := a.registry.CreateSTT(e)
		if err != nil {
			slog.Error("app: cannot create transcription backend", "name", e.Name, "err", err)
			continue
		}
		slog.Info("app: transcription backend created", "name", e.Name)
		backends = append(backends, built{e.Name, b})
	}

	switch {
	case len(backends) == 0:
		return
	case len(sc.Fallbacks) == 0:
		a.backend = backends[0].backend
		return
	}

	fb := resilience.NewBackendFallback(backends[0].backend, backends[0].name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  sc.CircuitBreaker.MaxFailures,
			ResetTimeout: sc.CircuitBreaker.ResetTimeout,
		},
		Kind:    "stt",
		Metrics: a.metrics,
	})
	for _, b := range backends[1:] {
		fb.AddFallback(b.name, b.backend)
	}
	a.fallback = fb
	a.backend = fb
}

func (a *App) initDevice() {
	entry := a.cfg.Providers.Audio
	d, err := a.registry.CreateAudio(entry)
	if err != nil {
		slog.Error("app: cannot create capture device", "name", entry.Name, "err", err)
		return
	}
	slog.Info("app: capture device created", "name", entry.Name)
	a.device = d
}

func (a *App) initPublisher() error {
	if a.publisher != nil {
		return nil
	}
	mc := a.cfg.Publish.MQTT
	if !mc.Enabled() {
		a.publisher = publish.Nop
		return nil
	}
	p, err := publish.NewMQTT(mc.Publisher(), publish.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.mqtt = p
	a.publisher = p
	return nil
}

// Config returns the config currently applied.
func (a *App) Config() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

// Session returns the transcription session.
func (a *App) Session() *session.Session { return a.session }

// Controller returns the voice input controller.
func (a *App) Controller() *voiceinput.Controller { return a.controller }

// Recorder returns the diagnostics recorder.
func (a *App) Recorder() *monitor.Recorder { return a.recorder }

// SetKeyboardActive tells the frame loop whether the on-screen keyboard is
// showing, which switches the vocabulary to free mode.
func (a *App) SetKeyboardActive(active bool) { a.keyboard.Store(active) }

// Handler returns the diagnostics HTTP handler:
//
//	GET /healthz, GET /readyz   health probes
//	GET /metrics                Prometheus scrape endpoint
//	GET /monitor                JSON snapshot of the diagnostics categories
//	/monitor/ws                 live diagnostics websocket
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", a.metricsH)
	mux.HandleFunc("GET /monitor", a.serveSnapshot)
	mux.Handle("/monitor/ws", monitor.Handler(a.recorder,
		monitor.WithToggler(a.controller),
		monitor.WithOriginPatterns(a.Config().Server.MonitorOrigins...),
	))
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(a.recorder.Snapshot()); err != nil {
		slog.Warn("app: encode monitor snapshot", "err", err)
	}
}

// Run activates voice input and blocks until ctx is cancelled or a
// component fails. It runs the frame loop, the diagnostics server (when a
// listen address is configured) and the config watcher (when a config path
// was given).
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.WithInterval(a.reloadPoll))
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	cfg := a.Config()
	if cfg.Server.ListenAddr != "" {
		g.Go(func() error { return a.serve(gctx, cfg.Server) })
	}

	a.controller.Activate()
	g.Go(func() error { return a.frameLoop(gctx, cfg.Voice.FrameInterval()) })

	slog.Info("app: running",
		"loaded", a.session.Loaded(),
		"listen_addr", cfg.Server.ListenAddr,
		"frame_interval", cfg.Voice.FrameInterval(),
	)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// frameLoop calls Update once per tick with the elapsed time.
func (a *App) frameLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.controller.Update(now.Sub(last), a.keyboard.Load())
			last = now
		}
	}
}

func (a *App) serve(ctx context.Context, sc config.ServerConfig) error {
	srv := &http.Server{
		Addr:              sc.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("app: diagnostics server listening", "addr", sc.ListenAddr, "tls", sc.TLS != nil)
		var err error
		if sc.TLS != nil {
			err = srv.ListenAndServeTLS(sc.TLS.CertFile, sc.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: diagnostics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("app: diagnostics server shutdown", "err", err)
		}
		return nil
	}
}

// Shutdown stops voice input and closes the publisher. It respects the
// context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down")

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.session.Close()
			if err := a.publisher.Close(); err != nil {
				slog.Warn("app: publisher close error", "err", err)
			}
		}()

		select {
		case <-done:
			slog.Info("app: shutdown complete")
		case <-ctx.Done():
			slog.Warn("app: shutdown deadline exceeded")
			shutdownErr = ctx.Err()
		}
	})
	return shutdownErr
}
