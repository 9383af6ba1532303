// Package session manages the lifecycle of a transcription stream: it
// captures audio into a ring buffer, uploads it to an [stt.Backend] on a
// fixed interval, and queues the transcripts the backend returns.
//
// A [Session] runs two worker loops while active. The sender drains the ring
// buffer every QueryInterval and pushes the samples to the backend. The
// receiver blocks on the backend and appends every non-empty result to the
// transcript [Queue]. Either loop ends the activation (by setting its stop
// flag) when the backend reports the stream uninitialised or fails.
//
// No error is returned to callers. Device and backend failures are logged,
// counted, and reported to the diagnostics sink, and the session simply stops
// producing transcripts until it is reactivated.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/gazevoice/internal/command"
	"github.com/MrWong99/gazevoice/internal/monitor"
	"github.com/MrWong99/gazevoice/internal/observe"
	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// Activation reasons recorded in metrics.
const (
	reasonActivate = "activate"
	reasonRestart  = "restart"
)

// Option is a functional option for [New].
type Option func(*Session)

// WithSink sets the diagnostics sink. Default: [monitor.Discard].
func WithSink(s monitor.Sink) Option {
	return func(sess *Session) {
		if s != nil {
			sess.sink = s
		}
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(sess *Session) {
		if m != nil {
			sess.metrics = m
		}
	}
}

// WithTracerProvider sets the provider of activation spans. Default: the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(sess *Session) { sess.tracer = observe.Tracer(tp) }
}

// WithMode sets the initial vocabulary mode. Default: [command.ModeCommand].
func WithMode(m command.Mode) Option {
	return func(sess *Session) { sess.mode = m }
}

// run is the state of one activation. Worker loops only ever see their own
// run, so loops that outlive a timed-out Deactivate cannot be revived by the
// next activation.
type run struct {
	id     string
	stop   atomic.Bool
	quit   chan struct{} // closed by Deactivate to wake the sender
	done   chan struct{} // closed when both loops have exited
	ring   *audio.RingBuffer
	stream audio.CaptureStream
	log    *slog.Logger
}

// Session owns one transcription stream and its capture device.
// All methods are safe for concurrent use.
type Session struct {
	backend stt.Backend
	device  audio.CaptureDevice
	loaded  bool
	sink    monitor.Sink
	metrics *observe.Metrics
	tracer  trace.Tracer
	queue   Queue

	cfgMu sync.Mutex
	cfg   Config
	mode  command.Mode

	state  atomic.Int32
	closed atomic.Bool

	// lifeMu serialises activation and deactivation.
	lifeMu      sync.Mutex
	cur         *run
	activatedAt time.Time

	// reactMu admits one reactivation at a time.
	reactMu sync.Mutex
}

// New returns a Session for backend and device. The boolean reports whether
// the session is usable: it is false when backend or device is nil, in which
// case every activation is a logged no-op.
func New(backend stt.Backend, device audio.CaptureDevice, cfg Config, opts ...Option) (*Session, bool) {
	s := &Session{
		backend: backend,
		device:  device,
		loaded:  backend != nil && device != nil,
		sink:    monitor.Discard,
		tracer:  observe.Tracer(nil),
		cfg:     cfg.withDefaults(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if !s.loaded {
		slog.Error("session: transcription backend or capture device missing; voice input disabled",
			"backend", backend != nil, "device", device != nil)
	}
	return s, s.loaded
}

// Loaded reports whether the session was constructed with both a backend and
// a capture device.
func (s *Session) Loaded() bool { return s.loaded }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.sink.Report(monitor.State, st.String())
}

// Mode returns the current vocabulary mode.
func (s *Session) Mode() command.Mode {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.mode
}

// Config returns the stream settings used on the next activation.
func (s *Session) Config() Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg
}

// UpdateConfig replaces the stream settings. They take effect on the next
// activation; call Reactivate to apply them immediately.
func (s *Session) UpdateConfig(cfg Config) {
	s.cfgMu.Lock()
	s.cfg = cfg.withDefaults()
	s.cfgMu.Unlock()
}

// ActivatedAt returns the time of the most recent activation.
func (s *Session) ActivatedAt() time.Time {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.activatedAt
}

// ID returns the identifier of the current activation, or "" when inactive.
func (s *Session) ID() string {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.id
}

// Running reports whether the worker loops of the current activation are
// still running.
func (s *Session) Running() bool {
	s.lifeMu.Lock()
	r := s.cur
	s.lifeMu.Unlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Next pops the oldest queued transcript.
func (s *Session) Next() (string, bool) {
	return s.queue.Pop()
}

// Activate opens the transcription stream and the capture device and starts
// the worker loops. It is a no-op while a capture stream is open.
//
// A failed stream initialisation is logged but does not abort activation: the
// loops start, observe the uninitialised stream and exit at once.
func (s *Session) Activate() {
	s.activate(reasonActivate)
}

func (s *Session) activate(reason string) {
	if !s.loaded {
		slog.Warn("session: activation ignored, backend not loaded")
		s.setState(Inactive)
		return
	}
	if s.closed.Load() {
		slog.Debug("session: activation ignored, session closed")
		return
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cur != nil {
		s.cur.log.Info("session: capture already running")
		return
	}

	start := time.Now()
	cfg, mode := s.settings()
	sc := cfg.StreamConfig(mode)

	id := uuid.NewString()
	ctx, span := observe.StartActivation(context.Background(), s.tracer, observe.Activation{
		SessionID: id,
		Mode:      mode.String(),
		Model:     sc.Model,
		Reason:    reason,
	})
	defer span.End()
	log := observe.SessionLogger(ctx, id)

	s.activatedAt = start
	s.setState(Active)
	s.sink.Report(monitor.Connection, "on")
	s.sink.Report(monitor.Mode, mode.String())
	log.Info("session: starting transcription", "mode", mode, "reason", reason)

	if err := s.backend.InitializeStream(sc); err != nil {
		log.Error("session: initialize stream failed", "err", err, "backend_log", s.backend.Log())
		s.metrics.RecordBackendError(ctx, "init")
		span.RecordError(err)
	} else {
		log.Info("session: stream initialized",
			"language", sc.Language,
			"sample_rate", sc.SampleRate,
			"model", sc.Model,
			"max_alternatives", sc.MaxAlternatives,
			"interim_results", sc.InterimResults,
		)
	}

	ring := audio.NewRingBuffer(cfg.Channels, cfg.SampleRate, cfg.MaxBufferSeconds)
	stream, err := s.device.Open(cfg.Format(), func(samples []int16, _ int) {
		ring.Write(samples)
	})
	if err != nil {
		log.Error("session: open capture device failed", "err", err, "format", cfg.Format())
		s.metrics.RecordDeviceError(ctx, "open")
		span.RecordError(err)
		s.setState(Inactive)
		return
	}
	log.Info("session: capture device opened", "device", stream.DeviceName(), "format", cfg.Format())
	s.sink.Report(monitor.CurrentMicrophone, stream.DeviceName())

	if err := stream.Start(); err != nil {
		log.Error("session: start capture failed", "err", err)
		s.metrics.RecordDeviceError(ctx, "start")
		span.RecordError(err)
		if cerr := stream.Close(); cerr != nil {
			log.Warn("session: close capture stream", "err", cerr)
		}
		s.setState(Inactive)
		return
	}

	r := &run{
		id:     id,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ring:   ring,
		stream: stream,
		log:    log,
	}
	s.cur = r

	var wg sync.WaitGroup
	wg.Add(2)
	go s.send(r, cfg.QueryInterval, &wg)
	go s.receive(r, &wg)
	go func() {
		wg.Wait()
		close(r.done)
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}()

	s.metrics.ActiveSessions.Add(ctx, 1)
	s.metrics.RecordActivation(ctx, reason)
	s.metrics.ActivationDuration.Record(ctx, time.Since(start).Seconds())
}

func (s *Session) settings() (Config, command.Mode) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg, s.mode
}

// send is the sender loop.
func (s *Session) send(r *run, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	r.log.Info("session: sender started", "interval", interval)

	t := time.NewTicker(interval)
	defer t.Stop()

	for !r.stop.Load() {
		select {
		case <-r.quit:
			continue
		case <-t.C:
		}

		samples := r.ring.DrainAll()

		if !s.backend.IsInitialized() {
			s.notInitialized(r, "sending")
			return
		}
		if err := s.backend.SendAudio(samples); err != nil {
			r.log.Error("session: send audio failed", "err", err, "backend_log", s.backend.Log())
			s.metrics.RecordBackendError(context.Background(), "send")
			r.stop.Store(true)
			return
		}
		s.metrics.AudioSamples.Add(context.Background(), int64(len(samples)))
	}
}

// receive is the receiver loop.
func (s *Session) receive(r *run, wg *sync.WaitGroup) {
	defer wg.Done()
	r.log.Info("session: receiver started")

	for !r.stop.Load() {
		if !s.backend.IsInitialized() {
			s.notInitialized(r, "receiving")
			return
		}

		text, err := s.backend.ReceiveTranscript()
		if err != nil {
			if r.stop.Load() {
				r.log.Info("session: receive ended", "err", err)
			} else {
				r.log.Error("session: receive transcript failed", "err", err, "backend_log", s.backend.Log())
				s.metrics.RecordBackendError(context.Background(), "receive")
			}
			s.sink.Report(monitor.Connection, "off")
			r.stop.Store(true)
			return
		}
		if text == "" {
			continue
		}

		if r.stop.Load() {
			// The stream of a timed-out activation may already belong to the
			// next one.
			r.log.Info("session: dropping transcript received after stop", "transcript", text)
			return
		}

		r.log.Info("session: received transcript", "transcript", text)
		s.sink.Report(monitor.LastWord, text)
		s.queue.Push(text)
		s.metrics.Transcripts.Add(context.Background(), 1)
	}
}

// notInitialized ends a loop whose backend stream is gone. It is only an
// error when the session is not already stopping.
func (s *Session) notInitialized(r *run, loop string) {
	if r.stop.Load() {
		r.log.Info("session: stream not initialized", "loop", loop)
	} else {
		r.log.Error("session: stream not initialized", "loop", loop)
		s.metrics.RecordBackendError(context.Background(), "not_initialized")
	}
	r.stop.Store(true)
}

// Deactivate stops the worker loops, closes the backend stream and the
// capture device, and waits up to StopTimeout for both loops to exit. It is
// safe to call when already inactive.
func (s *Session) Deactivate() {
	if !s.loaded {
		return
	}
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.deactivateLocked()
}

func (s *Session) deactivateLocked() {
	r := s.cur
	s.cur = nil

	log := slog.Default()
	if r != nil {
		log = r.log
		r.stop.Store(true)
		close(r.quit)
	}
	s.sink.Report(monitor.Connection, "off")

	s.backend.CloseStream()

	if r != nil {
		log.Info("session: stopping capture")
		if err := r.stream.Abort(); err != nil {
			log.Error("session: abort capture failed", "err", err)
			s.metrics.RecordDeviceError(context.Background(), "abort")
		}
		if err := r.stream.Close(); err != nil {
			log.Error("session: close capture failed", "err", err)
			s.metrics.RecordDeviceError(context.Background(), "close")
		}

		timeout := s.Config().StopTimeout
		select {
		case <-r.done:
			log.Info("session: stopped")
		case <-time.After(timeout):
			log.Warn("session: worker loops did not stop in time", "timeout", timeout)
		}
	}

	if s.state.CompareAndSwap(int32(Active), int32(Inactive)) {
		s.sink.Report(monitor.State, Inactive.String())
	}
}

// Reactivate deactivates and re-activates the session on a new goroutine.
// Only one reactivation runs at a time; concurrent calls queue up. The state
// becomes Restarting unless a mode change is in progress. The returned
// channel is closed when this reactivation has finished.
func (s *Session) Reactivate() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.reactMu.Lock()
		defer s.reactMu.Unlock()

		if s.closed.Load() {
			return
		}
		for {
			cur := s.state.Load()
			if State(cur) == Changing {
				break
			}
			if s.state.CompareAndSwap(cur, int32(Restarting)) {
				s.sink.Report(monitor.State, Restarting.String())
				break
			}
		}
		s.Deactivate()
		s.activate(reasonRestart)
	}()
	return done
}

// SetMode switches between command and free mode. The new mode selects the
// backend model and is applied through Reactivate, during which the state is
// Changing. Setting the current mode is a no-op and the returned channel is
// already closed.
func (s *Session) SetMode(mode command.Mode) <-chan struct{} {
	s.cfgMu.Lock()
	if s.mode == mode {
		s.cfgMu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	s.mode = mode
	model := s.cfg.Model(mode)
	s.cfgMu.Unlock()

	s.setState(Changing)
	s.sink.Report(monitor.Connection, "off")
	s.sink.Report(monitor.Mode, mode.String())
	slog.Info("session: changing mode", "mode", mode, "model", model)
	return s.Reactivate()
}

// Close deactivates the session and waits for an in-flight reactivation.
// Later activations are ignored.
func (s *Session) Close() {
	s.closed.Store(true)
	s.reactMu.Lock()
	defer s.reactMu.Unlock()
	s.Deactivate()
}
