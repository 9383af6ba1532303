// Package voiceinput is the per-frame entry point of the voice pipeline.
//
// The browser's frame loop calls [Controller.Update] once per rendered frame.
// The controller keeps the session's vocabulary mode in step with keyboard
// focus, schedules periodic restarts of the transcription stream, and turns
// at most one queued transcript per frame into a [command.Action].
package voiceinput

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/gazevoice/internal/command"
	"github.com/MrWong99/gazevoice/internal/matcher"
	"github.com/MrWong99/gazevoice/internal/monitor"
	"github.com/MrWong99/gazevoice/internal/observe"
	"github.com/MrWong99/gazevoice/internal/publish"
	"github.com/MrWong99/gazevoice/internal/session"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// DefaultRunTimeLimit is the stream age after which a periodic restart is
// scheduled.
const DefaultRunTimeLimit = 50 * time.Second

// Session is the part of [session.Session] the controller drives.
type Session interface {
	Activate()
	Deactivate()
	Reactivate() <-chan struct{}
	SetMode(mode command.Mode) <-chan struct{}
	Next() (string, bool)
	State() session.State
	Mode() command.Mode
	ActivatedAt() time.Time
	ID() string
}

var _ Session = (*session.Session)(nil)

// Option is a functional option for [New].
type Option func(*Controller)

// WithMatcher sets the command matcher. Default: [matcher.New].
func WithMatcher(m *matcher.Matcher) Option {
	return func(c *Controller) {
		if m != nil {
			c.matcher = m
		}
	}
}

// WithSink sets the diagnostics sink. Default: [monitor.Discard].
func WithSink(s monitor.Sink) Option {
	return func(c *Controller) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithPublisher forwards every resolved action to p. Default: [publish.Nop].
func WithPublisher(p publish.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithPeriodicRestart reactivates the session whenever its stream is older
// than limit. A non-positive limit uses [DefaultRunTimeLimit].
func WithPeriodicRestart(limit time.Duration) Option {
	return func(c *Controller) {
		if limit <= 0 {
			limit = DefaultRunTimeLimit
		}
		c.restartAfter = limit
	}
}

// WithCompareScorers runs every built-in scorer on each transcript and
// reports what each would have chosen. Dispatch is unaffected.
func WithCompareScorers(enabled bool) Option {
	return func(c *Controller) { c.compare = enabled }
}

// WithTracerProvider sets the provider of resolve spans. Default: the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = observe.Tracer(tp) }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller turns queued transcripts into browser actions. Update must be
// called from a single goroutine; the pass-through methods may be called
// from any goroutine.
type Controller struct {
	sess      Session
	vocab     *command.Vocabulary
	matcher   *matcher.Matcher
	sink      monitor.Sink
	metrics   *observe.Metrics
	publisher publish.Publisher
	tracer    trace.Tracer
	now       func() time.Time

	restartAfter time.Duration
	compare      bool

	elapsed     time.Duration
	lastSeconds int64

	restart  <-chan struct{} // pending periodic restart
	lastMode command.Mode
}

// New returns a Controller driving sess with vocab. A nil vocab uses
// [command.Default].
func New(sess Session, vocab *command.Vocabulary, opts ...Option) *Controller {
	if vocab == nil {
		vocab = command.Default()
	}
	c := &Controller{
		sess:        sess,
		vocab:       vocab,
		matcher:     matcher.New(),
		sink:        monitor.Discard,
		publisher:   publish.Nop,
		tracer:      observe.Tracer(nil),
		now:         time.Now,
		lastSeconds: -1,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.lastMode = sess.Mode()
	c.reportCommands(c.lastMode)
	c.sink.Report(monitor.SentSeconds, "0")
	return c
}

// Update advances the controller by one frame. delta is the time since the
// previous frame and keyboardActive reports whether a text field has focus.
// It returns the action recognised in this frame, or [command.None].
func (c *Controller) Update(delta time.Duration, keyboardActive bool) command.Action {
	c.tick(delta)
	c.maybeRestart()
	c.syncMode(keyboardActive)

	text, ok := c.sess.Next()
	if !ok {
		return command.None
	}
	return c.handle(text)
}

func (c *Controller) tick(delta time.Duration) {
	if delta > 0 {
		c.elapsed += delta
	}
	if s := int64(c.elapsed / time.Second); s != c.lastSeconds {
		c.lastSeconds = s
		c.sink.Report(monitor.SentSeconds, fmt.Sprintf("%d", s))
	}
}

func (c *Controller) maybeRestart() {
	if c.restartAfter <= 0 {
		return
	}
	if c.restart != nil {
		select {
		case <-c.restart:
			c.restart = nil
		default:
			return
		}
	}
	if c.sess.State() != session.Active {
		return
	}
	at := c.sess.ActivatedAt()
	if at.IsZero() || c.now().Sub(at) <= c.restartAfter {
		return
	}
	slog.Info("voiceinput: scheduling periodic restart", "session_id", c.sess.ID(), "age", c.now().Sub(at))
	c.restart = c.sess.Reactivate()
}

func (c *Controller) syncMode(keyboardActive bool) {
	mode := c.sess.Mode()
	if c.sess.State() != session.Changing {
		switch {
		case keyboardActive && mode != command.ModeFree:
			mode = command.ModeFree
			c.sess.SetMode(mode)
		case !keyboardActive && mode != command.ModeCommand:
			mode = command.ModeCommand
			c.sess.SetMode(mode)
		}
	}
	if mode != c.lastMode {
		c.lastMode = mode
		c.reportCommands(mode)
	}
}

func (c *Controller) handle(text string) command.Action {
	mode := c.sess.Mode()
	entries := c.vocab.EntriesUsableIn(mode)
	id := c.sess.ID()

	ctx, span := observe.StartResolve(context.Background(), c.tracer, id, mode.String(), len(stt.SplitAlternatives(text)))
	start := time.Now()
	action := c.matcher.ResolveAlternatives(text, entries, mode)
	c.metrics.MatchDuration.Record(ctx, time.Since(start).Seconds())
	defer observe.EndResolve(span, action.Command.String())

	log := observe.SessionLogger(ctx, id)
	log.Info("voiceinput: resolved transcript", "transcript", text, "action", action, "mode", mode)

	if c.compare {
		c.reportComparison(text, entries)
	}

	c.sink.Report(monitor.CurrentAction, c.describe(action))
	c.metrics.RecordAction(ctx, action.Command.String(), mode.String())

	if action.Command != command.NoAction {
		msg := publish.NewMessage(action, mode, id, c.now())
		if err := c.publisher.Publish(ctx, msg); err != nil {
			log.Warn("voiceinput: publish action failed", "action", action, "err", err)
		}
	}
	return action
}

// reportComparison reports, for each scorer, the command it would resolve
// the highest-ranked alternative to.
func (c *Controller) reportComparison(text string, entries []command.Entry) {
	alts := stt.SplitAlternatives(text)
	if len(alts) == 0 {
		return
	}
	tokens := matcher.Tokenize(alts[0])
	for _, cmp := range c.matcher.Compare(tokens, entries) {
		name := command.NoAction.String()
		if cmp.Result.Found {
			name = cmp.Result.Entry.Canonical()
		}
		c.sink.Report(monitor.ActionCategory(cmp.Scorer), name)
		slog.Debug("voiceinput: scorer comparison",
			"scorer", cmp.Scorer,
			"command", name,
			"distance", cmp.Result.Distance,
		)
	}
}

// describe returns the canonical phrase of a's command, or its ID name when
// the command has no vocabulary entry.
func (c *Controller) describe(a command.Action) string {
	if e, ok := c.vocab.Lookup(a.Command); ok {
		return e.Canonical()
	}
	return a.Command.String()
}

func (c *Controller) reportCommands(mode command.Mode) {
	c.sink.Report(monitor.AvailableCommands, strings.Join(c.vocab.Names(mode), ", "))
	c.sink.Report(monitor.Mode, mode.String())
}

// Activate starts voice input.
func (c *Controller) Activate() { c.sess.Activate() }

// Deactivate stops voice input.
func (c *Controller) Deactivate() { c.sess.Deactivate() }

// SetMode switches the vocabulary mode explicitly. Update overrides it on
// the next frame if keyboard focus disagrees.
func (c *Controller) SetMode(mode command.Mode) <-chan struct{} {
	return c.sess.SetMode(mode)
}

// Active reports whether voice input is switched on.
func (c *Controller) Active() bool {
	return c.sess.State() != session.Inactive
}

var _ monitor.Toggler = (*Controller)(nil)
