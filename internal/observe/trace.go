package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/gazevoice"

// Span names of the voice pipeline.
const (
	SpanActivate = "session.activate"
	SpanResolve  = "voiceinput.resolve"
)

// Span attribute keys. session_id is also the log attribute of
// [SessionLogger], so spans and log lines of one activation share a key.
const (
	AttrSessionID    = attribute.Key("session_id")
	AttrMode         = attribute.Key("mode")
	AttrModel        = attribute.Key("model")
	AttrReason       = attribute.Key("reason")
	AttrAlternatives = attribute.Key("alternatives")
	AttrCommand      = attribute.Key("command")
)

// Tracer returns the gazevoice tracer of tp, or of the global provider when
// tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// Activation describes one start of a transcription stream.
type Activation struct {
	SessionID string
	Mode      string
	Model     string
	Reason    string // "activate" or "restart"
}

// StartActivation starts the span covering stream initialisation and device
// setup of a. The caller ends it.
func StartActivation(ctx context.Context, tr trace.Tracer, a Activation) (context.Context, trace.Span) {
	return tr.Start(ctx, SpanActivate,
		trace.WithAttributes(
			AttrSessionID.String(a.SessionID),
			AttrMode.String(a.Mode),
			AttrModel.String(a.Model),
			AttrReason.String(a.Reason),
		),
	)
}

// StartResolve starts the span covering matching one transcript with the
// given number of alternatives. End it with [EndResolve].
func StartResolve(ctx context.Context, tr trace.Tracer, sessionID, mode string, alternatives int) (context.Context, trace.Span) {
	return tr.Start(ctx, SpanResolve,
		trace.WithAttributes(
			AttrSessionID.String(sessionID),
			AttrMode.String(mode),
			AttrAlternatives.Int(alternatives),
		),
	)
}

// EndResolve records the resolved command on span and ends it.
func EndResolve(span trace.Span, command string) {
	span.SetAttributes(AttrCommand.String(command))
	span.End()
}

// CorrelationID returns the trace ID of the span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// SessionLogger returns the default logger with session_id set to id and,
// when ctx carries a span, trace_id set to its trace ID. Empty values are
// omitted.
func SessionLogger(ctx context.Context, id string) *slog.Logger {
	l := slog.Default()
	if id != "" {
		l = l.With(slog.String(string(AttrSessionID), id))
	}
	if cid := CorrelationID(ctx); cid != "" {
		l = l.With(slog.String("trace_id", cid))
	}
	return l
}
