package observe

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// routes are the paths served by the application. Anything else is recorded
// as "other" to bound the cardinality of the path attribute.
var routes = map[string]slog.Level{
	"/healthz":    slog.LevelDebug,
	"/readyz":     slog.LevelDebug,
	"/metrics":    slog.LevelDebug,
	"/monitor":    slog.LevelInfo,
	"/monitor/ws": slog.LevelInfo,
}

func route(path string) string {
	if _, ok := routes[path]; ok {
		return path
	}
	return "other"
}

// logLevel is Debug for probes and scrapes so that they do not drown out the
// voice pipeline logs.
func logLevel(path string) slog.Level {
	if l, ok := routes[path]; ok {
		return l
	}
	return slog.LevelInfo
}

// statusRecorder captures the status code written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer to [http.ResponseController].
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the monitor websocket upgrade pass through the middleware. A
// hijacked request is recorded as 101 Switching Protocols.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("observe: response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// MiddlewareOption configures [Middleware].
type MiddlewareOption func(*middleware)

type middleware struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// WithTracerProvider sets the provider of request spans. Default: the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) MiddlewareOption {
	return func(mw *middleware) { mw.tracer = Tracer(tp) }
}

// WithLogger sets the logger of request completion lines. Default:
// [slog.Default] at request time.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(mw *middleware) { mw.logger = l }
}

// Middleware runs each request inside a server span continuing any W3C
// trace context of the caller, sets X-Correlation-ID to the trace ID,
// records [Metrics.HTTPRequestDuration] per route and logs completion.
func Middleware(m *Metrics, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	mw := &middleware{tracer: Tracer(nil)}
	for _, o := range opts {
		o(mw)
	}
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := route(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := mw.tracer.Start(ctx, "HTTP "+r.Method+" "+path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", path),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.statusCode))

			logger := mw.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.LogAttrs(ctx, logLevel(r.URL.Path), "observe: request completed",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Duration("duration", duration),
			)
		})
	}
}
