// Package observe provides application-wide observability primitives for
// gazevoice: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gazevoice metrics.
const meterName = "github.com/MrWong99/gazevoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// MatchDuration tracks how long resolving one transcript takes.
	MatchDuration metric.Float64Histogram

	// ActivationDuration tracks how long a session activation takes, from
	// stream initialisation until both worker loops are running.
	ActivationDuration metric.Float64Histogram

	// --- Counters ---

	// AudioSamples counts samples uploaded to the transcription backend.
	AudioSamples metric.Int64Counter

	// Transcripts counts non-empty transcripts received from the backend.
	Transcripts metric.Int64Counter

	// Actions counts resolved voice actions. Use with attributes:
	//   attribute.String("command", ...), attribute.String("mode", ...)
	Actions metric.Int64Counter

	// Activations counts session (re)activations. Use with attribute:
	//   attribute.String("reason", ...)
	Activations metric.Int64Counter

	// Publishes counts actions handed to the action publisher. Use with
	// attribute: attribute.String("status", ...)
	Publishes metric.Int64Counter

	// ProviderRequests counts provider calls made through the resilience
	// layer. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts transcription backend failures. Use with attribute:
	//   attribute.String("op", ...)
	BackendErrors metric.Int64Counter

	// DeviceErrors counts audio capture device failures. Use with attribute:
	//   attribute.String("op", ...)
	DeviceErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of sessions with running worker loops.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Matching
// runs in microseconds while activation involves a network handshake.
var latencyBuckets = []float64{
	0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MatchDuration, err = m.Float64Histogram("gazevoice.match.duration",
		metric.WithDescription("Latency of resolving one transcript into an action."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActivationDuration, err = m.Float64Histogram("gazevoice.session.activation.duration",
		metric.WithDescription("Latency of activating a transcription session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AudioSamples, err = m.Int64Counter("gazevoice.audio.samples",
		metric.WithDescription("Total audio samples uploaded to the transcription backend."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("gazevoice.transcripts",
		metric.WithDescription("Total non-empty transcripts received."),
	); err != nil {
		return nil, err
	}
	if met.Actions, err = m.Int64Counter("gazevoice.actions",
		metric.WithDescription("Total resolved voice actions by command and mode."),
	); err != nil {
		return nil, err
	}
	if met.Activations, err = m.Int64Counter("gazevoice.session.activations",
		metric.WithDescription("Total session activations by reason."),
	); err != nil {
		return nil, err
	}
	if met.Publishes, err = m.Int64Counter("gazevoice.publish.actions",
		metric.WithDescription("Total actions published by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("gazevoice.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.BackendErrors, err = m.Int64Counter("gazevoice.backend.errors",
		metric.WithDescription("Total transcription backend errors by operation."),
	); err != nil {
		return nil, err
	}
	if met.DeviceErrors, err = m.Int64Counter("gazevoice.device.errors",
		metric.WithDescription("Total capture device errors by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("gazevoice.active_sessions",
		metric.WithDescription("Number of sessions with running worker loops."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("gazevoice.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAction records one resolved action.
func (m *Metrics) RecordAction(ctx context.Context, command, mode string) {
	m.Actions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("mode", mode),
		),
	)
}

// RecordActivation records one session activation.
func (m *Metrics) RecordActivation(ctx context.Context, reason string) {
	m.Activations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBackendError records one transcription backend failure.
func (m *Metrics) RecordBackendError(ctx context.Context, op string) {
	m.BackendErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordDeviceError records one capture device failure.
func (m *Metrics) RecordDeviceError(ctx context.Context, op string) {
	m.DeviceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordPublish records one publish attempt.
func (m *Metrics) RecordPublish(ctx context.Context, status string) {
	m.Publishes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}
