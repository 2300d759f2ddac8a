// Package observe provides application-wide observability primitives for the
// qirat reading service: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all qirat metrics.
const meterName = "github.com/qirat-ai/qirat"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CheckDuration tracks reading classification latency.
	CheckDuration metric.Float64Histogram

	// TranscribeDuration tracks speech-to-text transcription latency.
	TranscribeDuration metric.Float64Histogram

	// --- Counters ---

	// ReadingChecks counts classified readings. Use with attributes:
	//   attribute.String("language", ...), attribute.String("feedback", ...)
	ReadingChecks metric.Int64Counter

	// SessionsStarted counts created sessions. Use with attribute:
	//   attribute.String("language", ...)
	SessionsStarted metric.Int64Counter

	// SessionsCompleted counts sessions whose last sentence was read.
	SessionsCompleted metric.Int64Counter

	// --- Error counters ---

	// SpeechErrors counts speech provider failures. Use with attribute:
	//   attribute.String("provider", ...)
	SpeechErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live reading sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Checks are
// sub-millisecond while transcription can take seconds, so the range is wide.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CheckDuration, err = m.Float64Histogram("qirat.check.duration",
		metric.WithDescription("Latency of reading classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("qirat.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ReadingChecks, err = m.Int64Counter("qirat.reading.checks",
		metric.WithDescription("Total classified readings by language and feedback type."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("qirat.sessions.started",
		metric.WithDescription("Total reading sessions started by language."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("qirat.sessions.completed",
		metric.WithDescription("Total reading sessions read to completion."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SpeechErrors, err = m.Int64Counter("qirat.speech.errors",
		metric.WithDescription("Total speech provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("qirat.active_sessions",
		metric.WithDescription("Number of live reading sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("qirat.http.request.duration",
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

// RecordReadingCheck is a convenience method that records a classified
// reading with the standard attribute set.
func (m *Metrics) RecordReadingCheck(ctx context.Context, language, feedback string) {
	m.ReadingChecks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("feedback", feedback),
		),
	)
}

// RecordSessionStarted is a convenience method that records a session start.
func (m *Metrics) RecordSessionStarted(ctx context.Context, language string) {
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordSpeechError is a convenience method that records a speech provider
// failure.
func (m *Metrics) RecordSpeechError(ctx context.Context, provider string) {
	m.SpeechErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
