package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	searchCounter  otelmetric.Int64Counter
	searchDuration otelmetric.Float64Histogram
	searchResults  otelmetric.Int64Histogram
}

type options struct {
	spanProcessors []sdktrace.SpanProcessor
	skipExporter   bool
}

type Option func(*options)

// WithSpanProcessor registers an extra span processor, e.g. a tracetest.SpanRecorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithoutPrometheus skips the prometheus reader so several instances can coexist in tests.
func WithoutPrometheus() Option {
	return func(o *options) { o.skipExporter = true }
}

func New(serviceName string, opts ...Option) *Observability {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	var readerOpts []metric.Option
	readerOpts = append(readerOpts, metric.WithResource(res))
	if !o.skipExporter {
		exporter, err := prometheus.New()
		if err != nil {
			log.Printf("Failed to create Prometheus exporter: %v", err)
		} else {
			readerOpts = append(readerOpts, metric.WithReader(exporter))
		}
	}
	provider := metric.NewMeterProvider(readerOpts...)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	if !o.skipExporter {
		otel.SetMeterProvider(provider)
		otel.SetTracerProvider(tp)
	}

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	searchCounter, _ := meter.Int64Counter(
		"search.runs",
		otelmetric.WithDescription("Pipeline runs by final phase"),
	)
	searchDuration, _ := meter.Float64Histogram(
		"search.duration",
		otelmetric.WithDescription("Pipeline run duration"),
		otelmetric.WithUnit("ms"),
	)
	searchResults, _ := meter.Int64Histogram(
		"search.results",
		otelmetric.WithDescription("Ranked results returned per run"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          meter,
		tracer:         tp.Tracer(serviceName),
		jobCounter:     jobCounter,
		jobDuration:    jobDuration,
		searchCounter:  searchCounter,
		searchDuration: searchDuration,
		searchResults:  searchResults,
	}
}

// StartSpan is safe on a nil receiver and then returns a no-op span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordSearch records one pipeline run.
func (o *Observability) RecordSearch(ctx context.Context, phase string, results int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("phase", phase))
	if o.searchCounter != nil {
		o.searchCounter.Add(ctx, 1, attrs)
	}
	if o.searchDuration != nil {
		o.searchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.searchResults != nil {
		o.searchResults.Record(ctx, int64(results), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
