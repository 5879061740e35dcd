// Package telemetry exposes recording and recognition metrics through
// OpenTelemetry with a Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "go.aimuz.me/vhisper"

// Provider owns the meter provider and its scrape handler.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Handler       http.Handler
}

// Setup builds a meter provider backed by a private Prometheus registry.
func Setup(ctx context.Context, serviceName, version string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return &Provider{
		MeterProvider: mp,
		Handler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.MeterProvider.Shutdown(ctx)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *Provider) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	slog.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics records pipeline activity. A nil *Metrics discards everything.
type Metrics struct {
	recordings metric.Int64Counter
	errors     metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetrics registers the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	recordings, err := meter.Int64Counter("vhisper.recordings",
		metric.WithDescription("Recordings started."))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("vhisper.recognition.errors",
		metric.WithDescription("Failed processing runs by kind."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("vhisper.recognition.duration",
		metric.WithDescription("Time from stop to delivered text."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{recordings: recordings, errors: errs, duration: duration}, nil
}

// RecordingStarted counts one recording.
func (m *Metrics) RecordingStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.recordings.Add(ctx, 1)
}

// Failed counts one failed run of the given kind.
func (m *Metrics) Failed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Processed records the duration of a successful run.
func (m *Metrics) Processed(ctx context.Context, provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}
