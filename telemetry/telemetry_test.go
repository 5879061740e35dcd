package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordingStarted(ctx)
	m.RecordingStarted(ctx)
	m.Failed(ctx, "network")
	m.Processed(ctx, "Qwen", 1500*time.Millisecond)

	data := collect(t, reader)

	sum, ok := data["vhisper.recordings"].(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("recordings = %+v", data["vhisper.recordings"])
	}

	errs, ok := data["vhisper.recognition.errors"].(metricdata.Sum[int64])
	if !ok || len(errs.DataPoints) != 1 {
		t.Fatalf("errors = %+v", data["vhisper.recognition.errors"])
	}
	if v, _ := errs.DataPoints[0].Attributes.Value("kind"); v.AsString() != "network" {
		t.Errorf("kind = %q, want network", v.AsString())
	}

	hist, ok := data["vhisper.recognition.duration"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("duration = %+v", data["vhisper.recognition.duration"])
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordingStarted(ctx)
	m.Failed(ctx, "api")
	m.Processed(ctx, "FunASR", time.Second)
}

func TestSetupHandler(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, "vhisper", "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Shutdown(ctx)

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordingStarted(ctx)

	srv := httptest.NewServer(p.Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "vhisper_recordings") {
		t.Errorf("scrape output missing counter:\n%s", body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	p, err := Setup(context.Background(), "vhisper", "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
