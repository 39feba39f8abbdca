package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"dcmnode/dcmprune/pkg/config"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(exporter, nil, "dcmprune-test", "test")
	if err != nil {
		t.Fatalf("NewWithExporter() failed: %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func flushed(t *testing.T, tracer *Tracer, exporter *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() failed: %v", err)
	}
	return exporter.GetSpans()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false},
		},
		{
			name: "enabled otlp",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Exporter:    "otlp",
				Endpoint:    "localhost:4317",
				ServiceName: "dcmprune",
				OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
			},
			wantEnabled: true,
		},
		{
			name: "unsupported exporter",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  SamplerAlways,
				Exporter: "zipkin",
				Endpoint: "localhost:9411",
			},
			wantErr: true,
		},
		{
			name: "bad sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Exporter: "otlp",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// The collector is not running; shutdown may report an export
			// failure but must return.
			_ = tracer.Shutdown(ctx)
		})
	}
}

func TestNoop(t *testing.T) {
	tracer := Noop()
	ctx, span := tracer.Start(context.Background(), "retention.run")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("noop tracer produced a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestTracer_RecordsNestedSpans(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, root := tracer.Start(context.Background(), "retention.run")
	SetRunAttributes(root, "run-1", "/srv/dicom", "10%", false)
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a recording span")
	}

	_, child := tracer.Start(ctx, "retention.survey")
	child.End()

	SetResultAttributes(root, "satisfied", 3, 4096, 1)
	root.End()

	spans := flushed(t, tracer, exporter)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	run, survey := byName["retention.run"], byName["retention.survey"]
	if survey.Parent.SpanID() != run.SpanContext.SpanID() {
		t.Error("survey span is not a child of the run span")
	}

	attrs := map[string]string{}
	for _, kv := range run.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		AttrRunID:          "run-1",
		AttrRoot:           "/srv/dicom",
		AttrOutcome:        "satisfied",
		AttrEvicted:        "3",
		AttrBytesReclaimed: "4096",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestSetError(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "retention.commit")
	SetError(span, nil)
	SetError(span, errors.New("index locked"))
	span.End()

	spans := flushed(t, tracer, exporter)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(spans[0].Events))
	}
}

func TestSetStatus(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("boom"))
	failed.End()

	got := map[string]codes.Code{}
	for _, s := range flushed(t, tracer, exporter) {
		got[s.Name] = s.Status.Code
	}
	if got["ok"] != codes.Ok || got["failed"] != codes.Error {
		t.Errorf("unexpected statuses: %v", got)
	}
}

func TestNeverSampler(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	sampler, err := createSampler(SamplerNever, 0)
	if err != nil {
		t.Fatal(err)
	}
	tracer, err := NewWithExporter(exporter, sampler, "dcmprune-test", "test")
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "retention.run")
	if span.SpanContext().IsSampled() {
		t.Error("span sampled with never sampler")
	}
	span.End()

	if spans := flushed(t, tracer, exporter); len(spans) != 0 {
		t.Errorf("expected no exported spans, got %d", len(spans))
	}
}

var _ trace.Tracer = (*Tracer)(nil)
