package observe_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/testimony-project/testimony/internal/observe"
)

// withRecorder installs an in-memory span recorder as the global tracer
// provider for the duration of the test. Not parallel-safe; callers must not
// call t.Parallel.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestStartSpanRecordsThroughGlobalProvider(t *testing.T) {
	recorder := withRecorder(t)

	_, span := observe.StartSpan(context.Background(), "clean.pass")
	if !span.SpanContext().IsValid() {
		t.Fatal("span context is not valid")
	}
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Name() != "clean.pass" {
		t.Fatalf("ended spans = %v, want one named clean.pass", ended)
	}
}

func TestLoggerAttachesSpanIdentifiers(t *testing.T) {
	withRecorder(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := observe.StartSpan(context.Background(), "clean.pass")
	defer span.End()

	observe.Logger(ctx).Info("pass complete")

	out := buf.String()
	if !strings.Contains(out, "trace_id="+span.SpanContext().TraceID().String()) {
		t.Errorf("trace_id missing from log line: %s", out)
	}
	if !strings.Contains(out, "span_id="+span.SpanContext().SpanID().String()) {
		t.Errorf("span_id missing from log line: %s", out)
	}
}

func TestLoggerWithoutSpanIsDefault(t *testing.T) {
	t.Parallel()

	if observe.Logger(context.Background()) != slog.Default() {
		t.Error("bare context should yield the default logger unchanged")
	}
}
