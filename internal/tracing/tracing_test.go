package tracing

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false}, testLogger())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a valid span context")
	}
}

func TestInitEnabledExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		ServiceName: "orbits-test",
		SampleRatio: 1,
		Writer:      &buf,
	}, testLogger())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "sim.apply")
	if !span.SpanContext().IsValid() {
		t.Error("enabled tracing produced an invalid span context")
	}
	span.End()

	// Shutdown flushes the batcher.
	ShutdownWithTimeout(context.Background(), shutdown, testLogger())
	if !strings.Contains(buf.String(), "sim.apply") {
		t.Errorf("exported spans missing sim.apply: %q", buf.String())
	}

	// Leave a noop provider behind for other tests.
	if _, err := Init(context.Background(), Config{}, testLogger()); err != nil {
		t.Fatalf("reset Init failed: %v", err)
	}
}
