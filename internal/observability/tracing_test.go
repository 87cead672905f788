package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
)

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServiceName != "coderag" {
		t.Fatalf("expected service name 'coderag', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{
		ServiceName: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	// Should be no-op, shutdown should succeed
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestStartAgentSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartAgentSpan(ctx, "conv-1")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordAgentTurn(t *testing.T) {
	ctx := context.Background()
	_, span := StartAgentSpan(ctx, "conv-1")

	RecordAgentTurn(span, 3, true)
	span.End()
}

func TestRecordAgentTurn_Exhausted(t *testing.T) {
	ctx := context.Background()
	_, span := StartAgentSpan(ctx, "conv-1")

	RecordAgentTurn(span, 10, false)
	span.End()
}

func TestStartLLMSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartLLMSpan(ctx, "openai", "gpt-4")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordLLMMetrics(t *testing.T) {
	ctx := context.Background()
	_, span := StartLLMSpan(ctx, "openai", "gpt-4")

	// Should not panic
	RecordLLMMetrics(span, 100, 200, 500*time.Millisecond)
	span.End()
}

func TestStartToolSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartToolSpan(ctx, "searchCode", "repo-1")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordToolResult_Success(t *testing.T) {
	ctx := context.Background()
	_, span := StartToolSpan(ctx, "searchCode", "repo-1")

	RecordToolResult(span, false)
	span.End()
}

func TestRecordToolResult_Error(t *testing.T) {
	ctx := context.Background()
	_, span := StartToolSpan(ctx, "readFile", "repo-1")

	RecordToolResult(span, true)
	span.End()
}

func TestStartIngestionSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartIngestionSpan(ctx, "repo-1", 42)
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordIngestionResult_Success(t *testing.T) {
	ctx := context.Background()
	_, span := StartIngestionSpan(ctx, "repo-1", 42)

	RecordIngestionResult(span, 128, nil)
	span.End()
}

func TestRecordIngestionResult_Error(t *testing.T) {
	ctx := context.Background()
	_, span := StartIngestionSpan(ctx, "repo-1", 42)

	RecordIngestionResult(span, 0, errors.New("ingestion failed"))
	span.End()
}

func TestStartRetrievalSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartRetrievalSpan(ctx, "repo-1", "where is the login flow?")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordRetrievalResult(t *testing.T) {
	ctx := context.Background()
	_, span := StartRetrievalSpan(ctx, "repo-1", "auth handler")

	RecordRetrievalResult(span, 8)
	span.End()
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	_, span := StartAgentSpan(ctx, "conv-1")

	// Should not panic with nil
	RecordError(span, nil)

	// Should record error
	RecordError(span, errors.New("test error"))
	span.End()
}

func TestSpanKindConstants(t *testing.T) {
	if SpanKindAgent == "" {
		t.Fatal("SpanKindAgent should not be empty")
	}
	if SpanKindLLM == "" {
		t.Fatal("SpanKindLLM should not be empty")
	}
	if SpanKindTool == "" {
		t.Fatal("SpanKindTool should not be empty")
	}
	if SpanKindIngestion == "" {
		t.Fatal("SpanKindIngestion should not be empty")
	}
	if SpanKindRetrieval == "" {
		t.Fatal("SpanKindRetrieval should not be empty")
	}
}

func TestTracerName(t *testing.T) {
	if TracerName != "github.com/sourcelens/coderag" {
		t.Fatalf("unexpected tracer name: %s", TracerName)
	}
}

// Test that spans can be nested
func TestNestedSpans(t *testing.T) {
	ctx := context.Background()

	// Start agent span
	ctx, agentSpan := StartAgentSpan(ctx, "conv-1")

	// Start LLM span nested inside agent
	ctx, llmSpan := StartLLMSpan(ctx, "openai", "gpt-4")
	RecordLLMMetrics(llmSpan, 50, 100, 200*time.Millisecond)
	llmSpan.End()

	// Start tool span nested inside agent
	_, toolSpan := StartToolSpan(ctx, "searchCode", "repo-1")
	RecordToolResult(toolSpan, false)
	toolSpan.End()

	RecordAgentTurn(agentSpan, 2, true)
	agentSpan.End()
}

// Test TracerProvider methods
func TestTracerProvider_Shutdown_NilProvider(t *testing.T) {
	tp := &TracerProvider{}
	err := tp.Shutdown(context.Background())
	if err != nil {
		t.Fatalf("expected nil error for nil provider, got: %v", err)
	}
}

// Verify codes package is correctly imported
func TestCodesPackage(t *testing.T) {
	_ = codes.Error
	_ = codes.Ok
}
