// Package observability provides OpenTelemetry tracing and metrics for
// the code-repository RAG/agent service.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the service's tracer.
	TracerName = "github.com/sourcelens/coderag"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "coderag")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "coderag",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	// Create OTLP exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// Create resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create trace provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// SpanKind constants for the service's operations.
const (
	SpanKindAgent     = "agent"
	SpanKindLLM       = "llm"
	SpanKindTool      = "tool"
	SpanKindIngestion = "ingestion"
	SpanKindRetrieval = "retrieval"
)

// StartAgentSpan starts a span for one agent loop turn (spec §4.7: C7).
func StartAgentSpan(ctx context.Context, conversationID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "agent.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("coderag.span.kind", SpanKindAgent),
			attribute.String("coderag.conversation.id", conversationID),
		),
	)
	return ctx, span
}

// RecordAgentTurn records the outcome of an agent loop turn on a span.
func RecordAgentTurn(span trace.Span, iterations int, isComplete bool) {
	span.SetAttributes(
		attribute.Int("coderag.agent.iterations", iterations),
		attribute.Bool("coderag.agent.complete", isComplete),
	)
	if !isComplete {
		span.SetStatus(codes.Error, "iteration budget exhausted")
	}
}

// StartLLMSpan starts a span for an LLM call (spec §4.1: C1).
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "llm.chat",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("coderag.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
	return ctx, span
}

// RecordLLMMetrics records LLM call metrics on a span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartToolSpan starts a span for a single tool execution (spec §4.6: C6).
func StartToolSpan(ctx context.Context, toolName, repositoryID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("tool.%s", toolName),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("coderag.span.kind", SpanKindTool),
			attribute.String("tool.name", toolName),
			attribute.String("coderag.repository.id", repositoryID),
		),
	)
	return ctx, span
}

// RecordToolResult records whether a tool execution returned an
// "Error:"-prefixed observation (spec §7: ToolError).
func RecordToolResult(span trace.Span, isError bool) {
	span.SetAttributes(attribute.Bool("tool.error", isError))
	if isError {
		span.SetStatus(codes.Error, "tool returned an error observation")
	}
}

// StartIngestionSpan starts a span for a repository ingestion run
// (spec §4.3: C3).
func StartIngestionSpan(ctx context.Context, repositoryID string, fileCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "ingestion.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("coderag.span.kind", SpanKindIngestion),
			attribute.String("coderag.repository.id", repositoryID),
			attribute.Int("ingestion.file_count", fileCount),
		),
	)
	return ctx, span
}

// RecordIngestionResult records chunking/embedding output on a span.
func RecordIngestionResult(span trace.Span, chunkCount int, err error) {
	span.SetAttributes(attribute.Int("ingestion.chunk_count", chunkCount))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}

// StartRetrievalSpan starts a span for a hybridSearch/search call
// (spec §4.5: C5).
func StartRetrievalSpan(ctx context.Context, repositoryID, query string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "retrieval.hybridSearch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("coderag.span.kind", SpanKindRetrieval),
			attribute.String("coderag.repository.id", repositoryID),
			attribute.Int("retrieval.query_len", len(query)),
		),
	)
	return ctx, span
}

// RecordRetrievalResult records the number of merged hits on a span.
func RecordRetrievalResult(span trace.Span, resultCount int) {
	span.SetAttributes(attribute.Int("retrieval.result_count", resultCount))
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
