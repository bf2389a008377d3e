// Package tracing wraps OpenTelemetry span creation around the
// orchestrator stages and LLM calls. The exporter is stdout: this pipeline
// runs as a single worker process with no collector to ship OTLP to, so
// spans land in the process's own log stream.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Provider owns the process-wide TracerProvider and a named Tracer for the
// discovery pipeline's own spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// New builds a Provider. When cfg.Enabled is false, it installs a no-op
// tracer so callers never need to branch on whether tracing is on.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: otel.Tracer(cfg.ServiceName)}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Shutdown flushes and stops the tracer provider. A no-op Provider (tracing
// disabled) has nothing to flush.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartStage opens a span for one orchestrator stage (ingest, planning,
// item execution, post-process), tagged with job_id and project_id.
func (p *Provider) StartStage(ctx context.Context, stage, jobID, projectID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "orchestrator."+stage,
		trace.WithAttributes(
			attribute.String("job_id", jobID),
			attribute.String("project_id", projectID),
		))
}

// StartLLMCall opens a span around one LLM action invocation.
func (p *Provider) StartLLMCall(ctx context.Context, action, filePath string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "llmaction."+action,
		trace.WithAttributes(attribute.String("file_path", filePath)))
}
