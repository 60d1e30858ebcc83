package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-conclave/internal/ports"
)

// tracedGenerator wraps every generation call in an OpenTelemetry span.
type tracedGenerator struct {
	next   CoreGenerator
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that records each request as a span
// under the given service name, with model, prompt size, and token usage
// attributes.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)

	return func(next CoreGenerator) CoreGenerator {
		return &tracedGenerator{
			next:   next,
			tracer: tracer,
		}
	}
}

// DoGenerate executes the request within a trace span.
func (t *tracedGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
			attribute.Bool("llm.has_system_prompt", req.System != ""),
		))
	defer span.End()

	result, err := t.next.DoGenerate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", result.TokensIn),
		attribute.Int("llm.tokens.output", result.TokensOut),
	)
	return result, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedGenerator) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedGenerator) SetModel(m string) { t.next.SetModel(m) }
