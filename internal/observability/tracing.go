package observability

import "context"

// Span is the minimal tracing span surface pipeline phases use to bracket
// fan-out/join boundaries. The only implementation is the no-op tracer
// below.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
}

// Tracer starts spans around pipeline phases.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

type noopSpan struct{}

func (noopSpan) End()                                   {}
func (noopSpan) SetAttribute(string, interface{}) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

// NewNoopTracer returns a Tracer that does nothing. No OpenTelemetry-backed
// tracer exists in this module, and the server binary wires no tracer.
func NewNoopTracer() Tracer { return noopTracer{} }
