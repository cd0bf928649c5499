package trace

import "context"

type ctxKey struct{}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

type spanKey struct{}

// ParentID returns the span ID recorded by WithSpan, or 0.
func ParentID(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(spanKey{}).(uint64)
	return id
}

// WithSpan records s as the parent of spans begun under ctx.
func WithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, s.ID())
}
