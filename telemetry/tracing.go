// OpenTelemetry tracing support for distributed gate observability.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps OpenTelemetry tracing with gate-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include request metadata in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// SetDebug enables or disables debug mode (metadata in spans).
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Check Spans ---

// CheckSpanOptions contains options for admission check spans.
type CheckSpanOptions struct {
	Provider          string
	Agent             string
	Model             string
	Allowed           bool
	Queued            bool
	Reason            string
	RemainingRequests int
	RemainingTokens   int
	Metadata          map[string]interface{} // Only included if debug=true
}

// StartCheckSpan starts a span for an admission check.
func (t *Tracer) StartCheckSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "gate.check", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("gate.provider", provider))
	return ctx, span
}

// EndCheckSpan ends an admission check span with attributes.
func (t *Tracer) EndCheckSpan(span trace.Span, opts CheckSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("gate.provider", opts.Provider),
		attribute.Bool("gate.allowed", opts.Allowed),
		attribute.Bool("gate.queued", opts.Queued),
	}

	if opts.Agent != "" {
		attrs = append(attrs, attribute.String("gate.agent", opts.Agent))
	}
	if opts.Model != "" {
		attrs = append(attrs, attribute.String("gate.model", opts.Model))
	}
	if opts.Reason != "" {
		attrs = append(attrs, attribute.String("gate.reason", truncate(opts.Reason, 500)))
	}
	if opts.Allowed {
		attrs = append(attrs,
			attribute.Int("gate.remaining.requests", opts.RemainingRequests),
			attribute.Int("gate.remaining.tokens", opts.RemainingTokens),
		)
	}

	if t.debug {
		for k, v := range opts.Metadata {
			attrs = append(attrs, attribute.String("gate.meta."+k, truncateAny(v, 500)))
		}
	}

	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Record Spans ---

// RecordSpanOptions contains options for usage record spans.
type RecordSpanOptions struct {
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
	CostUSD   float64
	Success   bool
}

// StartRecordSpan starts a span for a usage record.
func (t *Tracer) StartRecordSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "gate.record", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("gate.provider", provider))
	return ctx, span
}

// EndRecordSpan ends a usage record span with attributes.
func (t *Tracer) EndRecordSpan(span trace.Span, opts RecordSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("gate.provider", opts.Provider),
		attribute.Int("gate.tokens.input", opts.TokensIn),
		attribute.Int("gate.tokens.output", opts.TokensOut),
		attribute.Float64("gate.cost_usd", opts.CostUSD),
		attribute.Bool("gate.success", opts.Success),
	}
	if opts.Model != "" {
		attrs = append(attrs, attribute.String("gate.model", opts.Model))
	}

	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Drain Spans ---

// DrainSpanOptions contains options for queue drain spans.
type DrainSpanOptions struct {
	Provider  string
	RequestID string
	Waited    time.Duration
	Attempts  int
}

// StartDrainSpan starts a span for draining one queued request.
func (t *Tracer) StartDrainSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "gate.drain", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("gate.provider", provider))
	return ctx, span
}

// EndDrainSpan ends a drain span with attributes.
func (t *Tracer) EndDrainSpan(span trace.Span, opts DrainSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("gate.provider", opts.Provider),
		attribute.Int64("gate.waited_ms", opts.Waited.Milliseconds()),
	}
	if opts.RequestID != "" {
		attrs = append(attrs, attribute.String("gate.request_id", opts.RequestID))
	}
	if opts.Attempts > 0 {
		attrs = append(attrs, attribute.Int("gate.attempts", opts.Attempts))
	}

	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Context Propagation ---

// InjectContext injects trace context into a carrier for cross-process propagation.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext extracts trace context from a carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// MapCarrier is a simple map-based TextMapCarrier for context propagation.
type MapCarrier map[string]string

func (c MapCarrier) Get(key string) string {
	return c[key]
}

func (c MapCarrier) Set(key, value string) {
	c[key] = value
}

func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// --- Helpers ---

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func truncateAny(v interface{}, maxLen int) string {
	switch val := v.(type) {
	case string:
		return truncate(val, maxLen)
	default:
		return truncate(fmt.Sprint(val), maxLen)
	}
}
