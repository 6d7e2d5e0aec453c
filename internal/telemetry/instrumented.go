package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/preload/pkg/preload"
)

// TracerName is the instrumentation name used for spans.
const TracerName = "github.com/vango-dev/preload"

// Instrumented wraps a Plugin with spans and metrics.
type Instrumented struct {
	plugin  *preload.Plugin
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures an Instrumented plugin.
type Option func(*Instrumented)

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(i *Instrumented) {
		i.tracer = tracer
	}
}

// Instrument wraps p. m may be nil to record spans only.
func Instrument(p *preload.Plugin, m *Metrics, opts ...Option) *Instrumented {
	i := &Instrumented{
		plugin:  p,
		metrics: m,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.tracer == nil {
		i.tracer = otel.Tracer(TracerName)
	}
	return i
}

// Plugin returns the wrapped plugin.
func (i *Instrumented) Plugin() *preload.Plugin {
	return i.plugin
}

// Metrics returns the metrics, which may be nil.
func (i *Instrumented) Metrics() *Metrics {
	return i.metrics
}

// ConfigResolved normalizes opts inside a span and updates the directive
// gauge.
func (i *Instrumented) ConfigResolved(ctx context.Context, opts preload.Options, mode preload.Mode) error {
	_, span := i.tracer.Start(ctx, "preload.ConfigResolved",
		trace.WithAttributes(
			attribute.String("preload.mode", string(mode)),
			attribute.Int("preload.routes", len(opts.Routes)),
		),
	)
	defer span.End()

	err := i.plugin.ConfigResolved(opts, mode)
	n := 0
	if gen, ok := i.plugin.Generator(); ok {
		n = len(gen.Directives())
	}
	i.metrics.RecordConfigResolution(err, n)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("preload.directives", n))
	return nil
}

// ResolveID delegates to the plugin.
func (i *Instrumented) ResolveID(id string) (string, bool) {
	return i.plugin.ResolveID(id)
}

// Load renders the virtual module inside a span.
func (i *Instrumented) Load(ctx context.Context, id string) (string, bool, error) {
	_, span := i.tracer.Start(ctx, "preload.Load",
		trace.WithAttributes(attribute.String("preload.id", id)),
	)
	defer span.End()

	start := time.Now()
	code, ok, err := i.plugin.Load(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", ok, err
	}
	if ok {
		i.metrics.ObserveRender(ArtifactRuntime, time.Since(start))
		span.SetAttributes(attribute.Int("preload.bytes", len(code)))
	}
	return code, ok, nil
}

// TransformIndexHTML splices the injection into html inside a span.
func (i *Instrumented) TransformIndexHTML(ctx context.Context, html string) string {
	_, span := i.tracer.Start(ctx, "preload.TransformIndexHTML")
	defer span.End()

	start := time.Now()
	out := i.plugin.TransformIndexHTML(html)
	i.metrics.ObserveRender(ArtifactHTML, time.Since(start))
	span.SetAttributes(attribute.Bool("preload.injected", len(out) != len(html)))
	return out
}

// RenderHTMLInjection renders the HTML fragment inside a span.
func (i *Instrumented) RenderHTMLInjection(ctx context.Context) (string, error) {
	_, span := i.tracer.Start(ctx, "preload.RenderHTMLInjection")
	defer span.End()

	gen, ok := i.plugin.Generator()
	if !ok {
		span.SetStatus(codes.Error, preload.ErrNotConfigured.Error())
		return "", preload.ErrNotConfigured
	}
	start := time.Now()
	out := gen.RenderHTMLInjection()
	i.metrics.ObserveRender(ArtifactFragment, time.Since(start))
	return out, nil
}

// HandleHotUpdate delegates to the plugin.
func (i *Instrumented) HandleHotUpdate(file string) bool {
	return i.plugin.HandleHotUpdate(file)
}
