package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const httpScopeName = "github.com/bzmirror/bzmirror/http"

// InstrumentedTransport wraps an http.RoundTripper with OTel tracing and metrics.
// Every outbound request gets a client span and is counted in bzmirror.http.* metrics.
// Use WrapTransport to create one; it returns the original transport unchanged when
// telemetry is disabled.
type InstrumentedTransport struct {
	inner  http.RoundTripper
	system string
	tracer trace.Tracer
	reqs   metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapTransport returns rt decorated with OTel instrumentation. system names the
// remote tracker ("bugzilla", "github") and is attached to every span and metric.
// A nil rt means http.DefaultTransport.
func WrapTransport(rt http.RoundTripper, system string) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if !Enabled() {
		return rt
	}
	m := Meter(httpScopeName)
	reqs, _ := m.Int64Counter("bzmirror.http.requests",
		metric.WithDescription("Total outbound API requests"),
	)
	dur, _ := m.Float64Histogram("bzmirror.http.request.duration",
		metric.WithDescription("Outbound API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("bzmirror.http.errors",
		metric.WithDescription("Outbound API requests that failed or returned a non-2xx status"),
	)
	return &InstrumentedTransport{
		inner:  rt,
		system: system,
		tracer: Tracer(httpScopeName),
		reqs:   reqs,
		dur:    dur,
		errs:   errs,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *InstrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attrs := []attribute.KeyValue{
		attribute.String("bzmirror.system", t.system),
		attribute.String("http.request.method", req.Method),
	}
	ctx, span := t.tracer.Start(req.Context(), t.system+" "+req.Method,
		trace.WithAttributes(append(attrs, attribute.String("url.path", req.URL.Path))...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	t.reqs.Add(ctx, 1, metric.WithAttributes(attrs...))

	start := time.Now()
	resp, err := t.inner.RoundTrip(req.WithContext(ctx))
	t.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, strconv.Itoa(resp.StatusCode))
		t.errs.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))...))
	}
	return resp, nil
}
