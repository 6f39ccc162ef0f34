package tracing

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ExtractContext restores propagated trace context from an inbound carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectContext writes the active trace context into an outbound carrier.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

var allowedSpanKeys = map[attribute.Key]struct{}{
	"request_id":              {},
	"org_id":                  {},
	"endpoint":                {},
	"outcome":                 {},
	"reason":                  {},
	"http.method":             {},
	"http.route":              {},
	"http.host":               {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"http.client_duration_ms": {},
}

// SafeAttributes strips span attributes that are not on the allowlist so
// request payloads and identifiers never reach the trace backend.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

const maxSpanErrorLen = 256

var queryStringPattern = regexp.MustCompile(`\?[^\s"']+`)

// SafeError returns a copy of err safe to record on a span. Query strings
// are redacted and the message is truncated.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := queryStringPattern.ReplaceAllString(err.Error(), "?[redacted]")
	if len(msg) > maxSpanErrorLen {
		msg = msg[:maxSpanErrorLen]
	}
	return errors.New(msg)
}

// WrapHTTPClient returns a copy of client whose transport starts a client
// span per request and injects propagation headers. The original client is
// not mutated.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &tracingTransport{base: base}
	return &wrapped
}

type tracingTransport struct {
	base http.RoundTripper
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tracer := otel.Tracer("eventra/httpclient")
	ctx, span := tracer.Start(req.Context(), "HTTP "+strings.ToUpper(req.Method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(ctx)
	InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	attrs := []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
		attribute.Int64("http.client_duration_ms", time.Since(start).Milliseconds()),
	}
	if resp != nil {
		attrs = append(attrs, attribute.Int("http.status_code", resp.StatusCode))
	}
	span.SetAttributes(SafeAttributes(attrs...)...)

	if err != nil {
		if safeErr := SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "request error")
		return resp, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "request error")
	}
	return resp, nil
}
