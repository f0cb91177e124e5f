package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "otpgate/http"
	bodyLogLimit        = 16 << 10
)

// routeOf prefers the registered pattern so logs and metrics do not explode
// with one series per request id.
func routeOf(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return r.URL.Path
}

// capture remembers what the handler wrote, up to bodyLogLimit bytes of body.
type capture struct {
	http.ResponseWriter
	status    int
	written   int
	body      bytes.Buffer
	truncated bool
	err       error
}

func (c *capture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capture) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	keep := min(len(p), bodyLogLimit-c.body.Len())
	c.body.Write(p[:max(keep, 0)])
	c.truncated = c.truncated || keep < len(p)

	n, err := c.ResponseWriter.Write(p)
	c.written += n
	return n, err
}

// SetError lets the router attach the handler error to the span.
func (c *capture) SetError(err error) { c.err = err }

func (c *capture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// peekBody reads up to bodyLogLimit bytes and puts them back in front of the
// remaining body so the handler still sees everything.
func peekBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}
	//nolint:errcheck // logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, bodyLogLimit+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if len(head) > bodyLogLimit {
		return head[:bodyLogLimit], true
	}
	return head, false
}

// bodyForLog returns decoded JSON when possible so the masking log handler
// sees keys such as otp or refresh.
func bodyForLog(body []byte, truncated bool) any {
	switch {
	case len(body) == 0:
		return nil
	case !utf8.Valid(body):
		return "<binary body omitted>"
	case truncated:
		return string(body) + "...(truncated)"
	}
	var doc any
	if json.Unmarshal(body, &doc) == nil {
		return doc
	}
	return string(body)
}

type httpMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func newHTTPMetrics(m metric.Meter) httpMetrics {
	var hm httpMetrics
	var err error
	if hm.requests, err = m.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	if hm.latency, err = m.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("ms")); err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}
	return hm
}

func (hm httpMetrics) record(r *http.Request, elapsed time.Duration, attrs []attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	if hm.requests != nil {
		hm.requests.Add(r.Context(), 1, set)
	}
	if hm.latency != nil {
		hm.latency.Record(r.Context(), float64(elapsed.Microseconds())/1000, set)
	}
}

// middlewareObservability traces each request, records request metrics and
// logs both directions. Bodies are skipped when
// app.server.http.disable_body_log is set.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	withBodies := cfg == nil || !cfg.GetBool("app.server.http.disable_body_log")
	tracer := ins.Tracer(instrumentationName)
	metrics := newHTTPMetrics(ins.Meter(instrumentationName))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			route := routeOf(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			r = r.WithContext(ctx)

			var reqBody any
			if withBodies {
				reqBody = bodyForLog(peekBody(r))
			}
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"remote_ip", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"body", reqBody,
			)

			c := &capture{ResponseWriter: w}
			next.ServeHTTP(c, r)
			elapsed := time.Since(began)

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(c.code()),
			}
			span.SetAttributes(append(attrs, attribute.Int("http.response_content_length", c.written))...)
			if c.err != nil {
				span.RecordError(c.err)
			}
			if c.code() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(c.code()))
			}
			metrics.record(r, elapsed, attrs)

			var respBody any
			if withBodies {
				respBody = bodyForLog(c.body.Bytes(), c.truncated)
			}
			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", c.code(),
				"bytes", c.written,
				"latency_ms", elapsed.Milliseconds(),
				"body", respBody,
			)
		})
	}
}
