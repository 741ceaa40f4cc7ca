// Package httpmiddleware contains net/http middlewares shared by the API
// server: telemetry, logging, recovery, CORS, rate limiting and request ids.
package httpmiddleware

import (
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware is a net/http middleware.
type Middleware = func(http.Handler) http.Handler

// Wrap handler using given middlewares. The first middleware is the
// outermost one.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Telemetry provides the OpenTelemetry providers used by Instrument.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// RouteFinder returns the route pattern serving method and u.
type RouteFinder func(method string, u *url.URL) (string, bool)

// MakeRouteFinder creates a RouteFinder for the given router. Routes must be
// registered on mux directly, since Find does not descend into mounted
// sub-routers.
func MakeRouteFinder(mux *chi.Mux) RouteFinder {
	return func(method string, u *url.URL) (string, bool) {
		pattern := mux.Find(chi.NewRouteContext(), method, u.Path)
		return pattern, pattern != ""
	}
}

// InjectLogger injects the logger into every request context.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := r.Context()
			req := r.WithContext(zctx.Base(reqCtx, lg))
			next.ServeHTTP(w, req)
		})
	}
}

// Instrument setups otelhttp, naming spans after the matched route.
func Instrument(serviceName string, find RouteFinder, m Telemetry) Middleware {
	return func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, "",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
			otelhttp.WithServerName(serviceName),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if route, ok := find(r.Method, r.URL); ok {
					return r.Method + " " + route
				}
				return r.Method
			}),
		)
	}
}

// LogRequests logs every request with its status, size and duration.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			m := httpsnoop.CaptureMetrics(next, w, r)

			fields := []zap.Field{
				zap.String("http.request.method", r.Method),
				zap.Stringer("url", r.URL),
				zap.Int("http.response.status_code", m.Code),
				zap.Int64("http.response.body.size", m.Written),
				zap.Duration("duration", m.Duration),
			}
			if route, ok := find(r.Method, r.URL); ok {
				fields = append(fields, zap.String("http.route", route))
			}

			lg := zctx.From(ctx)
			switch {
			case m.Code >= http.StatusInternalServerError:
				lg.Error("http request", fields...)
			default:
				lg.Info("http request", fields...)
			}
		})
	}
}

// Labeler adds the route pattern to the span and to otelhttp metrics, and
// the request id to the span.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := find(r.Method, r.URL)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			attr := semconv.HTTPRouteKey.String(route)
			span := trace.SpanFromContext(r.Context())
			span.SetAttributes(attr)
			if id := RequestIDFromContext(r.Context()); id != "" {
				span.SetAttributes(attribute.String("http.request.id", id))
			}

			labeler, _ := otelhttp.LabelerFromContext(r.Context())
			labeler.Add(attr)

			next.ServeHTTP(w, r)
		})
	}
}
