package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// statusWriter captures the status code and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// requestIDMiddleware reuses the caller's X-Request-ID or assigns a new one,
// echoes it on the response and puts it on the log context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logx.WithFields(r.Context(), logx.Fields{RequestID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLogMiddleware opens a span per request, then logs and counts it
// under the matched chi route pattern.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.sink.Start(r.Context(), "http.request", telemetry.KindChain)
		r = r.WithContext(ctx)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		d := time.Since(start)
		route := routePattern(r)
		span.End(nil, map[string]any{
			"http.method":      r.Method,
			"http.route":       route,
			"http.status_code": sw.status,
		})
		s.metrics.HTTPRequest(r.Method, route, sw.status, d)

		ev := logx.Ctx(ctx).Info()
		if sw.status >= http.StatusInternalServerError {
			ev = logx.Ctx(ctx).Error()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", sw.status).
			Int("bytes", sw.size).
			Dur("duration", d).
			Msg("http request")
	})
}

// routePattern returns the matched chi pattern, falling back to the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func requestIDFrom(r *http.Request) string {
	return logx.FieldsFrom(r.Context()).RequestID
}
