// Package httpapi provides the chi middleware stack shared by all three
// daemons (Directory Registry, Lease Manager, Storage Node): request id,
// real-IP extraction, a structured request logger, panic recovery, and a
// request timeout.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
)

// NewRouter returns a chi.Router with the common middleware stack
// installed. Callers mount their verb-specific handlers on top.
func NewRouter(requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	return r
}

// requestLogger logs request start at debug level and completion at
// info level, carrying the chi request id and response status/size.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.RequestID(requestID),
			logger.Verb(r.Method),
			logger.Path(r.URL.Path),
			logger.ClientIP(r.RemoteAddr),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			logger.RequestID(requestID),
			logger.Verb(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Bytes(ww.BytesWritten()),
			logger.DurationMs(float64(time.Since(start).Microseconds())/1000),
		)
	})
}

// Metrics returns a middleware recording request count, latency and
// response size into m. Install with router.Use before mounting handlers.
func Metrics(m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			m.Requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
			m.ResponseBytes.WithLabelValues(r.Method).Observe(float64(ww.BytesWritten()))
			m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// MountWildcard wires handler under a chi wildcard route so the full
// request path (a file or directory path, not a chi-style resource
// segment) reaches it verbatim.
func MountWildcard(r chi.Router, method string, handler http.HandlerFunc) {
	r.MethodFunc(method, "/*", handler)
	r.MethodFunc(method, "/", handler)
}
