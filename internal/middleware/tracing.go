package middleware

import (
	"net/http"
	"time"

	"github.com/R3E-Network/scoring_api/internal/httputil"
	"github.com/R3E-Network/scoring_api/internal/logging"
)

// TracingMiddleware assigns every request an id and logs its completion.
type TracingMiddleware struct {
	logger *logging.Logger
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(logger *logging.Logger) *TracingMiddleware {
	return &TracingMiddleware{
		logger: logger,
	}
}

// Handler returns the tracing middleware handler. A caller-supplied
// X-Request-Id is kept; otherwise a new one is generated.
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(httputil.RequestIDHeader)
		if requestID == "" {
			requestID = logging.NewTraceID()
		}

		ctx := logging.WithTraceID(r.Context(), requestID)
		w.Header().Set(httputil.RequestIDHeader, requestID)

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
