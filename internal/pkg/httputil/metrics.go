package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/pkg/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware observes request latency labelled by method, chi route
// pattern and status. Using the pattern keeps incident IDs out of the labels.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			routePattern(r),
			strconv.Itoa(responseStatus(ww)),
		).Observe(time.Since(start).Seconds())
	})
}
