// Package metrics defines the Prometheus collectors of the docstore API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of docstore API requests by route",
			// Schema migrations re-embed every record of a dataset, hence the long tail.
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Docstore API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestDuration, apiRequestsTotal)
}

// unmatchedRoute labels requests no docstore route handled.
const unmatchedRoute = "unmatched"

// operational endpoints are served without being counted as API traffic.
var operational = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware observes every docstore API request, labelled by method, chi route
// pattern and status. Requests to /health and /metrics pass through unobserved.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if operational[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := []string{r.Method, route(r), strconv.Itoa(status)}
			apiRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			apiRequestsTotal.WithLabelValues(labels...).Inc()
		})
	}
}

// route returns the matched pattern, e.g. /datasets/{datasetID}/records/{recordID},
// so record and dataset ids never become label values.
func route(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
