package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"transport-dispatch/internal/logx"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Observability records request metrics labelled by route pattern and logs every request.
func Observability(logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			path := pathPattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			code := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, path, code).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path, code).Observe(elapsed.Seconds())

			fields := []logx.Field{
				logx.String("method", r.Method),
				logx.String("path", path),
				logx.Int("status", status),
				logx.Duration("duration", elapsed),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, logx.String("request_id", id))
			}
			if id := r.Header.Get(TransporterHeader); id != "" {
				fields = append(fields, logx.String("transporter_id", id))
			}
			logger.Info("http request", fields...)
		})
	}
}

// pathPattern keeps label cardinality bounded by offer and order ids.
func pathPattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
