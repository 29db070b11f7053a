package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// requireAPIKey gates a handler behind the shared-secret check. A bad
// or missing credential is rejected before any storage access.
func (a *API) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
			a.logger.Warn("unauthorized request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			if a.metrics != nil {
				a.metrics.AuthFailures.Inc()
			}
			a.writeJSON(w, http.StatusForbidden, errorResponse{Error: "Unauthorized"})
			return
		}

		next(w, r)
	}
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request metrics.
func (a *API) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	if a.metrics == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		a.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, path).Inc()
		defer a.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, path).Dec()

		timer := prometheus.NewTimer(a.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path))
		defer timer.ObserveDuration()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(recorder, r)

		a.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()

		a.logger.Debug("request handled",
			"method", r.Method,
			"path", path,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	}
}
