package ops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// instrument wraps a probe handler so every hit lands in the HTTP metrics.
// Scrapers poll these endpoints continuously, so failures surface as
// non-2xx counts and a debug line rather than log noise.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(&rec, r)
		elapsed := float64(time.Since(start).Milliseconds())

		code := strconv.Itoa(rec.code)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, elapsed)

		switch {
		case rec.code >= http.StatusInternalServerError:
			metrics.RecordErrorByComponent("ops", "server_error")
			logger.Get().Debug(r.Context(), "ops endpoint failed",
				logger.String("endpoint", endpoint),
				logger.Int("status", rec.code),
			)
		case rec.code >= http.StatusBadRequest:
			metrics.RecordErrorByComponent("ops", "client_error")
		}
	}
}

// statusRecorder captures the status code a handler writes. WriteHeader is
// only intercepted; writes pass through untouched.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}
