package middleware

import (
	"net/http"
	"time"

	"github.com/xregistry/bridge/internal/logger"
)

// responseWriter captures status and byte count for the access log.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// RequestLogging logs one line per completed request with the request id
// attached, debug level for the high-traffic health probes.
func RequestLogging(lgr *logger.StyledLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rctx := GetRequestContext(r)

			wrapped := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(wrapped, r)

			rlog := lgr.WithRequestID(rctx.RequestID)
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"bytes", wrapped.bytes,
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			}

			if r.URL.Path == "/health" || r.URL.Path == "/status" {
				rlog.Debug("request", args...)
				return
			}
			rlog.Info("request", args...)
		})
	}
}
