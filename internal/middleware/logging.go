package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"camserver/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware logs every API request with its status and duration.
// Static assets and log downloads are only logged in debug mode.
func LoggingMiddleware(logger *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Round(time.Microsecond)
		switch {
		case rec.status >= http.StatusInternalServerError:
			logger.Error("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		case strings.HasPrefix(r.URL.Path, "/api/"):
			logger.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		default:
			logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
		}
	})
}
