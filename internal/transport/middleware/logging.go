package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
)

// sensitiveParams are query parameter names masked from access logs. The
// secure hash is a MAC over merchant data, not a secret, but logging it
// invites copy-paste replays during debugging.
var sensitiveParams = []string{
	"vnp_SecureHash",
	"secret",
	"token",
	"authorization",
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())

			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)

			statusCode := ww.statusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			logLevel := slog.LevelInfo
			if statusCode >= 500 {
				logLevel = slog.LevelError
			} else if statusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(r.Context(), logLevel, "http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", filterSensitiveQuery(r.URL.RawQuery),
				"remote_addr", r.RemoteAddr,
				"status_code", statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// filterSensitiveQuery masks the value of any sensitive query parameter.
func filterSensitiveQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	for i, pair := range pairs {
		name, _, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		lower := strings.ToLower(name)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, strings.ToLower(sensitive)) {
				pairs[i] = name + "=[FILTERED]"
				break
			}
		}
	}
	return strings.Join(pairs, "&")
}
