package dashboard

import (
	"log/slog"
	"net/http"
	"time"

	"blobbench/pkg/auth"
)

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the response status, 200 if the handler wrote nothing.
func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// LogEntry is one access-log line.
type LogEntry struct {
	IP         string
	Method     string
	URL        string
	Route      string
	DurationMS float64
	StatusCode int
}

func (e LogEntry) User() slog.Attr {
	return slog.Group("user", "ip", e.IP)
}

func (e LogEntry) Request() slog.Attr {
	return slog.Group("request",
		"method", e.Method,
		"url", e.URL,
		"route", e.Route,
		"duration_ms", e.DurationMS,
		"status_code", e.StatusCode,
	)
}

// LogRequest writes an access-log line per request to logger. Health checks
// are logged at debug level so liveness checks do not flood the log.
func LogRequest(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}

		start := time.Now()
		next.ServeHTTP(rec, r)
		status := rec.Status()

		entry := LogEntry{
			IP:         r.RemoteAddr,
			Method:     r.Method,
			URL:        r.URL.String(),
			Route:      r.Pattern,
			DurationMS: float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond),
			StatusCode: status,
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case r.URL.Path == "/healthz":
			level = slog.LevelDebug
		}
		logger.LogAttrs(r.Context(), level, "Request", entry.User(), entry.Request())
	})
}

// RequireAuthentication rejects requests that engine does not accept. A nil
// engine leaves the handler open.
func RequireAuthentication(engine auth.AuthEngine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if engine == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := engine.AuthenticateRequest(r.Context(), r)
			if err != nil {
				slog.Error("Authentication failed", "err", err)
				http.Error(w, "authentication error", http.StatusInternalServerError)
				return
			}

			if user == nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="blobbench", charset="UTF-8"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer turns a handler panic into a 500 response. http.ErrAbortHandler
// is re-raised so the server aborts the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			slog.Error("Dashboard handler panicked", "method", r.Method, "path", r.URL.Path, "panic", rvr)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
