package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fstore/internal/auth"
)

// quietPaths are probed constantly and never logged.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// accessRecorder captures status and body size. Unwrap keeps the wrapped
// writer reachable through http.ResponseController.
type accessRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *accessRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *accessRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *accessRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *accessRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, quiet := quietPaths[r.URL.Path]; quiet {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &accessRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.statusCode() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.log().Log(r.Context(), level, "request complete", accessFields(r, rec, time.Since(start))...)
	})
}

func accessFields(r *http.Request, rec *accessRecorder, elapsed time.Duration) []any {
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	fields := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"route", route,
		"status", rec.statusCode(),
		"bytes", rec.written,
		"duration_ms", elapsed.Milliseconds(),
		"remote_addr", r.RemoteAddr,
	}
	if caller := strings.TrimSpace(r.Header.Get(auth.UserIDHeader)); caller != "" {
		fields = append(fields, "caller", caller)
	}
	return fields
}
