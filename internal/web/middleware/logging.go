// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/logging"
)

// Logger logs one line per request with its outcome.
//
// Log fields:
//   - method, path, status
//   - duration_ms: time spent in the handler chain
//   - bytes_in: declared request size (the upload), -1 if unknown
//   - bytes_out: response body bytes written
//   - conversion_id: set when the handler returned a converted file
//   - ip: client IP, already resolved by TrustedRealIP
//
// Server errors log at error level and rejected requests at warn, so failed
// conversions stand out from routine traffic. The request ID is attached
// by logging.FromContext.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case ww.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int64("bytes_in", r.ContentLength),
			slog.Int64("bytes_out", ww.bytes),
			slog.String("ip", r.RemoteAddr),
		}
		if id := ww.Header().Get("X-Conversion-Id"); id != "" {
			attrs = append(attrs, slog.String("conversion_id", id))
		}
		logging.FromContext(r.Context()).LogAttrs(r.Context(), level, "request", attrs...)
	})
}

// responseWriter records the status code and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
