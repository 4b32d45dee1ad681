package httputil

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/watch-buddy/pkg/logger"
)

const maxLoggedBody = 2 << 10

// MiddlewareLogging attaches a request-scoped logger carrying req_id and logs
// method, path, status, duration and truncated JSON bodies. It must not wrap
// the WebSocket route: the wrapped writer cannot be hijacked.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID, _ := RequestIDFromContext(r.Context())
		l := slog.Default().With("req_id", reqID)
		r = r.WithContext(logger.WithContext(r.Context(), l))

		var reqBody string
		if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "json") && r.Body != nil {
			var buf bytes.Buffer
			tee := io.TeeReader(r.Body, &buf)
			b, _ := io.ReadAll(tee)
			r.Body = io.NopCloser(&buf)
			reqBody = truncate(b)
		}

		lrw := &logResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		l.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"bytes", lrw.bytes,
			"duration", time.Since(start).String(),
			"req_body", reqBody,
			"resp_body", truncate(lrw.body.Bytes()),
		)
	})
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "…"
	}
	return string(b)
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
	body   bytes.Buffer
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.body.Len() < maxLoggedBody {
		w.body.Write(b)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n

	return n, err
}
