package log

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	Size       int           `json:"size"`
	RemoteAddr string        `json:"remote_addr"`
	UserAgent  string        `json:"user_agent"`
}

// LogHTTPRequest writes one structured line for a completed request.
// Server errors are logged at error level.
func LogHTTPRequest(logger *zap.SugaredLogger, entry HTTPLogEntry) {
	if logger == nil {
		logger = GetSugaredLogger()
	}

	fields := []interface{}{
		"method", entry.Method,
		"path", entry.Path,
		"status", entry.Status,
		"duration_ms", entry.Duration.Milliseconds(),
		"size", entry.Size,
		"remote_addr", entry.RemoteAddr,
		"user_agent", entry.UserAgent,
	}
	if entry.Query != "" {
		fields = append(fields, "query", entry.Query)
	}
	if entry.RequestID != "" {
		fields = append(fields, "request_id", entry.RequestID)
	}

	if entry.Status >= http.StatusInternalServerError {
		logger.Errorw("http request", fields...)
		return
	}
	logger.Infow("http request", fields...)
}

// statusRecorder captures the status code and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// AccessLogMiddleware logs every request through logger once the handler returns.
// The request id is read from the X-Request-ID response header when present.
func AccessLogMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, req)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			LogHTTPRequest(logger, HTTPLogEntry{
				Timestamp:  start,
				RequestID:  w.Header().Get("X-Request-ID"),
				Method:     req.Method,
				Path:       req.URL.Path,
				Query:      req.URL.RawQuery,
				Status:     status,
				Duration:   time.Since(start),
				Size:       rec.size,
				RemoteAddr: req.RemoteAddr,
				UserAgent:  req.UserAgent(),
			})
		})
	}
}
