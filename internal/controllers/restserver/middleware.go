package restserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware propagates a caller-supplied X-Request-ID or assigns a new one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(req.Context(), requestIDKey, id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requestID returns the id assigned by requestIDMiddleware
func requestID(req *http.Request) string {
	if id, ok := req.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// rateLimitMiddleware rejects requests beyond the configured rate with 429
func (c *Controller) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !c.limiter.Allow() {
			c.metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			c.handlers.formatter.WriteError(w, req, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware counts requests and observes latency per route template
func (c *Controller) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route := "unknown"
		if r := mux.CurrentRoute(req); r != nil {
			if tpl, err := r.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		c.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		c.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// recoveryLogger adapts zap to the gorilla recovery handler
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(v...)
}
