package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLogMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	handler := AccessLogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "abc-123")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("not enough data"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/forecast?forecastMonths=6", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusUnprocessableEntity) {
		t.Errorf("status = %v", fields["status"])
	}
	if fields["path"] != "/api/forecast" || fields["query"] != "forecastMonths=6" {
		t.Errorf("path/query = %v %v", fields["path"], fields["query"])
	}
	if fields["request_id"] != "abc-123" {
		t.Errorf("request_id = %v", fields["request_id"])
	}
	if fields["size"] != int64(len("not enough data")) {
		t.Errorf("size = %v", fields["size"])
	}
}

func TestAccessLogServerErrorLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	handler := AccessLogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if n := logs.FilterMessage("http request").FilterField(zap.Int("status", 500)).Len(); n != 1 {
		t.Fatalf("expected one 500 entry, got %d", n)
	}
	if logs.All()[0].Level != zap.ErrorLevel {
		t.Errorf("level = %v, want error", logs.All()[0].Level)
	}
}
