package responseformat

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

type sample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)

	if err := NewFormatter().WriteResponse(rec, req, http.StatusCreated, sample{"bin", 1.5}, map[string]string{"X-Test": "yes"}); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" || rec.Header().Get("X-Test") != "yes" {
		t.Errorf("headers = %v", rec.Header())
	}

	var got sample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (sample{"bin", 1.5}) {
		t.Errorf("body = %+v", got)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/forecast?format=msgpack", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
			r.Header.Set("Accept", ContentTypeMsgPack)
			return r
		}(),
	} {
		rec := httptest.NewRecorder()
		if err := NewFormatter().WriteResponse(rec, req, http.StatusOK, sample{"bin", 2}, nil); err != nil {
			t.Fatalf("WriteResponse: %v", err)
		}
		if ct := rec.Header().Get("Content-Type"); ct != ContentTypeMsgPack {
			t.Errorf("content type = %q", ct)
		}

		// Keys follow the json tags
		var got map[string]any
		if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["name"] != "bin" {
			t.Errorf("body = %v", got)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)

	NewFormatter().WriteError(rec, req, http.StatusUnprocessableEntity, "insufficient data")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Message != "insufficient data" {
		t.Errorf("body = %+v", body)
	}
}
