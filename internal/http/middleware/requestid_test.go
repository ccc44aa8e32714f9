package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDKeepsValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "front-42")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if seen != "front-42" || recorder.Header().Get("X-Request-Id") != "front-42" {
		t.Fatalf("expected caller id to be kept, got %q / %q", seen, recorder.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for _, raw := range []string{`abc"},"x":"y`, strings.Repeat("a", 200), ""} {
		request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		request.Header.Set("X-Request-Id", raw)
		handler.ServeHTTP(httptest.NewRecorder(), request)
		if seen == raw || len(seen) != 36 {
			t.Fatalf("expected a generated uuid for %q, got %q", raw, seen)
		}
	}
}
