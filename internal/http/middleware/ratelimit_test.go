package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 2})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		request := httptest.NewRequest(http.MethodPost, "/chat", nil)
		request.RemoteAddr = "10.0.0.1:5000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/chat", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected a separate bucket per client, got %d", recorder.Code)
	}
}

func TestRateLimitSkipsExemptPaths(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 1, Exempt: []string{"/healthz"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		request.RemoteAddr = "10.0.0.1:5000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected exempt path to pass, got %d on call %d", recorder.Code, i+1)
		}
	}
}

func TestVisitorsForgetIdleClients(t *testing.T) {
	clients := &visitors{
		items:   make(map[string]*visitor),
		rps:     1,
		burst:   1,
		idleTTL: time.Minute,
		swept:   time.Unix(0, 0),
	}
	start := time.Unix(1000, 0)

	clients.limiter("10.0.0.1", start)
	clients.limiter("10.0.0.2", start.Add(2*time.Minute))

	if _, ok := clients.items["10.0.0.1"]; ok {
		t.Fatalf("expected idle client to be forgotten")
	}
	if len(clients.items) != 1 {
		t.Fatalf("expected one tracked client, got %d", len(clients.items))
	}
}
