package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthProtectsOnlyListedRoutes(t *testing.T) {
	handler := Auth("secret", Protected(http.MethodPost, "/sections"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "open route", method: http.MethodPost, path: "/chat", want: http.StatusOK},
		{name: "search stays open", method: http.MethodPost, path: "/sections/search", want: http.StatusOK},
		{name: "missing token", method: http.MethodPost, path: "/sections", want: http.StatusUnauthorized},
		{name: "wrong token", method: http.MethodPost, path: "/sections", token: "nope", want: http.StatusUnauthorized},
		{name: "valid token", method: http.MethodPost, path: "/sections", token: "secret", want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				request.Header.Set("Authorization", "Bearer "+tc.token)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)
			if recorder.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, recorder.Code)
			}
		})
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	handler := Auth("", Protected(http.MethodPost, "/sections"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/sections", nil))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected passthrough, got %d", recorder.Code)
	}
}
