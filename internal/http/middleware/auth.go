package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Route names a method and exact path that requires the bearer token.
type Route struct {
	Method string
	Path   string
}

func Protected(method, path string) Route {
	return Route{Method: method, Path: path}
}

// Auth checks the bearer token on the given routes only. An empty token
// disables the check.
func Auth(requiredToken string, routes ...Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredToken == "" || !matchesRoute(routes, r) {
				next.ServeHTTP(w, r)
				return
			}

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authorization, prefix) {
				writeUnauthorized(w, r)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(requiredToken)) != 1 {
				writeUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchesRoute(routes []Route, r *http.Request) bool {
	for _, route := range routes {
		if route.Path == r.URL.Path && (route.Method == "" || route.Method == r.Method) {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
