package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultCORSMaxAgeSeconds = 600

var (
	defaultCORSAllowedMethods = []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodOptions,
	}
	defaultCORSAllowedHeaders = []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"Idempotency-Key",
		"X-Request-Id",
	}
	// The chat front end reads the PDF name from Content-Disposition.
	defaultCORSExposedHeaders = []string{
		"Content-Disposition",
		"X-Request-Id",
	}
)

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string

	// A "*" entry echoes whatever the preflight asks for.
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

type corsPolicy struct {
	origins      []string
	anyOrigin    bool
	anyHeader    bool
	credentials  bool
	methodsValue string
	headersValue string
	exposedValue string
	maxAgeValue  string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	policy := corsPolicy{
		origins:     normalizeStringList(cfg.AllowedOrigins),
		credentials: cfg.AllowCredentials,
	}
	policy.anyOrigin = containsFold(policy.origins, "*")

	methods := normalizeStringList(cfg.AllowedMethods)
	if len(methods) == 0 {
		methods = defaultCORSAllowedMethods
	}
	headers := normalizeStringList(cfg.AllowedHeaders)
	if len(headers) == 0 {
		headers = defaultCORSAllowedHeaders
	}
	policy.anyHeader = containsFold(headers, "*")
	exposed := normalizeStringList(cfg.ExposedHeaders)
	if len(exposed) == 0 {
		exposed = defaultCORSExposedHeaders
	}
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAgeSeconds
	}

	policy.methodsValue = strings.Join(methods, ", ")
	policy.headersValue = strings.Join(headers, ", ")
	policy.exposedValue = strings.Join(exposed, ", ")
	policy.maxAgeValue = strconv.Itoa(maxAge)
	return policy
}

func (p corsPolicy) allows(origin string) bool {
	return p.anyOrigin || containsFold(p.origins, origin)
}

// allowOriginValue never returns "*" with credentials, which browsers reject.
func (p corsPolicy) allowOriginValue(origin string) string {
	if p.anyOrigin && !p.credentials {
		return "*"
	}
	return origin
}

func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || !policy.allows(origin) {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Origin", policy.allowOriginValue(origin))
			if policy.credentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method != http.MethodOptions {
				header.Set("Access-Control-Expose-Headers", policy.exposedValue)
				next.ServeHTTP(w, r)
				return
			}

			allowHeaders := policy.headersValue
			if requested := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers")); policy.anyHeader && requested != "" {
				allowHeaders = requested
			}
			header.Add("Vary", "Access-Control-Request-Method")
			header.Add("Vary", "Access-Control-Request-Headers")
			header.Set("Access-Control-Allow-Methods", policy.methodsValue)
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Max-Age", policy.maxAgeValue)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeStringList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		result = append(result, value)
	}
	return result
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
