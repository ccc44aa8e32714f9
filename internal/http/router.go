package httpserver

import (
	"log"
	"net/http"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http/handlers"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/http/middleware"
)

type RouterDependencies struct {
	API             *handlers.API
	Metrics         http.Handler
	Logger          *log.Logger
	AuthToken       string
	CORSOrigins     []string
	CORSCredentials bool
	RateLimitRPS    float64
	RateLimitBurst  int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/chat", deps.API.Chat)
	mux.HandleFunc("/generate-report", deps.API.GenerateReport)
	mux.HandleFunc("/reports", deps.API.Reports)
	mux.HandleFunc("/messages", deps.API.Messages)
	mux.HandleFunc("/sections", deps.API.AddSection)
	mux.HandleFunc("/sections/search", deps.API.SearchSections)
	mux.HandleFunc("/static/reports/", deps.API.StaticReports)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken, middleware.Protected(http.MethodPost, "/sections"))(handler)
	handler = middleware.RateLimit(middleware.RateLimitConfig{
		RPS:    deps.RateLimitRPS,
		Burst:  deps.RateLimitBurst,
		Exempt: []string{"/healthz", "/metrics"},
	})(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   deps.CORSOrigins,
		AllowCredentials: deps.CORSCredentials,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
