package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/qanuni/legalai/internal/adapter/httpserver"
	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	if cfg.HTTPRequestTimeout > 0 {
		r.Use(httpserver.TimeoutMiddleware(cfg.HTTPRequestTimeout))
	}
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Chat endpoints carry their own session/IP limiter.
	r.Post("/api/whatsapp-chat", srv.ChatHandler("/api/whatsapp-chat"))
	r.Post("/api/chat", srv.ChatHandler("/api/chat"))

	r.Get("/api/ai/providers", srv.ProvidersHandler())

	r.Group(func(ar chi.Router) {
		if cfg.AIRateLimitPerMin > 0 {
			ar.Use(httprate.LimitByIP(cfg.AIRateLimitPerMin, time.Minute))
		}
		ar.Post("/api/ai/strategy", srv.StrategyHandler())
		ar.Post("/api/ai/citations", srv.CitationsHandler())
		ar.Post("/api/ai/resume", srv.ResumeHandler())
		ar.Post("/api/ai/contract", srv.ContractHandler())
		ar.Post("/api/ai/contract/upload", srv.ContractUploadHandler())
		ar.Post("/api/ai/evidence", srv.EvidenceHandler())
		ar.Post("/api/ai/draft", srv.DraftHandler())
		ar.Post("/api/ai/news", srv.NewsHandler())
		srv.MountAdmin(ar)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}
