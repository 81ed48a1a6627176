package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/enroll/queue-server-go/internal/config"
	"github.com/enroll/queue-server-go/internal/middleware"
	"github.com/enroll/queue-server-go/internal/service"
)

type RouterConfig struct {
	QueueService  *service.QueueService
	DB            Pinger
	StaticDir     string
	AdminAuth     func(http.Handler) http.Handler
	RegisterLimit func(http.Handler) http.Handler
	HSTS          bool
}

// NewRouter assembles the full HTTP surface. Static files win over API
// routes for GET and HEAD.
func NewRouter(cfg RouterConfig) http.Handler {
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(cfg.HSTS)
	static := NewStaticMiddleware(cfg.StaticDir)

	queueHandler := NewQueueHandler(cfg.QueueService, cfg.RegisterLimit)
	adminHandler := NewAdminHandler(cfg.QueueService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AuthUser)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)
	r.Use(securityHeaders.Handler)
	r.Use(static.Handler)

	r.Method(http.MethodGet, "/health", NewHealthHandler(cfg.DB))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Mount("/", queueHandler.Routes())

	r.Route("/admin", func(r chi.Router) {
		if cfg.AdminAuth != nil {
			r.Use(cfg.AdminAuth)
		}
		r.Mount("/", adminHandler.Routes())
	})

	return r
}
