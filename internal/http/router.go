package http

import (
	"log/slog"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB, credentials are tiny

func NewRouter(
	log *slog.Logger,
	svc *auth.Service,
	queue handlers.Enqueuer,
	prom *observability.Prom,
	gatherer prometheus.Gatherer,
	cfg config.Config,
	pings map[string]handlers.Pinger,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("authhub"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health + metrics
	h := handlers.NewHealthHandler(pings)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// auth routes
	authHandler := handlers.NewAuthHandler(svc, queue, prom, cfg)
	session := middlewares.NewSessionMiddleware(svc)

	r.POST("/users", authHandler.Register)
	r.POST("/sessions", authHandler.Login)
	r.DELETE("/sessions", authHandler.Logout)
	r.GET("/profile", session.RequireSession(), authHandler.Profile)
	r.POST("/reset_password", authHandler.RequestPasswordReset)
	r.PUT("/reset_password", authHandler.UpdatePassword)

	return r
}
