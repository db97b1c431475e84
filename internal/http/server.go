package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/config"
	"github.com/jmehdipour/restaurant-crm/internal/http/middleware"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

// Deps are the collaborators behind the API. Archive and Redis are optional.
type Deps struct {
	Tenants  *tenant.Directory
	Entities *repository.EntityRepository
	Archive  repository.MigrationArchive
	Redis    *redis.Client
}

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.RequestID(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	if len(cfg.HTTP.APIKeys) == 0 {
		logger.Log.Warn("http: no api keys configured, /v1 is open")
	}
	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:tenant:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW)
	v1.GET("/tenants", listTenantsHandler(d.Tenants))
	v1.GET("/migrations/runs/:run/items", listMigrationItemsHandler(d.Archive))

	t := v1.Group("/tenants/:tenant", rlMW)
	t.GET("", getTenantHandler(d.Tenants))
	t.GET("/:kind", listEntitiesHandler(d.Tenants, d.Entities))
	t.POST("/:kind", createEntityHandler(d.Entities))
	t.GET("/:kind/:id", getEntityHandler(d.Entities))
	t.PATCH("/:kind/:id", updateEntityHandler(d.Entities))
	t.DELETE("/:kind/:id", deleteEntityHandler(d.Entities))

	return &Server{e: e}
}

func echoLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	}
	return log.INFO
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
