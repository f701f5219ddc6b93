// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/interfaces/http/handler"
	"ideaforge-api/internal/interfaces/http/middleware"
)

// RouterHandlers 路由依赖的全部处理器
type RouterHandlers struct {
	Health     *handler.HealthHandler
	Generation *handler.GenerationHandler
	Project    *handler.ProjectHandler
	Webhook    *handler.WebhookHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers RouterHandlers
	auth     middleware.AuthConfig
	limiter  middleware.RateLimiter
	limitKey middleware.KeyBuilder
}

// NewWithDeps 创建带处理器依赖的路由器；limiter 为 nil 时不限流
func NewWithDeps(cfg *config.Config, handlers RouterHandlers, auth middleware.AuthConfig, limiter middleware.RateLimiter, limitKey middleware.KeyBuilder) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		auth:     auth,
		limiter:  limiter,
		limitKey: limitKey,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.AccessLog(middleware.DefaultAccessLogSkipPaths...))
}

func (r *Router) setupRoutes() {
	if h := r.handlers.Health; h != nil {
		r.engine.GET("/health", h.Health)
		r.engine.GET("/ready", h.Ready)
		r.engine.GET("/live", h.Live)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	RegisterV1Routes(r.engine.Group("/v1"), r.handlers, r.auth, r.generateRateLimit())
}

func (r *Router) generateRateLimit() gin.HandlerFunc {
	rl := r.cfg.Security.RateLimit
	return middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:  rl.Enabled,
		Limit:    rl.Limit,
		Window:   rl.Window,
		Endpoint: "generate",
	}, r.limiter, r.limitKey)
}
