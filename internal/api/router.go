package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/figurine-hub/internal/config"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/middleware"
	"github.com/wfunc/figurine-hub/internal/service"
	"github.com/wfunc/figurine-hub/internal/websocket"
	"go.uber.org/zap"
)

// HealthChecker 依赖健康检查
type HealthChecker func(ctx context.Context) error

// Options 路由依赖
type Options struct {
	Services *service.Services
	Hub      *websocket.Hub
	Metrics  *metrics.Metrics
	Config   *config.Config
	// LockHealth 锁后端健康检查，内存锁时为 nil
	LockHealth HealthChecker
	Log        *zap.Logger
}

// Router API路由器
type Router struct {
	engine           *gin.Engine
	opts             Options
	figurineHandler  *FigurineHandler
	characterHandler *CharacterHandler
	wsHandler        *websocket.Handler
	authMiddleware   *middleware.AuthMiddleware
	log              *zap.Logger
}

var registerValidatorsOnce sync.Once

// NewRouter 创建路由器
func NewRouter(opts Options) *Router {
	log := opts.Log
	registerValidatorsOnce.Do(func() {
		if err := RegisterValidators(); err != nil {
			log.Error("注册参数校验规则失败", zap.Error(err))
		}
	})

	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log, opts.Metrics))
	engine.Use(middleware.CORS(opts.Config.Security.CORS.AllowOrigins))

	router := &Router{
		engine:           engine,
		opts:             opts,
		figurineHandler:  NewFigurineHandler(opts.Services.Figurine, log),
		characterHandler: NewCharacterHandler(opts.Services.Character, log),
		authMiddleware:   middleware.NewAuthMiddleware(opts.Services.Auth),
		log:              log,
	}
	if opts.Hub != nil {
		router.wsHandler = websocket.NewHandler(opts.Hub, opts.Config.Security.CORS.AllowOrigins, log.Named("websocket"))
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	if r.opts.Config.Metrics.Enabled && r.opts.Metrics != nil {
		path := r.opts.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(r.opts.Metrics.Handler()))
	}

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	bindHandlers := []gin.HandlerFunc{r.figurineHandler.Bind}
	if rl := r.opts.Config.Security.RateLimit; rl.Enabled {
		limiter := middleware.NewRateLimiter(rl.RequestsPerMinute, rl.Burst, r.log)
		bindHandlers = append([]gin.HandlerFunc{limiter.Middleware()}, bindHandlers...)
	}

	v1 := r.engine.Group("/api/v1")
	{
		// 公开的扫描接口
		v1.GET("/figurines/nfc/:nfcUid", r.figurineHandler.Scan)

		figurines := v1.Group("/figurines")
		figurines.Use(r.authMiddleware.RequireAuth())
		{
			figurines.POST("/bind", bindHandlers...)
			figurines.GET("", r.figurineHandler.List)
			figurines.GET("/:id", r.figurineHandler.Get)
			figurines.POST("/:id/link-character", r.figurineHandler.LinkCharacter)
			figurines.DELETE("/:id/unlink-character", r.figurineHandler.UnlinkCharacter)
			figurines.GET("/:id/audit", r.figurineHandler.AuditLog)
		}

		characters := v1.Group("/characters")
		characters.Use(r.authMiddleware.RequireAuth())
		{
			characters.GET("", r.characterHandler.List)
			characters.GET("/:id", r.characterHandler.Get)
		}
	}

	// WebSocket 推送，浏览器通过 ?token= 传递令牌
	if r.wsHandler != nil {
		r.engine.GET("/ws", r.authMiddleware.RequireAuth(), r.wsHandler.Serve)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	if err := r.opts.Services.Repos.Ping(ctx); err != nil {
		r.log.Warn("数据库健康检查失败", zap.Error(err))
		checks["database"] = err.Error()
		healthy = false
	}

	if r.opts.LockHealth != nil {
		checks["lock"] = "ok"
		if err := r.opts.LockHealth(ctx); err != nil {
			r.log.Warn("锁服务健康检查失败", zap.Error(err))
			checks["lock"] = err.Error()
			healthy = false
		}
	} else {
		checks["lock"] = "memory"
	}

	if r.opts.Hub != nil {
		checks["websocket_connections"] = r.opts.Hub.GetOnlineCount()
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": checks,
	})
}

// Handler 返回 http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
