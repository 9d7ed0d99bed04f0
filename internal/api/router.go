package api

import (
	"context"
	"net/http"
	"time"

	"recipe-normalizer/internal/api/handlers/health"
	recipeHandler "recipe-normalizer/internal/api/handlers/recipe"
	"recipe-normalizer/internal/api/middleware"
	"recipe-normalizer/internal/core/cache"
	"recipe-normalizer/internal/core/ingredient"
	"recipe-normalizer/internal/core/queue"
	recipeService "recipe-normalizer/internal/core/recipe"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// timeoutDuration 單一請求的處理時限
const timeoutDuration = 30 * time.Second

// Dependencies 路由需要的服務
type Dependencies struct {
	Service *recipeService.Service
	Queue   *queue.Manager
	Cache   cache.Store
	Parser  *ingredient.Parser
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	if cfg.RateLimit.Enabled && cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window > 0 {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// 設置超時並注入服務
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set(health.ConfigKey, cfg)
		c.Set(health.QueueKey, deps.Queue)
		c.Set(health.CacheKey, deps.Cache)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrGatewayTimeout.Response(false))
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	handler := recipeHandler.NewHandler(deps.Service, deps.Queue, deps.Parser, cfg.Queue.Workers, cfg.App.Debug)

	api := router.Group("/api/v1")
	api.Use(middleware.Deduplication(cfg))
	{
		recipeGroup := api.Group("/recipe")
		{
			recipeGroup.POST("/parse", handler.HandleParse)
			recipeGroup.POST("/parse/batch", handler.HandleParseBatch)
			recipeGroup.POST("/render", handler.HandleRender)
			recipeGroup.POST("/ingredient", handler.HandleIngredient)
		}
	}

	common.LogInfo("Router setup completed",
		zap.Bool("cache_enabled", deps.Cache != nil),
		zap.Bool("queue_enabled", deps.Queue != nil),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router
}
