package api

import (
	"errors"
	"time"

	"recipe-synthesizer/internal/api/handlers"
	"recipe-synthesizer/internal/api/handlers/health"
	preferenceHandler "recipe-synthesizer/internal/api/handlers/preference"
	recipeHandler "recipe-synthesizer/internal/api/handlers/recipe"
	"recipe-synthesizer/internal/api/middleware"
	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 1 << 20

// Services 路由需要的服務。Gateway、Cache、Pinger、Dedup 可為 nil
type Services struct {
	Preferences *preference.Store
	Suggester   recipeHandler.Suggester
	Gateway     health.GatewayStatus
	Cache       health.CacheStats
	Pinger      health.Pinger
	Dedup       *middleware.Deduplicator
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, svcs Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if svcs.Preferences == nil || svcs.Suggester == nil {
		common.LogError("Failed to setup router: missing services",
			zap.Bool("preferences", svcs.Preferences != nil),
			zap.Bool("suggester", svcs.Suggester != nil),
		)
		return nil, errors.New("preference store and suggester are required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	maxBody := cfg.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(otelgin.Middleware(cfg.App.Name))
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBody))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// 注入設定與健康檢查用的依賴
	router.Use(func(c *gin.Context) {
		c.Set(health.KeyConfig, cfg)
		c.Set(handlers.ContextKeyDebug, cfg.App.Debug)
		if svcs.Gateway != nil {
			c.Set(health.KeyGateway, svcs.Gateway)
		}
		if svcs.Cache != nil {
			c.Set(health.KeyCache, svcs.Cache)
		}
		if svcs.Pinger != nil {
			c.Set(health.KeyPinger, svcs.Pinger)
		}
		c.Next()
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	recipes := recipeHandler.NewHandler(svcs.Suggester)
	prefs := preferenceHandler.NewHandler(svcs.Preferences)

	api := router.Group("/api/v1")
	{
		recipeGroup := api.Group("/recipes")
		if svcs.Dedup != nil {
			recipeGroup.Use(svcs.Dedup.Handler())
		}
		recipeGroup.POST("/suggest", recipes.HandleSuggest)

		prefGroup := api.Group("/users/:user_id/preferences")
		{
			prefGroup.GET("", prefs.List)
			prefGroup.POST("", prefs.Upsert)
			prefGroup.PUT("", prefs.UpsertBatch)
			prefGroup.DELETE("", prefs.Clear)
			prefGroup.DELETE("/:ingredient", prefs.Remove)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", maxBody),
		zap.Bool("dedup", svcs.Dedup != nil),
	)

	return router, nil
}
