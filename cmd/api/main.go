package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"recipe-synthesizer/internal/api"
	"recipe-synthesizer/internal/api/handlers/health"
	"recipe-synthesizer/internal/api/middleware"
	"recipe-synthesizer/internal/core/ai/cache"
	"recipe-synthesizer/internal/core/ai/gemini"
	"recipe-synthesizer/internal/core/ai/openrouter"
	"recipe-synthesizer/internal/core/ai/provider"
	"recipe-synthesizer/internal/core/ai/queue"
	"recipe-synthesizer/internal/core/ai/service"
	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/core/recipe"
	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/infrastructure/database"
	"recipe-synthesizer/internal/infrastructure/telemetry"
	"recipe-synthesizer/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir, cfg.App.Name); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("provider", cfg.AI.Provider),
		zap.String("openrouter_api_key", cfg.OpenRouter.APIKey),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		common.LogFatal("Failed to initialize telemetry", zap.Error(err))
	}

	// 偏好資料庫
	var db *gorm.DB
	if !strings.EqualFold(cfg.Database.Driver, "memory") {
		db, err = database.Open(cfg.Database)
		if err != nil {
			common.LogFatal("Failed to open database", zap.Error(err))
		}
	}
	repo := database.NewPreferenceRepository(db)
	store := preference.NewStore(repo)

	// 初始化快取
	cacheStore, cacheStats, err := newCache(ctx, cfg)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}

	// 生成服務
	p, err := newProvider(ctx, cfg)
	if err != nil {
		common.LogFatal("Failed to initialize AI provider", zap.Error(err))
	}
	gateway := service.NewService(p, service.Options{
		Cache:     cacheStore,
		Queue:     queue.NewManager(cfg.AI.Workers, cfg.AI.MaxQueueSize),
		Timeout:   cfg.Synthesis.GatewayTimeout,
		MaxTokens: cfg.AI.MaxTokens,
	})

	suggestions := recipe.NewSuggestionService(gateway, store, recipe.SuggestionOptions{
		MaxAttempts: cfg.Synthesis.MaxAttempts,
		MaxRecipes:  cfg.Synthesis.MaxRecipes,
		Temperature: cfg.Synthesis.Temperature,
	})

	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	defer dedup.Close()

	svcs := api.Services{
		Preferences: store,
		Suggester:   suggestions,
		Gateway:     gateway,
		Dedup:       dedup,
	}
	if cacheStats != nil {
		svcs.Cache = cacheStats
	}
	var pingers health.Pingers
	if pinger, ok := repo.(health.Pinger); ok {
		pingers = append(pingers, pinger)
	}
	if pinger, ok := cacheStore.(health.Pinger); ok {
		pingers = append(pingers, pinger)
	}
	if len(pingers) > 0 {
		svcs.Pinger = pingers
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, svcs)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.String("model", gateway.Model()),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}
	if err := gateway.Close(); err != nil {
		common.LogWarn("關閉生成服務失敗", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		common.LogWarn("關閉資料庫失敗", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		common.LogWarn("關閉 telemetry 失敗", zap.Error(err))
	}

	common.LogInfo("Server exited")
}

// newCache 依設定建立回應快取，停用時回傳 nil。快取由生成服務關閉
func newCache(ctx context.Context, cfg *config.Config) (cache.Store, health.CacheStats, error) {
	if !cfg.Cache.Enabled {
		return nil, nil, nil
	}
	if strings.EqualFold(cfg.Cache.Backend, "redis") {
		rs, err := cache.NewService(ctx, cfg.Redis, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, nil, nil
	}
	m := cache.NewManager(cfg.Cache)
	return m, m, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch strings.ToLower(cfg.AI.Provider) {
	case "gemini":
		client, err := gemini.NewClient(ctx, provider.Config{
			APIKey:    cfg.Gemini.APIKey,
			Model:     cfg.Gemini.Model,
			MaxTokens: cfg.AI.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return openrouter.NewClient(provider.Config{
			APIKey:     cfg.OpenRouter.APIKey,
			Model:      cfg.OpenRouter.Model,
			BaseURL:    cfg.OpenRouter.BaseURL,
			Timeout:    cfg.OpenRouter.Timeout,
			MaxRetries: cfg.OpenRouter.MaxRetries,
			MaxTokens:  cfg.AI.MaxTokens,
			Referer:    cfg.OpenRouter.Referer,
			Title:      cfg.OpenRouter.Title,
		}), nil
	}
}
