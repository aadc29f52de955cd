package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-synthesizer/internal/core/ai/queue"
	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 路由中間件注入的 context 鍵
const (
	KeyConfig  = "config"
	KeyGateway = "gateway"
	KeyCache   = "cache_stats"
	KeyPinger  = "pinger"
)

const readyTimeout = 2 * time.Second

// GatewayStatus 生成閘道狀態
type GatewayStatus interface {
	Model() string
	QueueStatus() *queue.Status
}

// CacheStats 快取統計
type CacheStats interface {
	GetStats() map[string]interface{}
}

// Pinger 依賴服務的連線檢查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pingers 依序檢查多個依賴，回傳第一個錯誤
type Pingers []Pinger

func (ps Pingers) Ping(ctx context.Context) error {
	for _, p := range ps {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model,omitempty"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	cfg, ok := c.MustGet(KeyConfig).(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, common.ErrInternalError.Response(false))
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if gw, ok := c.Get(KeyGateway); ok {
		if status, ok := gw.(GatewayStatus); ok {
			response.Model = status.Model()
			response.Queue = status.QueueStatus()
		}
	}
	if cs, ok := c.Get(KeyCache); ok {
		if stats, ok := cs.(CacheStats); ok {
			response.Cache = stats.GetStats()
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)
	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：偏好資料庫與 redis 快取可連線
func ReadinessCheck(c *gin.Context) {
	v, ok := c.Get(KeyPinger)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	pinger, ok := v.(Pinger)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		common.LogWarn("就緒檢查失敗", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  common.ErrServiceUnavailable.Response(false),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
