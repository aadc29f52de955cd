package middleware

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-synthesizer/internal/pkg/common"
)

const (
	defaultDedupWindow   = time.Second
	dedupCleanupInterval = 10 * time.Minute
)

// Deduplicator 在時間窗內拒絕內容完全相同的重複 POST 請求
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	requests map[string]time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewDeduplicator 創建去重器並啟動背景清理
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	d := &Deduplicator{
		window:   window,
		now:      time.Now,
		requests: make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	go d.cleanupLoop()
	return d
}

func (d *Deduplicator) cleanupLoop() {
	ticker := time.NewTicker(dedupCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

func (d *Deduplicator) cleanup() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, t := range d.requests {
		if now.Sub(t) > d.window {
			delete(d.requests, k)
		}
	}
}

// Close 停止背景清理
func (d *Deduplicator) Close() {
	d.stopOnce.Do(func() { close(d.done) })
}

// Handler 去重中間件，只處理 POST
func (d *Deduplicator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != "POST" {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.Next()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		fingerprint := c.Request.Method + ":" + c.Request.URL.Path + ":" + common.HashString(string(body))

		now := d.now()
		d.mu.Lock()
		if last, ok := d.requests[fingerprint]; ok && now.Sub(last) <= d.window {
			d.mu.Unlock()
			common.LogWarn("重複請求", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(common.ErrTooManyRequests.Status, common.ErrTooManyRequests.Response(false))
			return
		}
		d.requests[fingerprint] = now
		d.mu.Unlock()

		c.Next()
	}
}
