package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"recipe-synthesizer/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 等待中的請求已達上限
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列管理器已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	Active         int `json:"active"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 限制同時進行的生成請求數；超過 workers 的請求排隊等待，
// 排隊數超過 maxSize 時直接拒絕。maxSize <= 0 表示不限排隊數
type Manager struct {
	slots     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   int
	maxSize   int
	waiting   int64
	processed int64
}

// NewManager 創建新的隊列管理器
func NewManager(workers, maxSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		slots:   make(chan struct{}, workers),
		done:    make(chan struct{}),
		workers: workers,
		maxSize: maxSize,
	}
}

// Acquire 取得執行名額，回傳的 release 必須呼叫且只會生效一次
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	select {
	case m.slots <- struct{}{}:
		return m.releaser(), nil
	default:
	}

	n := atomic.AddInt64(&m.waiting, 1)
	defer atomic.AddInt64(&m.waiting, -1)
	if m.maxSize > 0 && int(n) > m.maxSize {
		common.LogWarn("Request queue full",
			zap.Int("queue_length", int(n-1)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return nil, ErrQueueFull
	}

	select {
	case m.slots <- struct{}{}:
		return m.releaser(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

func (m *Manager) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.slots
			atomic.AddInt64(&m.processed, 1)
		})
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    int(atomic.LoadInt64(&m.waiting)),
		Active:         len(m.slots),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 關閉隊列管理器，等待中的請求會收到 ErrClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
