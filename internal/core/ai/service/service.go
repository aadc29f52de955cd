package service

import (
	"context"
	"errors"
	"time"

	"recipe-synthesizer/internal/core/ai/cache"
	"recipe-synthesizer/internal/core/ai/provider"
	"recipe-synthesizer/internal/core/ai/queue"
	"recipe-synthesizer/internal/pkg/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 45 * time.Second

// Prompt 一次生成請求的內容
type Prompt struct {
	System      string
	User        string
	Temperature float64
	Attempt     int
}

// Options 生成服務選項，Cache 與 Queue 可為 nil
type Options struct {
	Cache     cache.Store
	Queue     *queue.Manager
	Timeout   time.Duration
	MaxTokens int
}

// Service 生成服務閘道：有上限的逾時、錯誤分類、快取與相同請求合併
type Service struct {
	provider  provider.Provider
	cache     cache.Store
	queue     *queue.Manager
	timeout   time.Duration
	maxTokens int
	group     singleflight.Group
	tracer    trace.Tracer
}

// NewService 創建生成服務
func NewService(p provider.Provider, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Service{
		provider:  p,
		cache:     opts.Cache,
		queue:     opts.Queue,
		timeout:   opts.Timeout,
		maxTokens: opts.MaxTokens,
		tracer:    otel.Tracer("recipe-synthesizer/ai"),
	}
}

// Model 目前使用的模型
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// Generate 送出 prompt 並回傳原始文字。失敗時回傳 *Error（ErrTimeout、ErrUnavailable、ErrRateLimited），
// 呼叫端 context 取消時直接回傳 ctx.Err()
func (s *Service) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, span := s.tracer.Start(ctx, "ai.generate", trace.WithAttributes(
		attribute.String("ai.model", s.Model()),
		attribute.Int("ai.attempt", p.Attempt),
		attribute.Float64("ai.temperature", p.Temperature),
	))
	defer span.End()

	key := cache.Key(s.Model(), p.System, p.User, p.Temperature)
	if s.cache != nil {
		val, err := s.cache.Get(ctx, key)
		if err == nil {
			span.SetAttributes(attribute.Bool("ai.cache_hit", true))
			common.LogDebug("快取命中", zap.Int("attempt", p.Attempt))
			return val, nil
		}
		if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("快取讀取失敗", zap.Error(err))
		}
	}

	// 上游呼叫與呼叫端生命週期脫鉤：取消的呼叫端立即返回，
	// 其他合併中的呼叫端仍可取得結果
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.call(detached, key, p)
	})

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller canceled")
		return "", ctx.Err()
	case res := <-ch:
		span.SetAttributes(attribute.Bool("ai.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Service) call(ctx context.Context, key string, p Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if s.queue != nil {
		release, err := s.queue.Acquire(callCtx)
		if err != nil {
			gerr := classify(callCtx, err)
			common.LogGatewayCall(s.Model(), p.Attempt, time.Since(start), gerr)
			return "", gerr
		}
		defer release()
	}

	resp, err := s.provider.Generate(callCtx, &provider.Request{
		System:      p.System,
		Messages:    []provider.Message{{Role: "user", Content: p.User}},
		MaxTokens:   s.maxTokens,
		Temperature: p.Temperature,
		JSONOutput:  true,
	})
	if err != nil {
		gerr := classify(callCtx, err)
		common.LogGatewayCall(s.Model(), p.Attempt, time.Since(start), gerr)
		return "", gerr
	}
	common.LogGatewayCall(s.Model(), p.Attempt, time.Since(start), nil)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			common.LogWarn("快取寫入失敗", zap.Error(err))
		}
	}
	return resp.Content, nil
}

// QueueStatus 回傳隊列狀態，未啟用時為 nil
func (s *Service) QueueStatus() *queue.Status {
	if s.queue == nil {
		return nil
	}
	return s.queue.GetQueueStatus()
}

// Close 關閉提供者與快取
func (s *Service) Close() error {
	var errs []error
	if s.queue != nil {
		s.queue.Close()
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	errs = append(errs, s.provider.Close())
	return errors.Join(errs...)
}
