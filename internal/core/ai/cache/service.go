package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*Service)(nil)

// Service Redis 快取，多個實例共用生成結果
type Service struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewService 連線 Redis 並確認可用
func NewService(ctx context.Context, rc config.RedisConfig, ttl time.Duration) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{
		client: client,
		prefix: rc.KeyPrefix,
		ttl:    ttl,
	}, nil
}

// Get 獲取快取
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", common.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache: %w", err)
	}
	return val, nil
}

// Set 設置快取
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Ping 檢查 Redis 連線
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 關閉 Redis 連線
func (s *Service) Close() error {
	return s.client.Close()
}
