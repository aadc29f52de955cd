package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/pkg/common"
)

func newTestManager(maxSize int, ttl time.Duration) *CacheManager {
	return NewManager(config.CacheConfig{Enabled: true, MaxSize: maxSize, TTL: ttl})
}

func TestManagerGetSet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(10, time.Hour)
	defer m.Close()

	if _, err := m.Get(ctx, "k"); !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("err = %v, want miss", err)
	}
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	stats := m.GetStats()
	if stats["hits"].(int64) != 1 || stats["misses"].(int64) != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestManagerExpiry(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(10, time.Minute)
	defer m.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("expired entry returned, err = %v", err)
	}
}

func TestManagerEvictsLeastUsed(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(2, time.Hour)
	defer m.Close()

	_ = m.Set(ctx, "a", "1")
	_ = m.Set(ctx, "b", "2")
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "c", "3"); err != nil {
		t.Fatalf("Set c: %v", err)
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("b should be evicted, err = %v", err)
	}
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestKeyIsStable(t *testing.T) {
	a := Key("m", "sys", "prompt", 0.7)
	if a != Key("m", "sys", "prompt", 0.7) {
		t.Fatalf("key not deterministic")
	}
	if a == Key("m", "sys", "prompt", 0.8) || a == Key("m2", "sys", "prompt", 0.7) {
		t.Fatalf("key should change with model and temperature")
	}
}

func TestRedisService(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis cache tests")
	}
	ctx := context.Background()
	s, err := NewService(ctx, config.RedisConfig{Addr: addr, KeyPrefix: "test:recipe:"}, time.Minute)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	key := Key("m", "", t.Name(), 0)
	if _, err := s.Get(ctx, key); !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("err = %v, want miss", err)
	}
	if err := s.Set(ctx, key, "hello"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || got != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}
