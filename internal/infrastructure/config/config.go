package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	AI          AIConfig         `mapstructure:"ai"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Gemini      GeminiConfig     `mapstructure:"gemini"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Synthesis   SynthesisConfig  `mapstructure:"synthesis"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// AIConfig 生成服務共用設定
type AIConfig struct {
	Provider     string `mapstructure:"provider"` // openrouter | gemini
	MaxTokens    int    `mapstructure:"max_tokens"`
	Workers      int    `mapstructure:"workers"`
	MaxQueueSize int    `mapstructure:"max_queue_size"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Referer    string        `mapstructure:"referer"`
	Title      string        `mapstructure:"title"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// CacheConfig 生成結果快取配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DatabaseConfig 偏好資料庫設定
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite | postgres | memory
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

// SynthesisConfig 食譜合成流程設定
type SynthesisConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MaxRecipes     int           `mapstructure:"max_recipes"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	Temperature    float64       `mapstructure:"temperature"`
}

// TelemetryConfig OpenTelemetry 設定
type TelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Exporter    string            `mapstructure:"exporter"` // stdout | otlp
	Endpoint    string            `mapstructure:"endpoint"`
	Insecure    bool              `mapstructure:"insecure"`
	Headers     map[string]string `mapstructure:"headers"`
	SampleRatio float64           `mapstructure:"sample_ratio"`
}

// LoadConfig 載入設定：預設值 < .env < 環境變數
func LoadConfig() (*Config, error) {
	// .env 可有可無
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// bindEnvs 綁定常用的非前綴環境變數
func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("ai.provider", "AI_PROVIDER")
	_ = v.BindEnv("ai.max_tokens", "MODEL_MAX_TOKENS")
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.backend", "CACHE_BACKEND")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("synthesis.max_attempts", "SYNTHESIS_MAX_ATTEMPTS")
	_ = v.BindEnv("synthesis.gateway_timeout", "GATEWAY_TIMEOUT")
	_ = v.BindEnv("telemetry.enabled", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.sample_ratio", "OTEL_SAMPLER_RATIO")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_dir", "LOG_DIR")
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-synthesizer")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "200s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "180s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("ai.provider", "openrouter")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.workers", 5)
	v.SetDefault("ai.max_queue_size", 100)

	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.max_retries", 2)
	v.SetDefault("openrouter.referer", "https://recipe-synthesizer.local")
	v.SetDefault("openrouter.title", "Recipe Synthesizer")

	v.SetDefault("gemini.model", "gemini-1.5-flash-latest")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "recipe:gen:")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/preferences.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("synthesis.max_attempts", 3)
	v.SetDefault("synthesis.max_recipes", 5)
	v.SetDefault("synthesis.gateway_timeout", "45s")
	v.SetDefault("synthesis.temperature", 0.7)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.sample_ratio", 0.1)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.AI.Provider {
	case "openrouter", "gemini":
	default:
		return fmt.Errorf("unsupported ai provider %q", config.AI.Provider)
	}
	if config.AI.Workers <= 0 {
		return fmt.Errorf("invalid ai workers")
	}
	if config.AI.MaxQueueSize < 0 {
		return fmt.Errorf("invalid ai max queue size")
	}

	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case "redis":
			if config.Redis.Addr == "" {
				return fmt.Errorf("redis addr is required for redis cache")
			}
		default:
			return fmt.Errorf("unsupported cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	switch config.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if config.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for %s", config.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Synthesis.MaxAttempts <= 0 {
		return fmt.Errorf("synthesis max attempts must be positive")
	}
	if config.Synthesis.MaxRecipes <= 0 {
		return fmt.Errorf("synthesis max recipes must be positive")
	}
	if config.Synthesis.GatewayTimeout <= 0 {
		return fmt.Errorf("invalid gateway timeout")
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0,1]")
	}

	return nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
