package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Synthesis.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.Synthesis.MaxAttempts)
	}
	if cfg.Synthesis.MaxRecipes != 5 {
		t.Fatalf("max recipes = %d, want 5", cfg.Synthesis.MaxRecipes)
	}
	if cfg.Synthesis.GatewayTimeout != 45*time.Second {
		t.Fatalf("gateway timeout = %s", cfg.Synthesis.GatewayTimeout)
	}
	if cfg.AI.Provider != "openrouter" || cfg.Database.Driver != "sqlite" || cfg.Cache.Backend != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("APP_SYNTHESIS_MAX_ATTEMPTS", "4")
	t.Setenv("GATEWAY_TIMEOUT", "10s")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-1234567890")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Synthesis.MaxAttempts != 4 {
		t.Fatalf("max attempts = %d, want 4", cfg.Synthesis.MaxAttempts)
	}
	if cfg.Synthesis.GatewayTimeout != 10*time.Second {
		t.Fatalf("gateway timeout = %s", cfg.Synthesis.GatewayTimeout)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.OpenRouter.APIKey != "sk-or-1234567890" {
		t.Fatalf("api key not bound")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"provider", "AI_PROVIDER", "llama", "unsupported ai provider"},
		{"driver", "DB_DRIVER", "mysql", "unsupported database driver"},
		{"attempts", "SYNTHESIS_MAX_ATTEMPTS", "0", "max attempts"},
		{"cache backend", "CACHE_BACKEND", "memcached", "unsupported cache backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey("short"); got != "****" {
		t.Fatalf("got %q", got)
	}
	if got := MaskAPIKey("sk-or-abcdefgh"); got != "sk-o...efgh" {
		t.Fatalf("got %q", got)
	}
}
