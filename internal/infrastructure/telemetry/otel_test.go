package telemetry

import (
	"context"
	"testing"

	"recipe-synthesizer/internal/infrastructure/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.AppConfig{Name: "test"}, config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitStdoutExporter(t *testing.T) {
	shutdown, err := Init(context.Background(),
		config.AppConfig{Name: "recipe-synthesizer", Version: "test", Env: "test"},
		config.TelemetryConfig{Enabled: true, Exporter: "stdout", SampleRatio: 0},
	)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestClampRatio(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-1, 0},
		{0.25, 0.25},
		{3, 1},
	}
	for _, tt := range tests {
		if got := clampRatio(tt.in); got != tt.want {
			t.Fatalf("clampRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
