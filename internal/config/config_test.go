package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.TargetRatio != 0.85 {
		t.Errorf("expected default target ratio 0.85, got %f", cfg.TargetRatio)
	}
	if cfg.MinRatio != 0.70 {
		t.Errorf("expected default min ratio 0.70, got %f", cfg.MinRatio)
	}
	if cfg.CounterIncrement != 1000 {
		t.Errorf("expected default counter increment 1000, got %d", cfg.CounterIncrement)
	}
	if cfg.MaxPriceTurns != 6 {
		t.Errorf("expected default max price turns 6, got %d", cfg.MaxPriceTurns)
	}
	if cfg.LLMTimeout != 8*time.Second {
		t.Errorf("expected default llm timeout 8s, got %s", cfg.LLMTimeout)
	}
	if cfg.StateBackend != "memory" {
		t.Errorf("expected default state backend memory, got %s", cfg.StateBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NEGOTIATION_TARGET_RATIO", "0.9")
	t.Setenv("NEGOTIATION_MAX_PRICE_TURNS", "4")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("NEGOTIATION_IDLE_EVICT_AFTER", "24h")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.TargetRatio != 0.9 {
		t.Errorf("expected target ratio 0.9, got %f", cfg.TargetRatio)
	}
	if cfg.MaxPriceTurns != 4 {
		t.Errorf("expected max price turns 4, got %d", cfg.MaxPriceTurns)
	}
	if cfg.UseMemoryQueue {
		t.Error("expected memory queue disabled")
	}
	if cfg.IdleEvictAfter != 24*time.Hour {
		t.Errorf("expected idle evict after 24h, got %s", cfg.IdleEvictAfter)
	}
}
