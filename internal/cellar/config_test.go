package cellar

import (
	"testing"
	"time"
)

func TestValidPourSize(t *testing.T) {
	cfg := DefaultConfig()

	for _, ml := range []int{30, 45, 60} {
		if !cfg.ValidPourSize(ml) {
			t.Errorf("expected %d ml to be a valid pour size", ml)
		}
	}
	for _, ml := range []int{0, -30, 25, 50, 100} {
		if cfg.ValidPourSize(ml) {
			t.Errorf("expected %d ml to be rejected", ml)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TokenTTL != 15*time.Minute {
		t.Errorf("expected 15m token TTL, got %v", cfg.TokenTTL)
	}
	if cfg.FreshnessWindow != 30*24*time.Hour {
		t.Errorf("expected 30-day freshness window, got %v", cfg.FreshnessWindow)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POUR_SIZES_ML", "25, 50")
	t.Setenv("TOKEN_TTL", "5m")
	t.Setenv("BOTTLE_FRESHNESS_WINDOW", "168h")

	cfg := ConfigFromEnv()

	if len(cfg.PourSizesML) != 2 || cfg.PourSizesML[0] != 25 || cfg.PourSizesML[1] != 50 {
		t.Errorf("expected pour sizes [25 50], got %v", cfg.PourSizesML)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Errorf("expected 5m token TTL, got %v", cfg.TokenTTL)
	}
	if cfg.FreshnessWindow != 168*time.Hour {
		t.Errorf("expected 168h freshness window, got %v", cfg.FreshnessWindow)
	}
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("POUR_SIZES_ML", "abc, -10, 0")
	t.Setenv("TOKEN_TTL", "not-a-duration")

	cfg := ConfigFromEnv()

	if len(cfg.PourSizesML) != 3 || cfg.PourSizesML[0] != 30 {
		t.Errorf("expected default pour sizes, got %v", cfg.PourSizesML)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Errorf("expected default token TTL, got %v", cfg.TokenTTL)
	}
}
