package cellar

import (
	"strconv"
	"strings"
	"time"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/config"
)

// Config carries the redemption policy knobs. They are passed in
// explicitly so tests can tighten windows without touching globals.
type Config struct {
	// PourSizesML is the fixed enumeration of allowed pour sizes.
	PourSizesML []int

	// TokenTTL is how long an issued QR token stays settleable.
	TokenTTL time.Duration

	// FreshnessWindow is how long after acquisition a bottle remains
	// eligible for new tokens. Stored volume is unaffected by expiry.
	FreshnessWindow time.Duration
}

// DefaultConfig returns the production redemption policy.
func DefaultConfig() Config {
	return Config{
		PourSizesML:     []int{30, 45, 60},
		TokenTTL:        15 * time.Minute,
		FreshnessWindow: 30 * 24 * time.Hour,
	}
}

// ConfigFromEnv builds a Config from the environment, falling back to
// defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if raw := config.GetEnv("POUR_SIZES_ML", ""); raw != "" {
		var sizes []int
		for _, part := range strings.Split(raw, ",") {
			if ml, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && ml > 0 {
				sizes = append(sizes, ml)
			}
		}
		if len(sizes) > 0 {
			cfg.PourSizesML = sizes
		}
	}

	cfg.TokenTTL = config.GetEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.FreshnessWindow = config.GetEnvDuration("BOTTLE_FRESHNESS_WINDOW", cfg.FreshnessWindow)

	return cfg
}

// ValidPourSize reports whether ml is in the allowed enumeration.
func (c Config) ValidPourSize(ml int) bool {
	for _, size := range c.PourSizesML {
		if size == ml {
			return true
		}
	}
	return false
}
