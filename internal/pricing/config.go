package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ratios holds the target/minimum settlement ratios applied to a listing price.
type Ratios struct {
	Target float64 `json:"target"`
	Min    float64 `json:"min"`
}

// Config controls how thresholds are derived and offers evaluated.
// Zero values fall back to the package defaults, so an empty Config is usable.
type Config struct {
	TargetRatio   float64
	MinRatio      float64
	Increment     int64
	MaxPriceTurns int

	// CategoryOverrides maps a category id to ratios that replace the
	// defaults for products in that category.
	CategoryOverrides map[string]Ratios
}

const (
	DefaultTargetRatio   = 0.85
	DefaultMinRatio      = 0.70
	DefaultIncrement     = 1000
	DefaultMaxPriceTurns = 6
)

// DefaultConfig returns the stock negotiation configuration.
func DefaultConfig() Config {
	return Config{
		TargetRatio:   DefaultTargetRatio,
		MinRatio:      DefaultMinRatio,
		Increment:     DefaultIncrement,
		MaxPriceTurns: DefaultMaxPriceTurns,
	}
}

// ParseCategoryOverrides decodes a JSON object of the form
// {"electronics": {"target": 0.9, "min": 0.75}} into override ratios.
func ParseCategoryOverrides(raw string) (map[string]Ratios, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	overrides := make(map[string]Ratios)
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("pricing: invalid category overrides: %w", err)
	}
	for category, r := range overrides {
		if r.Target <= 0 || r.Min <= 0 || r.Min > r.Target || r.Target > 1 {
			return nil, fmt.Errorf("pricing: invalid ratios for category %q", category)
		}
	}
	return overrides, nil
}

func (c Config) ratiosFor(categoryID string) Ratios {
	if r, ok := c.CategoryOverrides[categoryID]; ok {
		return r
	}
	target := c.TargetRatio
	if target <= 0 {
		target = DefaultTargetRatio
	}
	min := c.MinRatio
	if min <= 0 {
		min = DefaultMinRatio
	}
	return Ratios{Target: target, Min: min}
}

func (c Config) increment() int64 {
	if c.Increment <= 0 {
		return DefaultIncrement
	}
	return c.Increment
}

func (c Config) maxPriceTurns() int {
	if c.MaxPriceTurns <= 0 {
		return DefaultMaxPriceTurns
	}
	return c.MaxPriceTurns
}
