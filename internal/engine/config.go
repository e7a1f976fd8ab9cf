package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the static constants table consumed by rule evaluation and
// recommendation building. It is immutable once constructed; share one
// value across concurrent evaluations.
type Config struct {
	Currency string `json:"currency"`

	PersonaMinSavings   map[string]float64 `json:"persona_min_savings"`
	VolatilityThreshold map[string]float64 `json:"volatility_threshold"`
	EmergencyFundMonths map[string]float64 `json:"emergency_fund_months"`
	BufferMonthsWarning map[string]float64 `json:"buffer_months_warning"`

	StabilityThresholds     map[string]float64 `json:"stability_thresholds"`
	OverspendBands          map[string]float64 `json:"overspend_bands"`
	DiscretionaryRatioBands map[string]float64 `json:"discretionary_ratio_bands"`
	DeficitBands            map[string]float64 `json:"deficit_bands"`
	CategoryThresholds      map[string]float64 `json:"category_thresholds"`

	RentThreshold            float64 `json:"rent_threshold"`
	ForecastSurplusThreshold float64 `json:"forecast_surplus_threshold"`
	ForecastConfidenceMin    float64 `json:"forecast_confidence_min"`

	// DiscretionaryCategories classifies spend categories that reduction
	// advice may target freely. EssentialMinCaps are per-category floors,
	// as a fraction of current spend, that recommendations never cut below.
	DiscretionaryCategories []string           `json:"discretionary_categories"`
	EssentialMinCaps        map[string]float64 `json:"essential_min_caps"`
}

// DefaultConfig returns the built-in constants table.
func DefaultConfig() Config {
	return Config{
		Currency: "₹",
		PersonaMinSavings: map[string]float64{
			"gig_worker": 0.25,
			"salaried":   0.20,
			"default":    0.20,
		},
		VolatilityThreshold: map[string]float64{
			"gig_worker": 0.30,
			"salaried":   0.20,
			"default":    0.25,
		},
		EmergencyFundMonths: map[string]float64{
			"gig_worker": 6,
			"salaried":   3,
			"default":    3,
		},
		BufferMonthsWarning: map[string]float64{
			"gig_worker": 4,
			"salaried":   2,
			"default":    2,
		},
		StabilityThresholds:     map[string]float64{"low": 0.8, "high": 0.6},
		OverspendBands:          map[string]float64{"low": 0.10, "med": 0.20, "high": 0.35},
		DiscretionaryRatioBands: map[string]float64{"low": 0.25, "med": 0.35},
		DeficitBands:            map[string]float64{"low": 0.05, "med": 0.15},
		CategoryThresholds: map[string]float64{
			"food":          0.30,
			"transport":     0.20,
			"entertainment": 0.15,
			"utilities":     0.12,
		},
		RentThreshold:            0.35,
		ForecastSurplusThreshold: 0.10,
		ForecastConfidenceMin:    0.70,
		DiscretionaryCategories:  []string{"Entertainment", "Leisure", "Eating Out", "Shopping"},
		EssentialMinCaps:         map[string]float64{"Utilities": 0.9, "Health": 0.9},
	}
}

// LoadConfig overlays the JSON file at path onto the defaults. Maps
// present in the file replace the default table wholesale; absent
// fields keep their defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse engine config: %w", err)
	}
	return cfg, nil
}

// PersonaValue looks persona up in a threshold table, falling back to
// the "default" bucket for unknown or empty personas.
func PersonaValue(table map[string]float64, persona string) float64 {
	if v, ok := table[persona]; ok {
		return v
	}
	return table["default"]
}
