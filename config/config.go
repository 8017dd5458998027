// Package config holds runtime configuration for the rendering engine.
// Fields may be loaded from a JSON file and overridden by command-line
// flags.
package config

import (
	"encoding/json"
	"os"
)

// Config tunes the grid engine and renderer pool.
type Config struct {
	Debug bool `json:"debug"`

	// Grid layout
	ZoomLevel int     `json:"zoom_level"`
	Spacing   float64 `json:"spacing"`

	// Paging and memory
	MaxResidentPages  int   `json:"max_resident_pages"`
	MemoryBudgetBytes int64 `json:"memory_budget_bytes"`
	PageSize          int   `json:"page_size"`

	// Rendering
	MaskAlpha float64 `json:"mask_alpha"`
	FontSize  float64 `json:"font_size"`

	// Resize debounce in milliseconds.
	ResizeDebounceMillis int `json:"resize_debounce_millis"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                false,
		ZoomLevel:            6,
		Spacing:              4,
		MaxResidentPages:     8,
		MemoryBudgetBytes:    256 << 20,
		PageSize:             40,
		MaskAlpha:            0.45,
		FontSize:             12,
		ResizeDebounceMillis: 150,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.ZoomLevel < 1 {
		c.ZoomLevel = 1
	}
	if c.ZoomLevel > 12 {
		c.ZoomLevel = 12
	}
	if c.Spacing < 0 {
		c.Spacing = 4
	}
	if c.MaxResidentPages < 2 {
		c.MaxResidentPages = 2
	}
	if c.MemoryBudgetBytes <= 0 {
		c.MemoryBudgetBytes = 256 << 20
	}
	if c.PageSize < 1 {
		c.PageSize = 40
	}
	if c.MaskAlpha <= 0 || c.MaskAlpha > 1 {
		c.MaskAlpha = 0.45
	}
	if c.FontSize <= 0 {
		c.FontSize = 12
	}
	if c.ResizeDebounceMillis < 0 {
		c.ResizeDebounceMillis = 150
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func Save(path string, cfg *Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
