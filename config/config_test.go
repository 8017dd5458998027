package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ZoomLevel != 6 || cfg.PageSize != 40 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := &Config{ZoomLevel: 99, Spacing: -1, MaxResidentPages: 0, MaskAlpha: 7}
	_ = cfg.Validate()
	if cfg.ZoomLevel != 12 {
		t.Fatalf("zoom = %d", cfg.ZoomLevel)
	}
	if cfg.Spacing != 4 || cfg.MaxResidentPages != 2 || cfg.MaskAlpha != 0.45 {
		t.Fatalf("clamped config = %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ZoomLevel != DefaultConfig().ZoomLevel {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	want := DefaultConfig()
	want.ZoomLevel = 9
	want.PageSize = 12
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ZoomLevel != 9 || got.PageSize != 12 {
		t.Fatalf("loaded = %+v", got)
	}
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected JSON error")
	}
	if cfg == nil || cfg.ZoomLevel != DefaultConfig().ZoomLevel {
		t.Fatal("expected defaults on JSON error")
	}
}
