package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://dragonfly.vipyrsec.com" {
		t.Fatalf("base_url = %q", cfg.BaseURL)
	}
	if cfg.BulkSize != 20 || cfg.LoadDuration != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxScanSize != 128*1024*1024 {
		t.Fatalf("max_scan_size = %d, want 128MB", cfg.MaxScanSize)
	}
}

func TestLoadFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
base_url = "https://example.test"
bulk_size = 5
threads = 3
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://example.test" || cfg.BulkSize != 5 || cfg.Threads != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`base_url = "https://file.test"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DRAGONFLY_BASE_URL", "https://env-wins.test")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://env-wins.test" {
		t.Fatalf("base_url = %q, want env override", cfg.BaseURL)
	}
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`base_url = ""`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty base_url")
	}
}
