package config

import (
	"path/filepath"
	"testing"
)

func TestLoadLedgerConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_DATA_DIR", dir)
	t.Setenv("LEDGER_ARCHIVE_DIR", "")
	t.Setenv("LEDGER_HOST", "till-1")
	t.Setenv("LEDGER_MAX_LOADED_ARCHIVES", "")
	t.Setenv("API_PORT", "")
	t.Setenv("PORT", "")

	cfg, err := LoadLedgerConfig()
	if err != nil {
		t.Fatalf("LoadLedgerConfig: %v", err)
	}
	if cfg.ArchiveDir != filepath.Join(dir, "archive") {
		t.Fatalf("expected default archive dir, got %q", cfg.ArchiveDir)
	}
	if cfg.MaxLoadedArchives != 8 {
		t.Fatalf("expected 8 loaded archives, got %d", cfg.MaxLoadedArchives)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.Host != "till-1" {
		t.Fatalf("expected host till-1, got %q", cfg.Host)
	}
}

func TestLoadLedgerConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing data dir", map[string]string{"LEDGER_DATA_DIR": ""}},
		{"zero loaded archives", map[string]string{"LEDGER_DATA_DIR": "/tmp/x", "LEDGER_MAX_LOADED_ARCHIVES": "0"}},
		{"non numeric port", map[string]string{"LEDGER_DATA_DIR": "/tmp/x", "API_PORT": "http"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LEDGER_HOST", "till-1")
			t.Setenv("LEDGER_MAX_LOADED_ARCHIVES", "")
			t.Setenv("API_PORT", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadLedgerConfig(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("LEDGER_COLD_STORAGE_ENABLED", "Yes")
	t.Setenv("LEDGER_CATALOG_ENABLED", "0")
	if !ColdStorageEnabled() {
		t.Fatalf("expected cold storage enabled")
	}
	if CatalogEnabled() {
		t.Fatalf("expected catalog disabled")
	}
}
