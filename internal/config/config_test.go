package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	empty := &AppConfig{}

	// Defaults and nil-field fallbacks must agree.
	if cfg.GetDBPath() != empty.GetDBPath() {
		t.Errorf("GetDBPath() = %q, empty = %q", cfg.GetDBPath(), empty.GetDBPath())
	}
	if cfg.GetListen() != empty.GetListen() {
		t.Errorf("GetListen() = %q, empty = %q", cfg.GetListen(), empty.GetListen())
	}
	if cfg.GetShutdownTimeout() != empty.GetShutdownTimeout() {
		t.Errorf("GetShutdownTimeout() = %v, empty = %v", cfg.GetShutdownTimeout(), empty.GetShutdownTimeout())
	}
	if cfg.GetChartFormat() != "png" || empty.GetChartFormat() != "png" {
		t.Errorf("GetChartFormat() = %q, want png", cfg.GetChartFormat())
	}
	if cfg.GetTopConfusing() != 10 || empty.GetTopConfusing() != 10 {
		t.Errorf("GetTopConfusing() = %d, want 10", cfg.GetTopConfusing())
	}
	if !cfg.GetWritePDF() || !empty.GetWritePDF() {
		t.Error("GetWritePDF() should default to true")
	}
	if cfg.GetEnableDebug() || empty.GetEnableDebug() {
		t.Error("GetEnableDebug() should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultAppConfig(), cfg); diff != "" {
		t.Errorf("%s out of sync with DefaultAppConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadAppConfig(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "db_path": "/var/lib/inspection/rr.db",
  "chart_format": "svg",
  "top_confusing": 3,
  "shutdown_timeout": "250ms",
  "write_csv": false
}`)

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}
	if got := cfg.GetDBPath(); got != "/var/lib/inspection/rr.db" {
		t.Errorf("GetDBPath() = %q", got)
	}
	if got := cfg.GetChartFormat(); got != "svg" {
		t.Errorf("GetChartFormat() = %q", got)
	}
	if got := cfg.GetTopConfusing(); got != 3 {
		t.Errorf("GetTopConfusing() = %d", got)
	}
	if got := cfg.GetShutdownTimeout(); got != 250*time.Millisecond {
		t.Errorf("GetShutdownTimeout() = %v", got)
	}
	if cfg.GetWriteCSV() {
		t.Error("GetWriteCSV() should be false")
	}
	// Omitted fields fall back to defaults.
	if got := cfg.GetListen(); got != ":8080" {
		t.Errorf("GetListen() = %q", got)
	}
	if got := cfg.GetChartWidthCm(); got != 16 {
		t.Errorf("GetChartWidthCm() = %f", got)
	}
}

func TestLoadAppConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"listen":`, "parse"},
		{"bad format", "fmt.json", `{"chart_format":"gif"}`, "chart_format"},
		{"negative top", "top.json", `{"top_confusing":-1}`, "top_confusing"},
		{"zero width", "w.json", `{"chart_width_cm":0}`, "chart_width_cm"},
		{"bad duration", "d.json", `{"shutdown_timeout":"soon"}`, "shutdown_timeout"},
		{"empty db path", "db.json", `{"db_path":""}`, "db_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadAppConfig(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadAppConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadAppConfig_TooLarge(t *testing.T) {
	body := `{"listen":"` + strings.Repeat("x", 1024*1024) + `"}`
	path := writeConfig(t, "big.json", body)
	if _, err := LoadAppConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}
