package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadFileAndApply(t *testing.T) {
	content := `
telemetry_dsn: clickhouse://localhost:9440/telemetry
lookback: 14d
query_timeout: 2m
format: text
exclude_warehouses:
  - "wh-probe*"
exclude_users:
  - svc-monitor
min_impact_pct: 5
score_gate: 80
serverless_unit_cost: 0.7
flags:
  high_spill_bytes: 2147483648
sizing:
  sustained_days: 4
`
	path := writeConfigFile(t, t.TempDir(), "warelens.yaml", content)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	cfg := DefaultConfig()
	if err := fc.Apply(cfg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if cfg.TelemetryDSN != "clickhouse://localhost:9440/telemetry" {
		t.Fatalf("unexpected DSN: %q", cfg.TelemetryDSN)
	}
	if cfg.LookbackPeriod != 14*24*time.Hour {
		t.Fatalf("lookback = %v, want 14d", cfg.LookbackPeriod)
	}
	if cfg.QueryTimeout != 2*time.Minute {
		t.Fatalf("query timeout = %v, want 2m", cfg.QueryTimeout)
	}
	if cfg.Format != "text" {
		t.Fatalf("format = %q, want text", cfg.Format)
	}
	if len(cfg.ExcludeWarehouses) != 1 || cfg.ExcludeWarehouses[0] != "wh-probe*" {
		t.Fatalf("exclude warehouses = %v", cfg.ExcludeWarehouses)
	}
	if cfg.MinImpactPct != 5 || cfg.ScoreGate != 80 {
		t.Fatalf("analysis settings = %v/%d", cfg.MinImpactPct, cfg.ScoreGate)
	}
	if cfg.ServerlessUnitCost != 0.7 {
		t.Fatalf("serverless unit cost = %v, want 0.7", cfg.ServerlessUnitCost)
	}

	// Overridden threshold sticks; unset siblings keep defaults.
	if cfg.Flags.HighSpillBytes != 2<<30 {
		t.Fatalf("HighSpillBytes = %d, want 2 GiB", cfg.Flags.HighSpillBytes)
	}
	if cfg.Flags.LongRunningP95Ms != DefaultFlagThresholds().LongRunningP95Ms {
		t.Fatalf("LongRunningP95Ms = %d, want default", cfg.Flags.LongRunningP95Ms)
	}
	if cfg.Sizing.SustainedDays != 4 {
		t.Fatalf("SustainedDays = %d, want 4", cfg.Sizing.SustainedDays)
	}
	if cfg.Sizing.MaxClusterCap != DefaultSizingThresholds().MaxClusterCap {
		t.Fatalf("MaxClusterCap = %d, want default", cfg.Sizing.MaxClusterCap)
	}
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "bad.yaml", "telemetry_dsn: [unclosed")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestApplyRejectsBadDurations(t *testing.T) {
	fc := &FileConfig{Lookback: "nope"}
	if err := fc.Apply(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "invalid lookback") {
		t.Fatalf("expected lookback error, got %v", err)
	}

	fc = &FileConfig{QueryTimeout: "nope"}
	if err := fc.Apply(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "invalid query_timeout") {
		t.Fatalf("expected query_timeout error, got %v", err)
	}
}

func TestLoadFirstExistingFile(t *testing.T) {
	dir := t.TempDir()
	second := writeConfigFile(t, dir, "second.yaml", "format: text\n")

	fc, path, err := LoadFirstExistingFile([]string{
		filepath.Join(dir, "missing.yaml"),
		second,
	})
	if err != nil {
		t.Fatalf("LoadFirstExistingFile failed: %v", err)
	}
	if path != second {
		t.Fatalf("loaded path = %q, want %q", path, second)
	}
	if fc == nil || fc.Format != "text" {
		t.Fatalf("unexpected file config: %+v", fc)
	}

	fc, path, err = LoadFirstExistingFile([]string{filepath.Join(dir, "missing.yaml")})
	if err != nil || fc != nil || path != "" {
		t.Fatalf("expected nil result for no existing files, got %+v/%q/%v", fc, path, err)
	}
}

func TestLoadFirstExistingFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LoadFirstExistingFile([]string{dir})
	if err == nil || !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
}
