package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

func sampleReport() *models.Report {
	return &models.Report{
		Tool:      "warelens",
		Version:   "1.0.0",
		Timestamp: "2026-08-29T10:00:00Z",
		Metadata: models.Metadata{
			GeneratedAt:        time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
			WindowDays:         7,
			TelemetryHost:      "telemetry.internal:9440",
			ExecutionsAnalyzed: 420,
		},
		Candidates: []models.Candidate{
			{
				Fingerprint:     "a1b2c3d4e5f60718",
				NormalizedQuery: "select * from orders where id = ?",
				WarehouseID:     "wh-etl",
				ImpactScore:     82,
				Stats:           models.WindowStats{Count: 120, P95Ms: 95_000},
				CostDollars:     310.5,
				Tags:            []string{"slow", "frequent"},
				Flags: []models.PerformanceFlagFinding{
					{
						Kind:      models.FlagHighSpill,
						Label:     "High spill to disk",
						Severity:  models.SeverityCritical,
						ImpactPct: 34.5,
						Estimated: true,
					},
				},
			},
			{
				Fingerprint:     "00ff00ff00ff00ff",
				NormalizedQuery: "select ? as ping",
				WarehouseID:     "wh-etl",
				ImpactScore:     4,
				Stats:           models.WindowStats{Count: 3, P95Ms: 40},
			},
		},
		Warehouses: []models.WarehouseRecommendation{
			{
				WarehouseID:       "wh-etl",
				Name:              "etl",
				Action:            models.ActionUpsize,
				Severity:          models.SeverityWarning,
				Confidence:        models.ConfidenceHigh,
				Headline:          "Upsize etl from Small to Medium",
				Rationale:         "Spill exceeded the daily threshold on 6 of 7 days.",
				CurrentWeeklyCost: 500,
				NewWeeklyCost:     1000,
				CostDelta:         500,
				Target:            &models.TargetConfig{Size: "Medium", MinClusters: 1, MaxClusters: 2, AutoStopMinutes: 10},
			},
		},
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	if err := WriteJSON(sampleReport(), cfg); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.json"))
	if err != nil {
		t.Fatalf("failed to read report.json: %v", err)
	}

	var decoded models.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}
	if decoded.Tool != "warelens" {
		t.Fatalf("tool = %q, want warelens", decoded.Tool)
	}
	if len(decoded.Candidates) != 2 || decoded.Candidates[0].Fingerprint != "a1b2c3d4e5f60718" {
		t.Fatalf("candidates did not survive the round trip: %+v", decoded.Candidates)
	}
	if len(decoded.Warehouses) != 1 || decoded.Warehouses[0].Action != models.ActionUpsize {
		t.Fatalf("warehouse recommendations did not survive the round trip: %+v", decoded.Warehouses)
	}
}

func TestWriteTextSections(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	var buf bytes.Buffer
	if err := writeText(sampleReport(), cfg, &buf); err != nil {
		t.Fatalf("writeText failed: %v", err)
	}

	rendered := buf.String()
	for _, want := range []string{
		"Warelens Analysis Report",
		"Telemetry host: telemetry.internal:9440",
		"Top Query Patterns",
		"a1b2c3d4e5f60718",
		"High spill to disk",
		"Warehouse Recommendations",
		"Upsize etl from Small to Medium",
		"target: size=Medium clusters=1-2 auto-stop=10m",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("text report missing %q:\n%s", want, rendered)
		}
	}

	// A non-terminal writer must not receive ANSI escapes.
	if strings.Contains(rendered, "\x1b[") {
		t.Fatalf("expected no ANSI escapes for a buffer writer")
	}

	// The same content lands in report.txt.
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.txt"))
	if err != nil {
		t.Fatalf("failed to read report.txt: %v", err)
	}
	if string(data) != rendered {
		t.Fatalf("report.txt differs from the streamed output")
	}
}

func TestWriteTextNilReport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	if err := writeText(nil, cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestGenerateFormats(t *testing.T) {
	cases := []struct {
		format    string
		wantJSON  bool
		wantText  bool
		wantError bool
	}{
		{format: "json", wantJSON: true},
		{format: "all", wantJSON: true, wantText: true},
		{format: "yaml", wantError: true},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.OutputDir = t.TempDir()
			cfg.Format = tc.format

			err := New(cfg).Generate(sampleReport())
			if tc.wantError {
				if err == nil {
					t.Fatalf("expected error for format %q", tc.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			_, jsonErr := os.Stat(filepath.Join(cfg.OutputDir, "report.json"))
			if tc.wantJSON != (jsonErr == nil) {
				t.Fatalf("report.json presence = %v, want %v", jsonErr == nil, tc.wantJSON)
			}
			_, textErr := os.Stat(filepath.Join(cfg.OutputDir, "report.txt"))
			if tc.wantText != (textErr == nil) {
				t.Fatalf("report.txt presence = %v, want %v", textErr == nil, tc.wantText)
			}
		})
	}
}

func TestFormatMillis(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{ms: 500, want: "500ms"},
		{ms: 1_500, want: "1.5s"},
		{ms: 95_000, want: "1.6m"},
	}
	for _, tc := range cases {
		if got := formatMillis(tc.ms); got != tc.want {
			t.Fatalf("formatMillis(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}
