package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable report to report.txt and stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	generatedAt := strings.TrimSpace(report.Timestamp)
	if generatedAt == "" {
		if !report.Metadata.GeneratedAt.IsZero() {
			generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
		} else {
			generatedAt = "unknown"
		}
	}

	host := strings.TrimSpace(report.Metadata.TelemetryHost)
	if host == "" {
		host = "unknown"
	}

	writeTextSectionHeader(&b, "Warelens Analysis Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Telemetry host: %s\n", host)
	fmt.Fprintf(&b, "Window days: %d\n", report.Metadata.WindowDays)
	fmt.Fprintf(&b, "Executions analyzed: %d\n", report.Metadata.ExecutionsAnalyzed)
	if report.Metadata.BaselineApplied {
		b.WriteString("Baseline: applied\n")
	}
	b.WriteString("\n")

	low, medium, high := scoreDistribution(report.Candidates)
	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Query patterns: %d\n", len(report.Candidates))
	fmt.Fprintf(&b, "Patterns with findings: %d\n", countFlagged(report.Candidates))
	b.WriteString("Impact score distribution:\n")
	fmt.Fprintf(&b, "   0-39: %d\n", low)
	fmt.Fprintf(&b, "  40-69: %d\n", medium)
	fmt.Fprintf(&b, "  70-100: %d\n", high)
	fmt.Fprintf(&b, "Warehouse recommendations: %d (%d actionable)\n",
		len(report.Warehouses), countActionable(report.Warehouses))
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Top Query Patterns", useANSI)
	if len(report.Candidates) == 0 {
		b.WriteString("No query patterns in the window.\n")
	} else {
		b.WriteString("FINGERPRINT      SCORE  COUNT    P95      COST     WAREHOUSE    FLAGS\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, c := range report.Candidates {
			fmt.Fprintf(&b, "%-16s %-6d %-8d %-8s %-8s %-12s %d\n",
				c.Fingerprint,
				c.ImpactScore,
				c.Stats.Count,
				formatMillis(c.Stats.P95Ms),
				formatDollars(c.CostDollars),
				truncateTextValue(c.WarehouseID, 12),
				len(c.Flags),
			)
		}
	}

	flagged := flaggedCandidates(report.Candidates)
	if len(flagged) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Findings", useANSI)
		for _, c := range flagged {
			fmt.Fprintf(&b, "%s | score=%d | %s\n", c.Fingerprint, c.ImpactScore, truncateTextValue(c.NormalizedQuery, 100))
			if len(c.Tags) > 0 {
				fmt.Fprintf(&b, "  tags: %s\n", strings.Join(c.Tags, ", "))
			}
			if c.DBT != nil && c.DBT.NodeID != "" {
				fmt.Fprintf(&b, "  dbt: %s\n", c.DBT.NodeID)
			}
			for _, f := range c.Flags {
				if f.Estimated {
					fmt.Fprintf(&b, "  - [%s] %s (%.1f%% of runtime)\n", f.Severity, f.Label, f.ImpactPct)
				} else {
					fmt.Fprintf(&b, "  - [%s] %s\n", f.Severity, f.Label)
				}
				if f.Detail != "" {
					fmt.Fprintf(&b, "      %s\n", f.Detail)
				}
			}
			b.WriteString("\n")
		}
	}

	if len(report.Warehouses) > 0 {
		writeTextSectionHeader(&b, "Warehouse Recommendations", useANSI)
		for _, rec := range report.Warehouses {
			fmt.Fprintf(&b, "%s | %s | %s confidence | %s\n", rec.Name, rec.Action, rec.Confidence, rec.Severity)
			fmt.Fprintf(&b, "  %s\n", rec.Headline)
			fmt.Fprintf(&b, "  %s\n", rec.Rationale)
			if rec.Target != nil {
				fmt.Fprintf(&b, "  target: size=%s clusters=%d-%d auto-stop=%dm\n",
					rec.Target.Size, rec.Target.MinClusters, rec.Target.MaxClusters, rec.Target.AutoStopMinutes)
			}
			if rec.CostDelta != 0 {
				fmt.Fprintf(&b, "  estimated weekly cost: %s -> %s (%+.2f)\n",
					formatDollars(rec.CurrentWeeklyCost), formatDollars(rec.NewWeeklyCost), rec.CostDelta)
			}
			if rec.WastedCost > 0 {
				fmt.Fprintf(&b, "  wasted this week: %.1f min waiting, about %s\n",
					rec.WastedMinutes, formatDollars(rec.WastedCost))
			}
			if rec.Serverless != nil {
				fmt.Fprintf(&b, "  serverless estimate: %s per week (%+.2f)\n",
					formatDollars(rec.Serverless.WeeklyCost), rec.Serverless.Delta)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func flaggedCandidates(candidates []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Flags) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func countFlagged(candidates []models.Candidate) int {
	return len(flaggedCandidates(candidates))
}

func countActionable(recs []models.WarehouseRecommendation) int {
	n := 0
	for _, rec := range recs {
		if rec.Action != models.ActionNoChange {
			n++
		}
	}
	return n
}

func scoreDistribution(candidates []models.Candidate) (int, int, int) {
	low, medium, high := 0, 0, 0
	for _, c := range candidates {
		switch {
		case c.ImpactScore < 40:
			low++
		case c.ImpactScore < 70:
			medium++
		default:
			high++
		}
	}
	return low, medium, high
}

func formatMillis(ms int64) string {
	switch {
	case ms >= 60_000:
		return fmt.Sprintf("%.1fm", float64(ms)/60_000)
	case ms >= 1_000:
		return fmt.Sprintf("%.1fs", float64(ms)/1_000)
	default:
		return fmt.Sprintf("%dms", ms)
	}
}

func formatDollars(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
