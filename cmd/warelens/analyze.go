package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/warelens/warelens/internal/baseline"
	"github.com/warelens/warelens/internal/candidate"
	"github.com/warelens/warelens/internal/collector"
	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/internal/reporter"
	"github.com/warelens/warelens/pkg/config"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var lookbackStr string
	var queryTimeoutStr string
	var configPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze query telemetry and rank query patterns",
		Long: `Analyze warehouse query telemetry: group executions into normalized
query patterns, score them by impact, flag performance issues, and write a
ranked report.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfigOverlay(cmd, cfg, configPath); err != nil {
				return err
			}
			if err := applyDurationFlags(cfg, lookbackStr, queryTimeoutStr); err != nil {
				return err
			}
			return validateCommonConfig(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.TelemetryDSN, "telemetry-dsn", "", "Telemetry store DSN (required unless set in config file)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: auto-discover .warelens.yaml)")
	cmd.Flags().StringVar(&queryTimeoutStr, "query-timeout", "", "Query timeout (e.g., 5m, 10m, 1h)")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Query history batch size")
	cmd.Flags().IntVar(&cfg.MaxRows, "max-rows", cfg.MaxRows, "Max query history rows to process")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "", "Lookback period (e.g., 7d, 168h)")
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Telemetry queries per second")

	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (json, text, all)")

	cmd.Flags().Float64Var(&cfg.MinImpactPct, "min-impact", cfg.MinImpactPct, "Drop estimated findings below this impact percent")
	cmd.Flags().IntVar(&cfg.ScoreGate, "score-gate", cfg.ScoreGate, "Exit with findings code when a pattern scores at or above this (0 disables)")
	cmd.Flags().IntVar(&cfg.TopUsers, "top-users", cfg.TopUsers, "Users listed per pattern")
	cmd.Flags().StringSliceVar(&cfg.ExcludeWarehouses, "exclude-warehouse", nil, "Warehouse id or name patterns to exclude")
	cmd.Flags().StringSliceVar(&cfg.ExcludeUsers, "exclude-user", nil, "User patterns to exclude")

	cmd.Flags().StringVar(&cfg.BaselinePath, "baseline", "", "Baseline file of acknowledged pattern fingerprints")
	cmd.Flags().BoolVar(&cfg.UpdateBaseline, "update-baseline", false, "Add this run's patterns to the baseline file")

	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")

	return cmd
}

// loadConfigOverlay applies a config file before flags take precedence.
// Flags set explicitly on the command line always win.
func loadConfigOverlay(cmd *cobra.Command, cfg *config.Config, configPath string) error {
	var fc *config.FileConfig
	var err error

	if strings.TrimSpace(configPath) != "" {
		fc, err = config.LoadFile(configPath)
	} else {
		fc, _, err = config.AutoLoadFile()
	}
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}

	// Preserve explicit flag values over file values.
	if cmd.Flags().Changed("telemetry-dsn") {
		fc.TelemetryDSN = ""
	}
	if cmd.Flags().Changed("format") {
		fc.Format = ""
	}
	if cmd.Flags().Changed("lookback") {
		fc.Lookback = ""
	}
	if cmd.Flags().Changed("query-timeout") {
		fc.QueryTimeout = ""
	}
	if cmd.Flags().Changed("min-impact") {
		fc.MinImpactPct = nil
	}
	if cmd.Flags().Changed("score-gate") {
		fc.ScoreGate = nil
	}
	if cmd.Flags().Changed("exclude-warehouse") {
		fc.ExcludeWarehouses = nil
	}
	if cmd.Flags().Changed("exclude-user") {
		fc.ExcludeUsers = nil
	}

	return fc.Apply(cfg)
}

func applyDurationFlags(cfg *config.Config, lookbackStr, queryTimeoutStr string) error {
	if lookbackStr != "" {
		d, err := config.ParseDuration(lookbackStr)
		if err != nil {
			return fmt.Errorf("invalid --lookback duration: %w", err)
		}
		cfg.LookbackPeriod = d
	}
	if queryTimeoutStr != "" {
		d, err := config.ParseDuration(queryTimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid --query-timeout duration: %w", err)
		}
		cfg.QueryTimeout = d
	}
	return nil
}

func validateCommonConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.TelemetryDSN) == "" {
		return fmt.Errorf("telemetry DSN is required (--telemetry-dsn or config file)")
	}
	switch cfg.Format {
	case "json", "text", "all":
	default:
		return fmt.Errorf("invalid --format value: %q (json, text, all)", cfg.Format)
	}
	cfg.Normalize()
	return nil
}

// runAnalyze executes the candidate analysis workflow.
func runAnalyze(cfg *config.Config) error {
	startTime := time.Now()
	ctx := context.Background()

	col, err := collector.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	defer col.Close()

	fmt.Println("Collecting telemetry...")
	ds, err := col.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect telemetry: %w", err)
	}
	fmt.Printf("Collected %d executions across %d warehouses\n", len(ds.Executions), len(ds.Configs))

	fmt.Println("Building query pattern candidates...")
	candidates, err := candidate.New(cfg, nil).Build(ds.Executions, ds.Costs)
	if err != nil {
		return fmt.Errorf("failed to build candidates: %w", err)
	}
	fmt.Printf("Found %d query patterns\n", len(candidates))

	baselineApplied := false
	if cfg.BaselinePath != "" || cfg.UpdateBaseline {
		candidates, baselineApplied, err = applyBaseline(cfg, candidates)
		if err != nil {
			return err
		}
	}

	report := buildReport(cfg, candidates, nil, uint64(len(ds.Executions)), baselineApplied, startTime)

	if cfg.DryRun {
		fmt.Println("Dry run mode - skipping output")
	} else {
		if err := reporter.New(cfg).Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("Report written to: %s\n", cfg.OutputDir)
	}

	fmt.Printf("Analysis complete in %s\n", time.Since(startTime).Round(time.Second))

	if n := countGated(candidates, cfg.ScoreGate); n > 0 {
		return &FindingsError{Count: n}
	}
	return nil
}

// applyBaseline suppresses acknowledged patterns and optionally records the
// current ones.
func applyBaseline(cfg *config.Config, candidates []models.Candidate) ([]models.Candidate, bool, error) {
	path := cfg.BaselinePath
	if path == "" {
		path = baseline.DefaultPath
	}

	known, err := baseline.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load baseline: %w", err)
	}

	remaining, suppressed := baseline.SuppressKnown(candidates, known)
	if suppressed > 0 {
		fmt.Printf("Suppressed %d baselined patterns\n", suppressed)
	}

	if cfg.UpdateBaseline {
		baseline.AddAll(known, baseline.CollectFingerprints(candidates))
		if err := baseline.Save(path, known); err != nil {
			return nil, false, fmt.Errorf("failed to update baseline: %w", err)
		}
		slog.Debug("baseline updated", "path", path, "fingerprints", len(known))
	}

	return remaining, cfg.BaselinePath != "", nil
}

func countGated(candidates []models.Candidate, gate int) int {
	if gate <= 0 {
		return 0
	}
	n := 0
	for _, c := range candidates {
		if c.ImpactScore >= gate {
			n++
		}
	}
	return n
}

// buildReport constructs the report envelope shared by analyze and health.
func buildReport(
	cfg *config.Config,
	candidates []models.Candidate,
	warehouses []models.WarehouseRecommendation,
	executions uint64,
	baselineApplied bool,
	startTime time.Time,
) *models.Report {
	now := time.Now()
	return &models.Report{
		Tool:      "warelens",
		Version:   version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:        now,
			WindowDays:         int(cfg.LookbackPeriod.Hours() / 24),
			TelemetryHost:      extractHost(cfg.TelemetryDSN),
			ExecutionsAnalyzed: executions,
			AnalysisDuration:   time.Since(startTime).Round(time.Second).String(),
			Version:            version,
			BaselineApplied:    baselineApplied,
		},
		Candidates: candidates,
		Warehouses: warehouses,
	}
}

// extractHost pulls the host portion out of a DSN without exposing
// credentials.
func extractHost(dsn string) string {
	rest := dsn
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		rest = rest[:i]
	}
	if strings.TrimSpace(rest) == "" {
		return "unknown"
	}
	return rest
}
