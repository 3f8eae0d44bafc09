package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warelens/warelens/internal/collector"
	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/internal/reporter"
	"github.com/warelens/warelens/internal/warehouse"
	"github.com/warelens/warelens/pkg/config"
)

// NewHealthCmd creates the health command.
func NewHealthCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var lookbackStr string
	var queryTimeoutStr string
	var configPath string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Evaluate warehouse health and sizing",
		Long: `Aggregate per-warehouse telemetry over the lookback window and produce
one sizing recommendation per warehouse: upsize, downsize, add clusters,
switch to serverless, or adjust auto-stop.`,
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
			return runHealth(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.TelemetryDSN, "telemetry-dsn", "", "Telemetry store DSN (required unless set in config file)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: auto-discover .warelens.yaml)")
	cmd.Flags().StringVar(&queryTimeoutStr, "query-timeout", "", "Query timeout (e.g., 5m, 10m, 1h)")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "", "Lookback period (e.g., 7d, 168h)")
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Telemetry queries per second")

	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (json, text, all)")
	cmd.Flags().Float64Var(&cfg.ServerlessUnitCost, "serverless-unit-cost", cfg.ServerlessUnitCost, "Dollars per serverless DBU for cost comparison (0 = unknown)")
	cmd.Flags().StringSliceVar(&cfg.ExcludeWarehouses, "exclude-warehouse", nil, "Warehouse id or name patterns to exclude")

	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")

	return cmd
}

// runHealth executes the warehouse recommendation workflow.
func runHealth(cfg *config.Config) error {
	startTime := time.Now()
	ctx := context.Background()

	col, err := collector.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	defer col.Close()

	fmt.Println("Collecting warehouse telemetry...")
	ds, err := col.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect telemetry: %w", err)
	}

	metrics, err := warehouse.Aggregate(ds.Days, ds.Users, ds.Configs, ds.Costs, ds.Hours, cfg.Sizing)
	if err != nil {
		return fmt.Errorf("failed to aggregate warehouse metrics: %w", err)
	}
	fmt.Printf("Aggregated %d warehouses\n", len(metrics))

	recommendations, err := warehouse.Recommend(metrics, serverlessUnitPrice(cfg), cfg.Sizing)
	if err != nil {
		return fmt.Errorf("failed to build recommendations: %w", err)
	}

	actionable := 0
	for _, rec := range recommendations {
		if rec.Action != models.ActionNoChange {
			actionable++
		}
	}
	fmt.Printf("Recommendations: %d total, %d actionable\n", len(recommendations), actionable)

	report := buildReport(cfg, nil, recommendations, uint64(len(ds.Executions)), false, startTime)

	if cfg.DryRun {
		fmt.Println("Dry run mode - skipping output")
		return nil
	}
	if err := reporter.New(cfg).Generate(report); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	fmt.Printf("Report written to: %s\n", cfg.OutputDir)
	return nil
}

func serverlessUnitPrice(cfg *config.Config) *float64 {
	if cfg.ServerlessUnitCost > 0 {
		price := cfg.ServerlessUnitCost
		return &price
	}
	return nil
}
