// Package collector reads the telemetry export from ClickHouse and produces
// the raw row sets the analysis layers consume. It is the only package that
// talks to the telemetry store.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

// Dataset is one collection pass over the telemetry window: the raw
// executions plus the pre-aggregated warehouse row sets.
type Dataset struct {
	Executions []models.QueryExecution
	Costs      []models.WarehouseCostRow
	Configs    []models.WarehouseConfigRow
	Days       []models.WarehouseDayRow
	Users      []models.WarehouseUserRow
	Hours      []models.WarehouseHourRow
}

// Collector fetches a telemetry dataset.
type Collector interface {
	Collect(ctx context.Context) (*Dataset, error)
	Close() error
}

type collector struct {
	cfg    *config.Config
	client *Client
}

// New connects to the telemetry store and returns a Collector.
func New(cfg *config.Config) (Collector, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry client: %w", err)
	}
	return &collector{cfg: cfg, client: client}, nil
}

// Collect fetches the six row sets. They are independent queries, so they
// run in parallel; the client's rate limiter still serializes throughput.
// Exclusion patterns from the config are applied before returning.
func (c *collector) Collect(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		ds.Executions, err = c.client.FetchExecutions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Costs, err = c.client.FetchWarehouseCosts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Configs, err = c.client.FetchWarehouseConfigs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Days, err = c.client.FetchWarehouseDays(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Users, err = c.client.FetchWarehouseUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Hours, err = c.client.FetchWarehouseHours(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("telemetry collection failed: %w", err)
	}

	applyExclusions(ds, c.cfg)
	slog.Debug("telemetry collection complete",
		"executions", len(ds.Executions),
		"warehouses", len(ds.Configs),
		"day_rows", len(ds.Days))
	return ds, nil
}

func (c *collector) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// applyExclusions drops rows matching the configured warehouse and user
// exclusion patterns from every row set.
func applyExclusions(ds *Dataset, cfg *config.Config) {
	if cfg == nil || (len(cfg.ExcludeWarehouses) == 0 && len(cfg.ExcludeUsers) == 0) {
		return
	}

	ds.Executions = filterSlice(ds.Executions, func(e models.QueryExecution) bool {
		return !cfg.IsWarehouseExcluded(e.WarehouseID) && !cfg.IsUserExcluded(e.User)
	})
	ds.Costs = filterSlice(ds.Costs, func(r models.WarehouseCostRow) bool {
		return !cfg.IsWarehouseExcluded(r.WarehouseID)
	})
	ds.Configs = filterSlice(ds.Configs, func(r models.WarehouseConfigRow) bool {
		return !cfg.IsWarehouseExcluded(r.WarehouseID) && !cfg.IsWarehouseExcluded(r.Name)
	})
	ds.Days = filterSlice(ds.Days, func(r models.WarehouseDayRow) bool {
		return !cfg.IsWarehouseExcluded(r.WarehouseID)
	})
	ds.Users = filterSlice(ds.Users, func(r models.WarehouseUserRow) bool {
		return !cfg.IsWarehouseExcluded(r.WarehouseID) && !cfg.IsUserExcluded(r.User)
	})
	ds.Hours = filterSlice(ds.Hours, func(r models.WarehouseHourRow) bool {
		return !cfg.IsWarehouseExcluded(r.WarehouseID)
	})
}

func filterSlice[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
