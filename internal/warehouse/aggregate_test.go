package warehouse

import (
	"math"
	"testing"
	"time"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

func day(id string, queries int64, spilled int64, queueMs, coldMs, execMs int64) models.WarehouseDayRow {
	return models.WarehouseDayRow{
		WarehouseID:  id,
		Date:         time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Queries:      queries,
		SpilledBytes: spilled,
		QueueMs:      queueMs,
		ColdStartMs:  coldMs,
		ExecuteMs:    execMs,
	}
}

func TestAggregateBadDayCounting(t *testing.T) {
	th := config.DefaultSizingThresholds()
	// Thresholds: spill > 0.5 GiB, queue > 2 min, cold > 1 min per day.
	perDay := []models.WarehouseDayRow{
		day("wh-1", 100, 1<<30, 0, 0, 600_000),       // spill bad day
		day("wh-1", 100, 1<<20, 3*60_000, 0, 600_000), // queue bad day
		day("wh-1", 100, 0, 0, 90_000, 600_000),       // cold bad day
		day("wh-1", 0, 0, 0, 0, 0),                    // inactive day
		day("wh-1", 50, gibBytes/2, 2*60_000, 60_000, 600_000), // all exactly at threshold: not bad
	}

	metrics, err := Aggregate(perDay, nil, nil, nil, nil, th)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected one warehouse, got %d", len(metrics))
	}
	m := metrics[0]
	if m.SpillBadDays != 1 || m.QueueBadDays != 1 || m.ColdStartBadDays != 1 {
		t.Fatalf("bad days = %d/%d/%d, want 1/1/1", m.SpillBadDays, m.QueueBadDays, m.ColdStartBadDays)
	}
	if m.ActiveDays != 4 {
		t.Fatalf("active days = %d, want 4", m.ActiveDays)
	}
	if m.TotalQueries != 350 {
		t.Fatalf("total queries = %d, want 350", m.TotalQueries)
	}
}

const gibBytes = int64(1) << 30

func TestAggregateUnionAndDefaultName(t *testing.T) {
	configs := []models.WarehouseConfigRow{
		{WarehouseID: "wh-cfg", Name: "reporting", Size: "Small", MaxClusters: 2, AutoStopMinutes: 10},
	}
	perDay := []models.WarehouseDayRow{
		day("wh-cfg", 10, 0, 0, 0, 60_000),
		day("wh-orphan", 5, 0, 0, 0, 30_000),
	}

	metrics, err := Aggregate(perDay, nil, configs, nil, nil, config.DefaultSizingThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected two warehouses, got %d", len(metrics))
	}

	byID := make(map[string]models.WarehouseHealthMetrics)
	for _, m := range metrics {
		byID[m.WarehouseID] = m
	}
	if byID["wh-cfg"].Name != "reporting" || byID["wh-cfg"].Size != "Small" {
		t.Fatalf("config row not applied: %+v", byID["wh-cfg"])
	}
	// A warehouse with telemetry but no config row keeps its id as the name.
	if byID["wh-orphan"].Name != "wh-orphan" {
		t.Fatalf("orphan warehouse name = %q, want wh-orphan", byID["wh-orphan"].Name)
	}
}

func TestAggregateWeightedAverageAndMaxP95(t *testing.T) {
	perDay := []models.WarehouseDayRow{
		{WarehouseID: "wh-1", Queries: 90, AvgRuntimeMs: 1_000, P95RuntimeMs: 4_000},
		{WarehouseID: "wh-1", Queries: 10, AvgRuntimeMs: 11_000, P95RuntimeMs: 30_000},
	}

	metrics, err := Aggregate(perDay, nil, nil, nil, nil, config.DefaultSizingThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := metrics[0]
	// (90*1000 + 10*11000) / 100 = 2000.
	if math.Abs(m.AvgRuntimeMs-2_000) > 1e-9 {
		t.Fatalf("weighted avg = %f, want 2000", m.AvgRuntimeMs)
	}
	if m.P95RuntimeMs != 30_000 {
		t.Fatalf("p95 = %f, want max of days 30000", m.P95RuntimeMs)
	}
}

func TestAggregateDenseHours(t *testing.T) {
	perDay := []models.WarehouseDayRow{day("wh-1", 10, 0, 0, 0, 60_000)}
	perHour := []models.WarehouseHourRow{
		{WarehouseID: "wh-1", Hour: 9, Queries: 5, QueueMs: 1_000},
		{WarehouseID: "wh-1", Hour: 9, Queries: 3, QueueMs: 500},
		{WarehouseID: "wh-1", Hour: 25, Queries: 99}, // out of range, ignored
		{WarehouseID: "wh-unknown", Hour: 3, Queries: 7},
	}

	metrics, err := Aggregate(perDay, nil, nil, nil, perHour, config.DefaultSizingThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := metrics[0]
	if m.Hours[9].Queries != 8 || m.Hours[9].QueueMs != 1_500 {
		t.Fatalf("hour 9 = %+v, want 8 queries / 1500 ms", m.Hours[9])
	}
	for h, usage := range m.Hours {
		if h != 9 && usage.Queries != 0 {
			t.Fatalf("hour %d should be zero, got %+v", h, usage)
		}
	}
}

func TestAggregateTopUsersAndSources(t *testing.T) {
	perDay := []models.WarehouseDayRow{day("wh-1", 10, 0, 0, 0, 60_000)}
	perUser := []models.WarehouseUserRow{
		{WarehouseID: "wh-1", User: "ana", Source: "dashboard", Queries: 3},
		{WarehouseID: "wh-1", User: "ben", Source: "job", Queries: 8},
		{WarehouseID: "wh-1", User: "ana", Source: "dashboard", Queries: 4},
	}

	metrics, err := Aggregate(perDay, perUser, nil, nil, nil, config.DefaultSizingThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := metrics[0]
	if m.TotalUsers != 2 {
		t.Fatalf("total users = %d, want 2", m.TotalUsers)
	}
	if len(m.TopUsers) != 2 || m.TopUsers[0].Name != "ben" || m.TopUsers[0].Count != 8 {
		t.Fatalf("top users = %+v, want ben first with 8", m.TopUsers)
	}
	if m.TopUsers[1].Name != "ana" || m.TopUsers[1].Count != 7 {
		t.Fatalf("second user = %+v, want ana with 7", m.TopUsers[1])
	}
	if len(m.TopSources) != 2 || m.TopSources[0].Name != "job" {
		t.Fatalf("top sources = %+v, want job first", m.TopSources)
	}
}

func TestAggregateRejectsEmptyWarehouseID(t *testing.T) {
	if _, err := Aggregate([]models.WarehouseDayRow{{Queries: 1}}, nil, nil, nil, nil, config.DefaultSizingThresholds()); err == nil {
		t.Fatalf("expected error for day row with empty warehouse id")
	}
	if _, err := Aggregate(nil, nil, []models.WarehouseConfigRow{{Name: "x"}}, nil, nil, config.DefaultSizingThresholds()); err == nil {
		t.Fatalf("expected error for config row with empty warehouse id")
	}
}

func TestAggregateSumsCosts(t *testing.T) {
	perDay := []models.WarehouseDayRow{day("wh-1", 10, 0, 0, 0, 60_000)}
	costs := []models.WarehouseCostRow{
		{WarehouseID: "wh-1", Dollars: 120, DBUs: 40},
		{WarehouseID: "wh-1", Dollars: 30, DBUs: 10},
		{WarehouseID: "wh-other", Dollars: 999, DBUs: 999},
	}

	metrics, err := Aggregate(perDay, nil, nil, costs, nil, config.DefaultSizingThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := metrics[0]
	if m.WeeklyCost != 150 || m.WeeklyDBUs != 50 {
		t.Fatalf("cost = %f / %f DBUs, want 150 / 50", m.WeeklyCost, m.WeeklyDBUs)
	}
}
