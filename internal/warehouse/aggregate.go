// Package warehouse turns per-warehouse telemetry into 7-day health
// aggregates and evaluates the sizing rule chain over them. Both steps are
// pure functions over the supplied rows.
package warehouse

import (
	"fmt"
	"sort"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

const topListLimit = 5

// Aggregate groups the pre-aggregated telemetry rows into one
// WarehouseHealthMetrics per warehouse. Warehouses come from the union of
// config rows and day rows; a warehouse without a config row keeps zero-value
// configuration and its id as the name. Bad-day counters apply the per-day
// thresholds from th.
func Aggregate(
	perDay []models.WarehouseDayRow,
	perUser []models.WarehouseUserRow,
	configs []models.WarehouseConfigRow,
	costs []models.WarehouseCostRow,
	perHour []models.WarehouseHourRow,
	th config.SizingThresholds,
) ([]models.WarehouseHealthMetrics, error) {
	byID := make(map[string]*models.WarehouseHealthMetrics)
	var order []string

	get := func(id string) *models.WarehouseHealthMetrics {
		m, ok := byID[id]
		if !ok {
			m = &models.WarehouseHealthMetrics{WarehouseID: id, Name: id}
			byID[id] = m
			order = append(order, id)
		}
		return m
	}

	for _, cfg := range configs {
		if cfg.WarehouseID == "" {
			return nil, fmt.Errorf("warehouse config row has empty warehouse id")
		}
		m := get(cfg.WarehouseID)
		if cfg.Name != "" {
			m.Name = cfg.Name
		}
		m.Size = cfg.Size
		m.MinClusters = cfg.MinClusters
		m.MaxClusters = cfg.MaxClusters
		m.AutoStopMinutes = cfg.AutoStopMinutes
		m.Serverless = cfg.Serverless
	}

	spillBadBytes := th.SpillBadDayBytes
	queueBadMs := th.QueueBadDayMinutes * 60_000
	coldBadMs := th.ColdBadDayMinutes * 60_000

	for _, day := range perDay {
		if day.WarehouseID == "" {
			return nil, fmt.Errorf("warehouse day row has empty warehouse id")
		}
		m := get(day.WarehouseID)
		m.Days = append(m.Days, day)
		m.TotalQueries += day.Queries
		m.SpilledBytes += day.SpilledBytes
		m.QueueMinutes += float64(day.QueueMs) / 60_000
		m.ColdStartMinutes += float64(day.ColdStartMs) / 60_000
		m.ExecuteMinutes += float64(day.ExecuteMs) / 60_000

		if day.Queries > 0 {
			m.ActiveDays++
		}
		if day.SpilledBytes > spillBadBytes {
			m.SpillBadDays++
		}
		if float64(day.QueueMs) > queueBadMs {
			m.QueueBadDays++
		}
		if float64(day.ColdStartMs) > coldBadMs {
			m.ColdStartBadDays++
		}
		if day.P95RuntimeMs > m.P95RuntimeMs {
			m.P95RuntimeMs = day.P95RuntimeMs
		}
	}

	// Query-weighted average runtime across days.
	for _, id := range order {
		m := byID[id]
		var weighted float64
		var queries int64
		for _, day := range m.Days {
			weighted += day.AvgRuntimeMs * float64(day.Queries)
			queries += day.Queries
		}
		if queries > 0 {
			m.AvgRuntimeMs = weighted / float64(queries)
		}
	}

	for _, cost := range costs {
		if m, ok := byID[cost.WarehouseID]; ok {
			m.WeeklyCost += cost.Dollars
			m.WeeklyDBUs += cost.DBUs
		}
	}

	userCounts := make(map[string]map[string]int64)
	sourceCounts := make(map[string]map[string]int64)
	userOrder := make(map[string][]string)
	sourceOrder := make(map[string][]string)
	for _, row := range perUser {
		if _, ok := byID[row.WarehouseID]; !ok {
			continue
		}
		if row.User != "" {
			if userCounts[row.WarehouseID] == nil {
				userCounts[row.WarehouseID] = make(map[string]int64)
			}
			if _, seen := userCounts[row.WarehouseID][row.User]; !seen {
				userOrder[row.WarehouseID] = append(userOrder[row.WarehouseID], row.User)
			}
			userCounts[row.WarehouseID][row.User] += row.Queries
		}
		if row.Source != "" {
			if sourceCounts[row.WarehouseID] == nil {
				sourceCounts[row.WarehouseID] = make(map[string]int64)
			}
			if _, seen := sourceCounts[row.WarehouseID][row.Source]; !seen {
				sourceOrder[row.WarehouseID] = append(sourceOrder[row.WarehouseID], row.Source)
			}
			sourceCounts[row.WarehouseID][row.Source] += row.Queries
		}
	}
	for _, id := range order {
		m := byID[id]
		m.TotalUsers = len(userCounts[id])
		m.TopUsers = topCounts(userCounts[id], userOrder[id])
		m.TopSources = topCounts(sourceCounts[id], sourceOrder[id])
	}

	// Dense 24-hour table; absent hours stay zero.
	for _, row := range perHour {
		m, ok := byID[row.WarehouseID]
		if !ok || row.Hour < 0 || row.Hour > 23 {
			continue
		}
		m.Hours[row.Hour].Queries += row.Queries
		m.Hours[row.Hour].QueueMs += row.QueueMs
	}

	out := make([]models.WarehouseHealthMetrics, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

func topCounts(counts map[string]int64, order []string) []models.UserCount {
	if len(counts) == 0 {
		return nil
	}
	list := make([]models.UserCount, 0, len(order))
	for _, name := range order {
		list = append(list, models.UserCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Count > list[j].Count })
	if len(list) > topListLimit {
		list = list[:topListLimit]
	}
	return list
}
