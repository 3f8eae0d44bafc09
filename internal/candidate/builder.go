// Package candidate folds raw query executions into per-pattern candidates:
// one aggregate per fingerprint per window, scored and flagged, ranked by
// impact. Build is a pure transformation over the supplied slice; nothing is
// retained between invocations.
package candidate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warelens/warelens/internal/fingerprint"
	"github.com/warelens/warelens/internal/flags"
	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/internal/scorer"
	"github.com/warelens/warelens/pkg/config"
)

// Builder groups executions by query fingerprint and derives candidates.
type Builder struct {
	cfg    *config.Config
	tables map[string]flags.TableContext
}

// New creates a builder. tables is optional catalog context forwarded to the
// flag engine; pass nil when unavailable.
func New(cfg *config.Config, tables map[string]flags.TableContext) *Builder {
	return &Builder{cfg: cfg, tables: tables}
}

// group accumulates the executions of one fingerprint in first-seen order.
type group struct {
	fingerprint string
	executions  []models.QueryExecution
}

// Build derives one candidate per distinct query pattern. Warehouse cost is
// allocated to patterns proportionally to the wall time they spent on each
// warehouse. The returned slice is sorted by descending impact score.
func (b *Builder) Build(executions []models.QueryExecution, costs []models.WarehouseCostRow) ([]models.Candidate, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if b.cfg.TopUsers < 0 {
		return nil, fmt.Errorf("top users limit must not be negative, got %d", b.cfg.TopUsers)
	}

	// The fingerprint memo lives and dies with this invocation so raw texts
	// from one window never leak into the next.
	memo := fingerprint.NewCache()

	groups := make(map[string]*group)
	var order []string
	warehouseTotals := make(map[string]int64) // wall ms per warehouse, all patterns

	for _, exec := range executions {
		fp := memo.Fingerprint(exec.Query)
		g, ok := groups[fp]
		if !ok {
			g = &group{fingerprint: fp}
			groups[fp] = g
			order = append(order, fp)
		}
		g.executions = append(g.executions, exec)
		if exec.WarehouseID != "" {
			warehouseTotals[exec.WarehouseID] += exec.DurationMs
		}
	}

	costByWarehouse := make(map[string]models.WarehouseCostRow, len(costs))
	for _, row := range costs {
		costByWarehouse[row.WarehouseID] = row
	}

	candidates := make([]models.Candidate, 0, len(order))
	for _, fp := range order {
		c, err := b.fold(groups[fp], costByWarehouse, warehouseTotals)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ImpactScore > candidates[j].ImpactScore
	})

	return candidates, nil
}

// fold computes one candidate from its grouped executions.
func (b *Builder) fold(g *group, costs map[string]models.WarehouseCostRow, warehouseTotals map[string]int64) (models.Candidate, error) {
	execs := g.executions
	stats := foldStats(execs)

	sample := execs[0]
	for _, e := range execs[1:] {
		if e.DurationMs > sample.DurationMs {
			sample = e
		}
	}

	c := models.Candidate{
		Fingerprint:       g.fingerprint,
		NormalizedQuery:   fingerprint.Normalize(sample.Query),
		Sample:            sample,
		SampleStatementID: sample.StatementID,
		SampleQuery:       sample.Query,
		WarehouseID:       dominant(execs, func(e models.QueryExecution) string { return e.WarehouseID }),
		WorkspaceID:       dominant(execs, func(e models.QueryExecution) string { return e.WorkspaceID }),
		Origin:            dominant(execs, func(e models.QueryExecution) string { return e.Source.Origin() }),
		StatementType:     dominant(execs, func(e models.QueryExecution) string { return e.StatementType }),
		ClientApplication: dominant(execs, func(e models.QueryExecution) string { return e.ClientApplication }),
		TopUsers:          topUsers(execs, b.cfg.TopUsers),
		Stats:             stats,
		Status:            "new",
	}

	for _, e := range execs {
		switch strings.ToLower(e.Status) {
		case "failed":
			c.Failures++
		case "canceled", "cancelled":
			c.Cancels++
		}
	}

	for _, e := range execs {
		if nodeID, project, target, ok := fingerprint.DBTMetadata(e.Query); ok {
			c.DBT = &models.DBTInfo{NodeID: nodeID, ProjectName: project, Target: target}
			break
		}
	}

	c.CostDollars, c.CostDBUs = allocateCost(execs, costs, warehouseTotals)

	res := scorer.Score(scorer.Input{
		P95Seconds:             float64(stats.P95Ms) / 1000,
		Count:                  stats.Count,
		SpilledBytes:           stats.TotalSpilledBytes,
		ReadBytes:              stats.TotalReadBytes,
		AvgCapacityWaitSeconds: stats.AvgQueueMs / 1000,
		CacheHitRate:           stats.CacheHitRate,
	})
	c.ImpactScore = res.ImpactScore
	c.Breakdown = res.Breakdown
	c.Tags = res.Tags

	findings := flags.Compute(&c, b.cfg.Flags, b.tables)
	ranked, err := flags.FilterAndRank(findings, b.cfg.MinImpactPct)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("rank findings for %s: %w", g.fingerprint, err)
	}
	c.Flags = ranked

	return c, nil
}

// foldStats computes the window aggregates for one group of executions.
func foldStats(execs []models.QueryExecution) models.WindowStats {
	n := len(execs)
	stats := models.WindowStats{Count: n}

	durations := make([]int64, n)
	var compile, queue, computeWait, execute, fetch float64
	var pruningSum float64
	var pruningN int
	var parallelSum float64
	var parallelN int
	var cacheSum float64

	for i, e := range execs {
		durations[i] = e.DurationMs
		stats.TotalDurationMs += e.DurationMs
		stats.TotalReadBytes += e.ReadBytes
		stats.TotalReadRows += e.ReadRows
		stats.TotalRowsProduced += e.RowsProduced
		stats.TotalSpilledBytes += e.SpilledBytes
		stats.TotalShuffledBytes += e.ShuffledBytes
		stats.TotalWrittenBytes += e.WrittenBytes
		stats.TotalReadFiles += e.ReadFiles
		stats.TotalPrunedFiles += e.PrunedFiles

		compile += float64(e.CompileMs)
		queue += float64(e.QueueMs)
		computeWait += float64(e.ComputeWaitMs)
		execute += float64(e.ExecuteMs)
		fetch += float64(e.FetchMs)

		if denom := e.PrunedFiles + e.ReadFiles; denom > 0 {
			pruningSum += float64(e.PrunedFiles) / float64(denom)
			pruningN++
		}
		if e.DurationMs > 0 {
			parallelSum += float64(e.TaskTotalMs) / float64(e.DurationMs)
			parallelN++
		}
		if e.FromResultCache {
			cacheSum += 1
		} else {
			cacheSum += e.CacheHitPct
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	stats.P50Ms = percentile(durations, 0.5)
	stats.P95Ms = percentile(durations, 0.95)
	stats.MaxMs = durations[n-1]

	fn := float64(n)
	stats.AvgCompileMs = compile / fn
	stats.AvgQueueMs = queue / fn
	stats.AvgComputeWaitMs = computeWait / fn
	stats.AvgExecuteMs = execute / fn
	stats.AvgFetchMs = fetch / fn
	if pruningN > 0 {
		stats.PruningEfficiency = pruningSum / float64(pruningN)
	}
	if parallelN > 0 {
		stats.Parallelism = parallelSum / float64(parallelN)
	}
	stats.CacheHitRate = cacheSum / fn

	return stats
}

// percentile is the nearest-rank estimator over a sorted slice: the value at
// index floor(n*p), clamped to the last index. No interpolation; downstream
// thresholds are tuned against exactly this estimator.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// allocateCost distributes each warehouse's reported spend to this pattern in
// proportion to the wall time the pattern spent on it. A warehouse with zero
// recorded duration contributes nothing.
func allocateCost(execs []models.QueryExecution, costs map[string]models.WarehouseCostRow, warehouseTotals map[string]int64) (dollars, dbus float64) {
	perWarehouse := make(map[string]int64)
	for _, e := range execs {
		if e.WarehouseID != "" {
			perWarehouse[e.WarehouseID] += e.DurationMs
		}
	}

	for wh, candDur := range perWarehouse {
		total := warehouseTotals[wh]
		if total <= 0 {
			continue
		}
		cost, ok := costs[wh]
		if !ok {
			continue
		}
		share := float64(candDur) / float64(total)
		dollars += cost.Dollars * share
		dbus += cost.DBUs * share
	}
	return dollars, dbus
}

// dominant returns the most frequent non-empty key; ties resolve to the
// first-seen value.
func dominant(execs []models.QueryExecution, key func(models.QueryExecution) string) string {
	counts := make(map[string]int)
	var order []string
	for _, e := range execs {
		k := key(e)
		if k == "" {
			continue
		}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}

	best := ""
	bestCount := 0
	for _, k := range order {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

// topUsers returns the limit most frequent users, ties in first-seen order.
func topUsers(execs []models.QueryExecution, limit int) []models.UserCount {
	if limit == 0 {
		return nil
	}

	counts := make(map[string]int64)
	var order []string
	for _, e := range execs {
		if e.User == "" {
			continue
		}
		if _, ok := counts[e.User]; !ok {
			order = append(order, e.User)
		}
		counts[e.User]++
	}

	users := make([]models.UserCount, 0, len(order))
	for _, u := range order {
		users = append(users, models.UserCount{Name: u, Count: counts[u]})
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Count > users[j].Count })

	if len(users) > limit {
		users = users[:limit]
	}
	return users
}
